package assignment

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/course"
	"github.com/trezcool/darasa/core/user"
)

var (
	// errors
	ErrNotFound           = core.NewNotFoundError("assignment not found")
	ErrSubmissionNotFound = core.NewNotFoundError("submission not found")
	ErrNotEnrolled        = errors.New("not enrolled in this course")
)

type (
	Repository interface {
		CreateAssignment(ctx context.Context, asg Assignment) (Assignment, error)
		GetAssignmentByID(ctx context.Context, id string) (Assignment, error)
		QueryAssignmentsByCourse(ctx context.Context, courseID string) ([]Assignment, error)
		QueryAssignmentsByID(ctx context.Context, ids []string) ([]Assignment, error)
		CountAssignmentsByCourse(ctx context.Context, courseIDs []string) (map[string]int, error)
		UpdateAssignment(ctx context.Context, asg Assignment) (Assignment, error)
		DeleteAssignment(ctx context.Context, id string) error

		// UpsertSubmission inserts or, keyed on (assignment, student),
		// updates content and submitted-at in place. ID and any prior grade
		// are preserved on update.
		UpsertSubmission(ctx context.Context, sub Submission) (Submission, error)
		GetSubmissionByID(ctx context.Context, id string) (Submission, error)
		GetSubmission(ctx context.Context, assignmentID, studentID string) (Submission, error)
		QuerySubmissionsByStudent(ctx context.Context, studentID string) ([]Submission, error)
		QuerySubmissionsByAssignment(ctx context.Context, assignmentID string) ([]Submission, error)
		// QueryPendingSubmissions returns ungraded submissions across the
		// given courses, oldest submitted first.
		QueryPendingSubmissions(ctx context.Context, courseIDs []string) ([]Submission, error)
		CountSubmissionsByAssignment(ctx context.Context, assignmentIDs []string) (map[string]int, error)
		CountUngradedByAssignment(ctx context.Context, assignmentIDs []string) (map[string]int, error)
		GradeSubmission(ctx context.Context, sub Submission) (Submission, error)
	}

	// CourseDirectory is the slice of the course repository this service
	// needs for enrichment and enrollment checks.
	CourseDirectory interface {
		GetCourseByID(ctx context.Context, id string) (course.Course, error)
		QueryCoursesByID(ctx context.Context, ids []string) ([]course.Course, error)
		QueryCoursesByTeacher(ctx context.Context, teacherID string) ([]course.Course, error)
		QueryAllCourses(ctx context.Context) ([]course.Course, error)
		IsEnrolled(ctx context.Context, studentID, courseID string) (bool, error)
	}

	UserDirectory interface {
		QueryUsersByID(ctx context.Context, ids []string) ([]user.User, error)
	}

	Service interface {
		CountAssignmentsByCourse(ctx context.Context, courseIDs []string) (map[string]int, error)
		Get(ctx context.Context, id string) (Assignment, error)
		ListForStudent(ctx context.Context, courseID, studentID string) ([]Info, error)
		ListForTeacher(ctx context.Context, courseID string) ([]Info, error)
		Create(ctx context.Context, na NewAssignment) (Assignment, error)
		Update(ctx context.Context, id string, ua UpdateAssignment) (Assignment, error)
		Delete(ctx context.Context, id string) error
		Submit(ctx context.Context, assignmentID, studentID string, ns NewSubmission) (Submission, error)
		GetSubmission(ctx context.Context, assignmentID, studentID string) (Submission, error)
		GetSubmissionByID(ctx context.Context, id string) (Submission, error)
		MySubmissions(ctx context.Context, studentID string) ([]StudentSubmission, error)
		PendingGrading(ctx context.Context, usr user.User) ([]PendingSubmission, error)
		Submissions(ctx context.Context, assignmentID string) ([]SubmissionInfo, error)
		Grade(ctx context.Context, submissionID string, gs GradeSubmission) (Submission, error)
	}

	service struct {
		repo    Repository
		courses CourseDirectory
		users   UserDirectory
	}
)

var _ Service = (*service)(nil)
var _ course.AssignmentCounter = (*service)(nil)

func NewService(repo Repository, courses CourseDirectory, users UserDirectory) Service {
	return &service{repo: repo, courses: courses, users: users}
}

func (svc *service) CountAssignmentsByCourse(ctx context.Context, courseIDs []string) (map[string]int, error) {
	return svc.repo.CountAssignmentsByCourse(ctx, courseIDs)
}

func (svc *service) Get(ctx context.Context, id string) (Assignment, error) {
	return svc.repo.GetAssignmentByID(ctx, id)
}

// ListForStudent returns the course's assignments with the student's own
// submission attached to each.
func (svc *service) ListForStudent(ctx context.Context, courseID, studentID string) ([]Info, error) {
	assignments, err := svc.repo.QueryAssignmentsByCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	submissions, err := svc.repo.QuerySubmissionsByStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}
	byAssignment := make(map[string]Submission, len(submissions))
	for _, sub := range submissions {
		byAssignment[sub.AssignmentID] = sub
	}

	infos := make([]Info, 0, len(assignments))
	for _, asg := range assignments {
		info := Info{Assignment: asg}
		if sub, ok := byAssignment[asg.ID]; ok {
			sub := sub
			info.Submission = &sub
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// ListForTeacher returns the course's assignments with submission and
// ungraded counts per assignment.
func (svc *service) ListForTeacher(ctx context.Context, courseID string) ([]Info, error) {
	assignments, err := svc.repo.QueryAssignmentsByCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(assignments))
	for _, asg := range assignments {
		ids = append(ids, asg.ID)
	}
	subCounts, err := svc.repo.CountSubmissionsByAssignment(ctx, ids)
	if err != nil {
		return nil, err
	}
	ungradedCounts, err := svc.repo.CountUngradedByAssignment(ctx, ids)
	if err != nil {
		return nil, err
	}

	infos := make([]Info, 0, len(assignments))
	for _, asg := range assignments {
		infos = append(infos, Info{
			Assignment:      asg,
			SubmissionCount: subCounts[asg.ID],
			UngradedCount:   ungradedCounts[asg.ID],
		})
	}
	return infos, nil
}

func (svc *service) Create(ctx context.Context, na NewAssignment) (Assignment, error) {
	now := time.Now().UTC()
	asg := Assignment{
		CourseID:    na.CourseID,
		Title:       na.Title,
		Description: na.Description,
		DueDate:     na.DueDate,
		MaxPoints:   na.MaxPoints,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return svc.repo.CreateAssignment(ctx, asg)
}

// Update applies only the fields present in the request; absent fields are
// untouched and an explicit null clears the due date.
func (svc *service) Update(ctx context.Context, id string, ua UpdateAssignment) (Assignment, error) {
	orig, err := svc.repo.GetAssignmentByID(ctx, id)
	if err != nil {
		return Assignment{}, err
	}
	if ua.Title.Set {
		orig.Title = core.CleanString(ua.Title.String.String)
	}
	if ua.Description.Set {
		orig.Description = core.CleanString(ua.Description.String.String)
	}
	if ua.DueDate.Set {
		orig.DueDate = ua.DueDate.Time
	}
	if ua.MaxPoints.Set {
		orig.MaxPoints = ua.MaxPoints.Int.Int
	}
	orig.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateAssignment(ctx, orig)
}

func (svc *service) Delete(ctx context.Context, id string) error {
	if _, err := svc.repo.GetAssignmentByID(ctx, id); err != nil {
		return err
	}
	return svc.repo.DeleteAssignment(ctx, id)
}

// Submit upserts the student's submission keyed on (assignment, student):
// resubmission replaces content and submitted-at in place and preserves any
// prior grade.
func (svc *service) Submit(ctx context.Context, assignmentID, studentID string, ns NewSubmission) (Submission, error) {
	asg, err := svc.repo.GetAssignmentByID(ctx, assignmentID)
	if err != nil {
		return Submission{}, err
	}
	enrolled, err := svc.courses.IsEnrolled(ctx, studentID, asg.CourseID)
	if err != nil {
		return Submission{}, err
	}
	if !enrolled {
		return Submission{}, core.NewValidationError(ErrNotEnrolled)
	}
	return svc.repo.UpsertSubmission(ctx, Submission{
		AssignmentID: assignmentID,
		StudentID:    studentID,
		Content:      ns.Content,
		SubmittedAt:  time.Now().UTC(),
	})
}

func (svc *service) GetSubmission(ctx context.Context, assignmentID, studentID string) (Submission, error) {
	return svc.repo.GetSubmission(ctx, assignmentID, studentID)
}

func (svc *service) GetSubmissionByID(ctx context.Context, id string) (Submission, error) {
	return svc.repo.GetSubmissionByID(ctx, id)
}

// MySubmissions returns all of the student's submissions, each enriched with
// its assignment and course via two batched reads.
func (svc *service) MySubmissions(ctx context.Context, studentID string) ([]StudentSubmission, error) {
	submissions, err := svc.repo.QuerySubmissionsByStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}
	asgIDs := make([]string, 0, len(submissions))
	for _, sub := range submissions {
		asgIDs = append(asgIDs, sub.AssignmentID)
	}
	assignments, err := svc.repo.QueryAssignmentsByID(ctx, asgIDs)
	if err != nil {
		return nil, err
	}
	asgByID := make(map[string]Assignment, len(assignments))
	crsIDs := make([]string, 0, len(assignments))
	for _, asg := range assignments {
		asgByID[asg.ID] = asg
		crsIDs = append(crsIDs, asg.CourseID)
	}
	courses, err := svc.courses.QueryCoursesByID(ctx, crsIDs)
	if err != nil {
		return nil, err
	}
	crsByID := make(map[string]course.Course, len(courses))
	for _, crs := range courses {
		crsByID[crs.ID] = crs
	}

	result := make([]StudentSubmission, 0, len(submissions))
	for _, sub := range submissions {
		asg, ok := asgByID[sub.AssignmentID]
		if !ok {
			continue
		}
		result = append(result, StudentSubmission{
			Submission:      sub,
			AssignmentTitle: asg.Title,
			MaxPoints:       asg.MaxPoints,
			DueDate:         asg.DueDate,
			CourseName:      crsByID[asg.CourseID].Name,
		})
	}
	return result, nil
}

// PendingGrading returns the FIFO grading queue: ungraded submissions across
// the caller's courses (all courses for an admin), oldest submitted first.
func (svc *service) PendingGrading(ctx context.Context, usr user.User) ([]PendingSubmission, error) {
	var courses []course.Course
	var err error
	if usr.IsAdmin() {
		courses, err = svc.courses.QueryAllCourses(ctx)
	} else {
		courses, err = svc.courses.QueryCoursesByTeacher(ctx, usr.ID)
	}
	if err != nil {
		return nil, err
	}
	crsByID := make(map[string]course.Course, len(courses))
	crsIDs := make([]string, 0, len(courses))
	for _, crs := range courses {
		crsByID[crs.ID] = crs
		crsIDs = append(crsIDs, crs.ID)
	}

	submissions, err := svc.repo.QueryPendingSubmissions(ctx, crsIDs)
	if err != nil {
		return nil, err
	}
	asgIDs := make([]string, 0, len(submissions))
	stuIDs := make([]string, 0, len(submissions))
	for _, sub := range submissions {
		asgIDs = append(asgIDs, sub.AssignmentID)
		stuIDs = append(stuIDs, sub.StudentID)
	}
	assignments, err := svc.repo.QueryAssignmentsByID(ctx, asgIDs)
	if err != nil {
		return nil, err
	}
	asgByID := make(map[string]Assignment, len(assignments))
	for _, asg := range assignments {
		asgByID[asg.ID] = asg
	}
	students, err := svc.users.QueryUsersByID(ctx, stuIDs)
	if err != nil {
		return nil, errors.Wrap(err, "querying submitting students")
	}
	stuByID := make(map[string]user.User, len(students))
	for _, stu := range students {
		stuByID[stu.ID] = stu
	}

	result := make([]PendingSubmission, 0, len(submissions))
	for _, sub := range submissions {
		asg, ok := asgByID[sub.AssignmentID]
		if !ok {
			continue
		}
		stu := stuByID[sub.StudentID]
		result = append(result, PendingSubmission{
			Submission:      sub,
			StudentName:     stu.Name(),
			AssignmentTitle: asg.Title,
			CourseName:      crsByID[asg.CourseID].Name,
		})
	}
	return result, nil
}

// Submissions returns an assignment's submissions enriched with each
// student's identity.
func (svc *service) Submissions(ctx context.Context, assignmentID string) ([]SubmissionInfo, error) {
	submissions, err := svc.repo.QuerySubmissionsByAssignment(ctx, assignmentID)
	if err != nil {
		return nil, err
	}
	stuIDs := make([]string, 0, len(submissions))
	for _, sub := range submissions {
		stuIDs = append(stuIDs, sub.StudentID)
	}
	students, err := svc.users.QueryUsersByID(ctx, stuIDs)
	if err != nil {
		return nil, errors.Wrap(err, "querying submitting students")
	}
	stuByID := make(map[string]user.User, len(students))
	for _, stu := range students {
		stuByID[stu.ID] = stu
	}

	infos := make([]SubmissionInfo, 0, len(submissions))
	for _, sub := range submissions {
		stu := stuByID[sub.StudentID]
		infos = append(infos, SubmissionInfo{
			Submission:   sub,
			StudentName:  stu.Name(),
			StudentEmail: stu.Email,
		})
	}
	return infos, nil
}

// Grade stores the grade, optional feedback and a graded-at timestamp.
func (svc *service) Grade(ctx context.Context, submissionID string, gs GradeSubmission) (Submission, error) {
	sub, err := svc.repo.GetSubmissionByID(ctx, submissionID)
	if err != nil {
		return Submission{}, err
	}
	sub.Grade = null.IntFrom(*gs.Grade)
	sub.Feedback = null.NewString(gs.Feedback, gs.Feedback != "")
	sub.GradedAt = null.TimeFrom(time.Now().UTC())
	return svc.repo.GradeSubmission(ctx, sub)
}
