package course

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/user"
)

var (
	// errors
	ErrNotFound        = core.NewNotFoundError("course not found")
	ErrAlreadyEnrolled = core.NewConflictError("already enrolled in this course")
	ErrCourseInactive  = errors.New("course is not active")
)

type (
	Repository interface {
		CreateCourse(ctx context.Context, crs Course) (Course, error)
		GetCourseByID(ctx context.Context, id string) (Course, error)
		QueryAllCourses(ctx context.Context) ([]Course, error)
		QueryCoursesByTeacher(ctx context.Context, teacherID string) ([]Course, error)
		QueryActiveCourses(ctx context.Context) ([]Course, error)
		QueryCoursesByID(ctx context.Context, ids []string) ([]Course, error)
		UpdateCourse(ctx context.Context, crs Course) (Course, error)
		DeactivateCourse(ctx context.Context, id string) error
		// QueryCoursesWithTeacher returns all courses with the teacher name
		// attached in a single joined read.
		QueryCoursesWithTeacher(ctx context.Context) ([]Info, error)

		CreateEnrollment(ctx context.Context, enr Enrollment) (Enrollment, error)
		DeleteEnrollment(ctx context.Context, studentID, courseID string) error
		IsEnrolled(ctx context.Context, studentID, courseID string) (bool, error)
		QueryEnrollmentsByStudent(ctx context.Context, studentID string) ([]Enrollment, error)
		QueryEnrollmentsByCourse(ctx context.Context, courseID string) ([]Enrollment, error)
		CountEnrollments(ctx context.Context, courseIDs []string) (map[string]int, error)
	}

	// UserDirectory is the slice of the user repository this service needs
	// for teacher/student enrichment.
	UserDirectory interface {
		GetUserByID(ctx context.Context, id string) (user.User, error)
		QueryUsersByID(ctx context.Context, ids []string) ([]user.User, error)
	}

	// AssignmentCounter is implemented by the assignment repository.
	AssignmentCounter interface {
		CountAssignmentsByCourse(ctx context.Context, courseIDs []string) (map[string]int, error)
	}

	Service interface {
		ListForStudent(ctx context.Context, studentID string) ([]Info, error)
		ListForTeacher(ctx context.Context, teacherID string) ([]Info, error)
		ListAll(ctx context.Context) ([]Info, error)
		ListAvailable(ctx context.Context, studentID string) ([]Info, error)
		ListWithTeachers(ctx context.Context) ([]Info, error)
		Get(ctx context.Context, id string) (Course, error)
		GetDetail(ctx context.Context, id, viewerID string) (Detail, error)
		Create(ctx context.Context, teacherID string, nc NewCourse) (Course, error)
		Update(ctx context.Context, id string, uc UpdateCourse) (Course, error)
		Deactivate(ctx context.Context, id string) error
		Enroll(ctx context.Context, studentID, courseID string) (Enrollment, error)
		Unenroll(ctx context.Context, studentID, courseID string) error
		IsEnrolled(ctx context.Context, studentID, courseID string) (bool, error)
		Students(ctx context.Context, courseID string) ([]EnrolledStudent, error)
	}

	service struct {
		repo        Repository
		users       UserDirectory
		assignments AssignmentCounter
		log         core.Logger
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, users UserDirectory, assignments AssignmentCounter, log core.Logger) Service {
	return &service{repo: repo, users: users, assignments: assignments, log: log}
}

func courseIDs(courses []Course) []string {
	ids := make([]string, 0, len(courses))
	for _, crs := range courses {
		ids = append(ids, crs.ID)
	}
	return ids
}

func teacherIDs(courses []Course) []string {
	seen := make(map[string]struct{}, len(courses))
	ids := make([]string, 0, len(courses))
	for _, crs := range courses {
		if _, ok := seen[crs.TeacherID]; ok {
			continue
		}
		seen[crs.TeacherID] = struct{}{}
		ids = append(ids, crs.TeacherID)
	}
	return ids
}

// teacherNames batch-fetches the owning teachers of the given courses and
// returns them keyed by user ID.
func (svc *service) teacherNames(ctx context.Context, courses []Course) (map[string]string, error) {
	teachers, err := svc.users.QueryUsersByID(ctx, teacherIDs(courses))
	if err != nil {
		return nil, errors.Wrap(err, "querying course teachers")
	}
	names := make(map[string]string, len(teachers))
	for i := range teachers {
		names[teachers[i].ID] = teachers[i].Name()
	}
	return names, nil
}

// ListForStudent returns the student's enrolled, active courses with teacher
// name and assignment count attached.
func (svc *service) ListForStudent(ctx context.Context, studentID string) ([]Info, error) {
	enrollments, err := svc.repo.QueryEnrollmentsByStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(enrollments))
	for _, enr := range enrollments {
		ids = append(ids, enr.CourseID)
	}
	courses, err := svc.repo.QueryCoursesByID(ctx, ids)
	if err != nil {
		return nil, err
	}
	active := make([]Course, 0, len(courses))
	for _, crs := range courses {
		if crs.IsActive {
			active = append(active, crs)
		}
	}

	names, err := svc.teacherNames(ctx, active)
	if err != nil {
		return nil, err
	}
	asgCounts, err := svc.assignments.CountAssignmentsByCourse(ctx, courseIDs(active))
	if err != nil {
		return nil, err
	}

	infos := make([]Info, 0, len(active))
	for _, crs := range active {
		infos = append(infos, Info{
			Course:          crs,
			TeacherName:     names[crs.TeacherID],
			AssignmentCount: asgCounts[crs.ID],
			IsEnrolled:      true,
		})
	}
	return infos, nil
}

// ListForTeacher returns the teacher's own courses, active or not, with
// enrollment and assignment counts.
func (svc *service) ListForTeacher(ctx context.Context, teacherID string) ([]Info, error) {
	courses, err := svc.repo.QueryCoursesByTeacher(ctx, teacherID)
	if err != nil {
		return nil, err
	}
	ids := courseIDs(courses)
	enrCounts, err := svc.repo.CountEnrollments(ctx, ids)
	if err != nil {
		return nil, err
	}
	asgCounts, err := svc.assignments.CountAssignmentsByCourse(ctx, ids)
	if err != nil {
		return nil, err
	}

	infos := make([]Info, 0, len(courses))
	for _, crs := range courses {
		infos = append(infos, Info{
			Course:          crs,
			EnrollmentCount: enrCounts[crs.ID],
			AssignmentCount: asgCounts[crs.ID],
		})
	}
	return infos, nil
}

// ListAll returns every course with teacher name and enrollment count.
func (svc *service) ListAll(ctx context.Context) ([]Info, error) {
	courses, err := svc.repo.QueryAllCourses(ctx)
	if err != nil {
		return nil, err
	}
	return svc.enrichWithTeachers(ctx, courses)
}

func (svc *service) enrichWithTeachers(ctx context.Context, courses []Course) ([]Info, error) {
	names, err := svc.teacherNames(ctx, courses)
	if err != nil {
		return nil, err
	}
	enrCounts, err := svc.repo.CountEnrollments(ctx, courseIDs(courses))
	if err != nil {
		return nil, err
	}

	infos := make([]Info, 0, len(courses))
	for _, crs := range courses {
		infos = append(infos, Info{
			Course:          crs,
			TeacherName:     names[crs.TeacherID],
			EnrollmentCount: enrCounts[crs.ID],
		})
	}
	return infos, nil
}

// ListAvailable returns all active courses with an is_enrolled flag computed
// against the student's enrollment set.
func (svc *service) ListAvailable(ctx context.Context, studentID string) ([]Info, error) {
	courses, err := svc.repo.QueryActiveCourses(ctx)
	if err != nil {
		return nil, err
	}
	enrollments, err := svc.repo.QueryEnrollmentsByStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}
	enrolled := make(map[string]struct{}, len(enrollments))
	for _, enr := range enrollments {
		enrolled[enr.CourseID] = struct{}{}
	}

	names, err := svc.teacherNames(ctx, courses)
	if err != nil {
		return nil, err
	}
	enrCounts, err := svc.repo.CountEnrollments(ctx, courseIDs(courses))
	if err != nil {
		return nil, err
	}

	infos := make([]Info, 0, len(courses))
	for _, crs := range courses {
		_, isEnrolled := enrolled[crs.ID]
		infos = append(infos, Info{
			Course:          crs,
			TeacherName:     names[crs.TeacherID],
			EnrollmentCount: enrCounts[crs.ID],
			IsEnrolled:      isEnrolled,
		})
	}
	return infos, nil
}

// ListWithTeachers is the admin course listing. It first attempts a single
// joined read; if the store refuses it, it degrades to batched separate
// reads. The fallback is a deliberate resilience path, not dead code.
func (svc *service) ListWithTeachers(ctx context.Context) ([]Info, error) {
	infos, err := svc.repo.QueryCoursesWithTeacher(ctx)
	if err == nil {
		return infos, nil
	}
	svc.log.Warn("joined course read failed; degrading to batched reads", err)

	courses, err := svc.repo.QueryAllCourses(ctx)
	if err != nil {
		return nil, err
	}
	return svc.enrichWithTeachers(ctx, courses)
}

func (svc *service) Get(ctx context.Context, id string) (Course, error) {
	return svc.repo.GetCourseByID(ctx, id)
}

// GetDetail returns a single course with its teacher, enrollment count and
// the viewer's enrollment flag.
func (svc *service) GetDetail(ctx context.Context, id, viewerID string) (Detail, error) {
	crs, err := svc.repo.GetCourseByID(ctx, id)
	if err != nil {
		return Detail{}, err
	}
	teacher, err := svc.users.GetUserByID(ctx, crs.TeacherID)
	if err != nil {
		return Detail{}, errors.Wrap(err, "querying course teacher")
	}
	counts, err := svc.repo.CountEnrollments(ctx, []string{crs.ID})
	if err != nil {
		return Detail{}, err
	}
	isEnrolled, err := svc.repo.IsEnrolled(ctx, viewerID, crs.ID)
	if err != nil {
		return Detail{}, err
	}
	return Detail{
		Course:          crs,
		Teacher:         teacher,
		EnrollmentCount: counts[crs.ID],
		IsEnrolled:      isEnrolled,
	}, nil
}

func (svc *service) Create(ctx context.Context, teacherID string, nc NewCourse) (Course, error) {
	now := time.Now().UTC()
	crs := Course{
		TeacherID:   teacherID,
		Name:        nc.Name,
		Description: nc.Description,
		Subject:     nc.Subject,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return svc.repo.CreateCourse(ctx, crs)
}

func (svc *service) Update(ctx context.Context, id string, uc UpdateCourse) (Course, error) {
	orig, err := svc.repo.GetCourseByID(ctx, id)
	if err != nil {
		return Course{}, err
	}
	orig.Name = uc.Name
	orig.Description = uc.Description
	orig.Subject = uc.Subject
	orig.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateCourse(ctx, orig)
}

// Deactivate soft-deletes a course: the active flag is cleared, the row stays.
func (svc *service) Deactivate(ctx context.Context, id string) error {
	if _, err := svc.repo.GetCourseByID(ctx, id); err != nil {
		return err
	}
	return svc.repo.DeactivateCourse(ctx, id)
}

// Enroll adds the student to an active course. A duplicate enrollment
// surfaces as ErrAlreadyEnrolled via the store's uniqueness constraint.
func (svc *service) Enroll(ctx context.Context, studentID, courseID string) (Enrollment, error) {
	crs, err := svc.repo.GetCourseByID(ctx, courseID)
	if err != nil {
		return Enrollment{}, err
	}
	if !crs.IsActive {
		return Enrollment{}, core.NewValidationError(ErrCourseInactive)
	}
	return svc.repo.CreateEnrollment(ctx, Enrollment{
		StudentID:  studentID,
		CourseID:   courseID,
		EnrolledAt: time.Now().UTC(),
	})
}

// Unenroll is an idempotent delete by key pair.
func (svc *service) Unenroll(ctx context.Context, studentID, courseID string) error {
	return svc.repo.DeleteEnrollment(ctx, studentID, courseID)
}

func (svc *service) IsEnrolled(ctx context.Context, studentID, courseID string) (bool, error) {
	return svc.repo.IsEnrolled(ctx, studentID, courseID)
}

// Students returns the enrolled students merged with their enrollment
// timestamps.
func (svc *service) Students(ctx context.Context, courseID string) ([]EnrolledStudent, error) {
	enrollments, err := svc.repo.QueryEnrollmentsByCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(enrollments))
	for _, enr := range enrollments {
		ids = append(ids, enr.StudentID)
	}
	students, err := svc.users.QueryUsersByID(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "querying enrolled students")
	}
	byID := make(map[string]user.User, len(students))
	for _, usr := range students {
		byID[usr.ID] = usr
	}

	result := make([]EnrolledStudent, 0, len(enrollments))
	for _, enr := range enrollments {
		usr, ok := byID[enr.StudentID]
		if !ok {
			continue
		}
		result = append(result, EnrolledStudent{User: usr, EnrolledAt: enr.EnrolledAt})
	}
	return result, nil
}
