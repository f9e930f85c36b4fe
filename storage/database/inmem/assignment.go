package inmemdb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/trezcool/darasa/core/assignment"
)

type assignmentRepository struct {
	db *DB
}

var _ assignment.Repository = (*assignmentRepository)(nil) // interface compliance check

func NewAssignmentRepository(db *DB) *assignmentRepository {
	return &assignmentRepository{db: db}
}

func (repo *assignmentRepository) query() []assignment.Assignment {
	assignments := make([]assignment.Assignment, 0, len(repo.db.assignments))
	for _, asg := range repo.db.assignments {
		assignments = append(assignments, *asg)
	}
	sort.Slice(assignments, func(i, j int) bool { return assignments[i].CreatedAt.After(assignments[j].CreatedAt) })
	return assignments
}

func (repo *assignmentRepository) querySubmissions(match func(assignment.Submission) bool) []assignment.Submission {
	submissions := make([]assignment.Submission, 0)
	for _, sub := range repo.db.submissions {
		if match(*sub) {
			submissions = append(submissions, *sub)
		}
	}
	sort.Slice(submissions, func(i, j int) bool { return submissions[i].SubmittedAt.Before(submissions[j].SubmittedAt) })
	return submissions
}

func (repo *assignmentRepository) CreateAssignment(ctx context.Context, asg assignment.Assignment) (assignment.Assignment, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	asg.ID = uuid.New().String()
	repo.db.assignments[asg.ID] = &asg
	return asg, nil
}

func (repo *assignmentRepository) GetAssignmentByID(ctx context.Context, id string) (assignment.Assignment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if asg, ok := repo.db.assignments[id]; ok {
		return *asg, nil
	}
	return assignment.Assignment{}, assignment.ErrNotFound
}

func (repo *assignmentRepository) QueryAssignmentsByCourse(ctx context.Context, courseID string) ([]assignment.Assignment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	assignments := make([]assignment.Assignment, 0)
	for _, asg := range repo.query() {
		if asg.CourseID == courseID {
			assignments = append(assignments, asg)
		}
	}
	return assignments, nil
}

func (repo *assignmentRepository) QueryAssignmentsByID(ctx context.Context, ids []string) ([]assignment.Assignment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	assignments := make([]assignment.Assignment, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		if asg, ok := repo.db.assignments[id]; ok {
			assignments = append(assignments, *asg)
		}
	}
	return assignments, nil
}

func (repo *assignmentRepository) CountAssignmentsByCourse(ctx context.Context, courseIDs []string) (map[string]int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	wanted := make(map[string]struct{}, len(courseIDs))
	for _, id := range courseIDs {
		wanted[id] = struct{}{}
	}
	counts := make(map[string]int, len(courseIDs))
	for _, asg := range repo.db.assignments {
		if _, ok := wanted[asg.CourseID]; ok {
			counts[asg.CourseID]++
		}
	}
	return counts, nil
}

func (repo *assignmentRepository) UpdateAssignment(ctx context.Context, asg assignment.Assignment) (assignment.Assignment, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orig, ok := repo.db.assignments[asg.ID]
	if !ok {
		return assignment.Assignment{}, assignment.ErrNotFound
	}
	orig.Title = asg.Title
	orig.Description = asg.Description
	orig.DueDate = asg.DueDate
	orig.MaxPoints = asg.MaxPoints
	orig.UpdatedAt = asg.UpdatedAt
	return *orig, nil
}

func (repo *assignmentRepository) DeleteAssignment(ctx context.Context, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for subID, sub := range repo.db.submissions {
		if sub.AssignmentID == id {
			delete(repo.db.submissions, subID)
		}
	}
	delete(repo.db.assignments, id)
	return nil
}

func (repo *assignmentRepository) UpsertSubmission(ctx context.Context, sub assignment.Submission) (assignment.Submission, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, existing := range repo.db.submissions {
		if existing.AssignmentID == sub.AssignmentID && existing.StudentID == sub.StudentID {
			existing.Content = sub.Content
			existing.SubmittedAt = sub.SubmittedAt
			return *existing, nil
		}
	}
	sub.ID = uuid.New().String()
	repo.db.submissions[sub.ID] = &sub
	return sub, nil
}

func (repo *assignmentRepository) GetSubmissionByID(ctx context.Context, id string) (assignment.Submission, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if sub, ok := repo.db.submissions[id]; ok {
		return *sub, nil
	}
	return assignment.Submission{}, assignment.ErrSubmissionNotFound
}

func (repo *assignmentRepository) GetSubmission(ctx context.Context, assignmentID, studentID string) (assignment.Submission, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, sub := range repo.db.submissions {
		if sub.AssignmentID == assignmentID && sub.StudentID == studentID {
			return *sub, nil
		}
	}
	return assignment.Submission{}, assignment.ErrSubmissionNotFound
}

func (repo *assignmentRepository) QuerySubmissionsByStudent(ctx context.Context, studentID string) ([]assignment.Submission, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	return repo.querySubmissions(func(sub assignment.Submission) bool { return sub.StudentID == studentID }), nil
}

func (repo *assignmentRepository) QuerySubmissionsByAssignment(ctx context.Context, assignmentID string) ([]assignment.Submission, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	return repo.querySubmissions(func(sub assignment.Submission) bool { return sub.AssignmentID == assignmentID }), nil
}

func (repo *assignmentRepository) QueryPendingSubmissions(ctx context.Context, courseIDs []string) ([]assignment.Submission, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	wanted := make(map[string]struct{}, len(courseIDs))
	for _, id := range courseIDs {
		wanted[id] = struct{}{}
	}
	return repo.querySubmissions(func(sub assignment.Submission) bool {
		if sub.IsGraded() {
			return false
		}
		asg, ok := repo.db.assignments[sub.AssignmentID]
		if !ok {
			return false
		}
		_, ok = wanted[asg.CourseID]
		return ok
	}), nil
}

func (repo *assignmentRepository) countSubmissions(assignmentIDs []string, ungradedOnly bool) map[string]int {
	wanted := make(map[string]struct{}, len(assignmentIDs))
	for _, id := range assignmentIDs {
		wanted[id] = struct{}{}
	}
	counts := make(map[string]int, len(assignmentIDs))
	for _, sub := range repo.db.submissions {
		if ungradedOnly && sub.IsGraded() {
			continue
		}
		if _, ok := wanted[sub.AssignmentID]; ok {
			counts[sub.AssignmentID]++
		}
	}
	return counts
}

func (repo *assignmentRepository) CountSubmissionsByAssignment(ctx context.Context, assignmentIDs []string) (map[string]int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	return repo.countSubmissions(assignmentIDs, false), nil
}

func (repo *assignmentRepository) CountUngradedByAssignment(ctx context.Context, assignmentIDs []string) (map[string]int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	return repo.countSubmissions(assignmentIDs, true), nil
}

func (repo *assignmentRepository) GradeSubmission(ctx context.Context, sub assignment.Submission) (assignment.Submission, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orig, ok := repo.db.submissions[sub.ID]
	if !ok {
		return assignment.Submission{}, assignment.ErrSubmissionNotFound
	}
	orig.Grade = sub.Grade
	orig.Feedback = sub.Feedback
	orig.GradedAt = sub.GradedAt
	return *orig, nil
}
