package assignment

import (
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/darasa/core"
)

const DefaultMaxPoints = 100

type Assignment struct {
	ID          string    `json:"id"`
	CourseID    string    `json:"course_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	DueDate     null.Time `json:"due_date"`
	MaxPoints   int       `json:"max_points"`
	CreatedAt   time.Time `json:"created_at"` // UTC
	UpdatedAt   time.Time `json:"updated_at"` // UTC
}

type Submission struct {
	ID           string      `json:"id"`
	AssignmentID string      `json:"assignment_id"`
	StudentID    string      `json:"student_id"`
	Content      string      `json:"content"`
	SubmittedAt  time.Time   `json:"submitted_at"` // UTC
	Grade        null.Int    `json:"grade"`
	Feedback     null.String `json:"feedback"`
	GradedAt     null.Time   `json:"graded_at"`
}

// IsGraded distinguishes a graded submission from a pending one.
func (s *Submission) IsGraded() bool { return s.Grade.Valid }

// Info is an Assignment enriched for the course-assignment listings:
// students get their own submission attached, teachers get counts.
type Info struct {
	Assignment
	Submission      *Submission `json:"submission,omitempty"`
	SubmissionCount int         `json:"submission_count"`
	UngradedCount   int         `json:"ungraded_count"`
}

// StudentSubmission is a Submission enriched with its assignment and course
// for the student's my-submissions view.
type StudentSubmission struct {
	Submission
	AssignmentTitle string    `json:"assignment_title"`
	MaxPoints       int       `json:"max_points"`
	DueDate         null.Time `json:"due_date"`
	CourseName      string    `json:"course_name"`
}

// PendingSubmission is an ungraded Submission in the grading queue.
type PendingSubmission struct {
	Submission
	StudentName     string `json:"student_name"`
	AssignmentTitle string `json:"assignment_title"`
	CourseName      string `json:"course_name"`
}

// SubmissionInfo is a Submission enriched with the submitting student.
type SubmissionInfo struct {
	Submission
	StudentName  string `json:"student_name"`
	StudentEmail string `json:"student_email"`
}

// NewAssignment contains information needed to create a new Assignment.
type NewAssignment struct {
	CourseID    string    `json:"course_id" validate:"required"`
	Title       string    `json:"title" validate:"required"`
	Description string    `json:"description"`
	DueDate     null.Time `json:"due_date"`
	MaxPoints   int       `json:"max_points" validate:"omitempty,min=1"`
}

func (na *NewAssignment) Validate() error {
	na.Title = core.CleanString(na.Title)
	na.Description = core.CleanString(na.Description)
	if na.MaxPoints == 0 {
		na.MaxPoints = DefaultMaxPoints
	}
	return core.Validate.Struct(na)
}

// UpdateAssignment applies only the fields present in the request: an absent
// field is untouched, an explicit null clears it (due date only).
type UpdateAssignment struct {
	Title       core.OptString `json:"title"`
	Description core.OptString `json:"description"`
	DueDate     core.OptTime   `json:"due_date"`
	MaxPoints   core.OptInt    `json:"max_points"`
}

func (ua *UpdateAssignment) Validate() error {
	if ua.Title.Set && core.CleanString(ua.Title.String.String) == "" {
		return core.NewValidationError(nil, core.FieldError{Field: "title", Error: "this field is required"})
	}
	if ua.MaxPoints.Set && (!ua.MaxPoints.Valid || ua.MaxPoints.Int.Int < 1) {
		return core.NewValidationError(nil, core.FieldError{Field: "max_points", Error: "must be a positive number"})
	}
	return nil
}

// NewSubmission contains a student's submitted work.
type NewSubmission struct {
	Content string `json:"content" validate:"required"`
}

func (ns *NewSubmission) Validate() error {
	ns.Content = core.CleanString(ns.Content)
	return core.Validate.Struct(ns)
}

// GradeSubmission carries a teacher's grade. The grade value itself is
// required; feedback is optional.
type GradeSubmission struct {
	Grade    *int   `json:"grade" validate:"required"`
	Feedback string `json:"feedback"`
}

func (gs *GradeSubmission) Validate() error {
	gs.Feedback = core.CleanString(gs.Feedback)
	return core.Validate.Struct(gs)
}
