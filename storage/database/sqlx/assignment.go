package sqlxrepos

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/darasa/core/assignment"
)

type assignmentRow struct {
	ID          string    `db:"id"`
	CourseID    string    `db:"course_id"`
	Title       string    `db:"title"`
	Description string    `db:"description"`
	DueDate     null.Time `db:"due_date"`
	MaxPoints   int       `db:"max_points"`
	CreatedAt   null.Time `db:"created_at"`
	UpdatedAt   null.Time `db:"updated_at"`
}

func (row assignmentRow) assignment() assignment.Assignment {
	return assignment.Assignment{
		ID:          row.ID,
		CourseID:    row.CourseID,
		Title:       row.Title,
		Description: row.Description,
		DueDate:     row.DueDate,
		MaxPoints:   row.MaxPoints,
		CreatedAt:   row.CreatedAt.Time,
		UpdatedAt:   row.UpdatedAt.Time,
	}
}

func newAssignmentRow(asg assignment.Assignment) assignmentRow {
	return assignmentRow{
		ID:          asg.ID,
		CourseID:    asg.CourseID,
		Title:       asg.Title,
		Description: asg.Description,
		DueDate:     asg.DueDate,
		MaxPoints:   asg.MaxPoints,
		CreatedAt:   null.NewTime(asg.CreatedAt.UTC(), !asg.CreatedAt.IsZero()),
		UpdatedAt:   null.NewTime(asg.UpdatedAt.UTC(), !asg.UpdatedAt.IsZero()),
	}
}

func assignmentsFromRows(rows []assignmentRow) []assignment.Assignment {
	assignments := make([]assignment.Assignment, 0, len(rows))
	for _, row := range rows {
		assignments = append(assignments, row.assignment())
	}
	return assignments
}

type submissionRow struct {
	ID           string      `db:"id"`
	AssignmentID string      `db:"assignment_id"`
	StudentID    string      `db:"student_id"`
	Content      string      `db:"content"`
	SubmittedAt  null.Time   `db:"submitted_at"`
	Grade        null.Int    `db:"grade"`
	Feedback     null.String `db:"feedback"`
	GradedAt     null.Time   `db:"graded_at"`
}

func (row submissionRow) submission() assignment.Submission {
	return assignment.Submission{
		ID:           row.ID,
		AssignmentID: row.AssignmentID,
		StudentID:    row.StudentID,
		Content:      row.Content,
		SubmittedAt:  row.SubmittedAt.Time,
		Grade:        row.Grade,
		Feedback:     row.Feedback,
		GradedAt:     row.GradedAt,
	}
}

func submissionsFromRows(rows []submissionRow) []assignment.Submission {
	submissions := make([]assignment.Submission, 0, len(rows))
	for _, row := range rows {
		submissions = append(submissions, row.submission())
	}
	return submissions
}

type assignmentRepository struct {
	db *sqlx.DB
}

var _ assignment.Repository = (*assignmentRepository)(nil) // interface compliance check

func NewAssignmentRepository(db *sqlx.DB) *assignmentRepository {
	return &assignmentRepository{db: db}
}

func (repo assignmentRepository) trapNoRowsErr(err error, notFound error, msg string) error {
	if err == sql.ErrNoRows {
		return notFound
	}
	return errors.Wrap(err, msg)
}

func (repo assignmentRepository) CreateAssignment(ctx context.Context, asg assignment.Assignment) (assignment.Assignment, error) {
	asg.ID = uuid.New().String()
	row := newAssignmentRow(asg)
	query := `
		INSERT INTO assignment (id, course_id, title, description, due_date, max_points, created_at, updated_at)
		VALUES (:id, :course_id, :title, :description, :due_date, :max_points, :created_at, :updated_at)`
	if _, err := repo.db.NamedExecContext(ctx, query, row); err != nil {
		return assignment.Assignment{}, errors.Wrap(err, "creating assignment")
	}
	return asg, nil
}

func (repo assignmentRepository) GetAssignmentByID(ctx context.Context, id string) (assignment.Assignment, error) {
	var row assignmentRow
	if err := repo.db.GetContext(ctx, &row, `SELECT * FROM assignment WHERE id = $1`, id); err != nil {
		return assignment.Assignment{}, repo.trapNoRowsErr(err, assignment.ErrNotFound, "getting assignment")
	}
	return row.assignment(), nil
}

func (repo assignmentRepository) QueryAssignmentsByCourse(ctx context.Context, courseID string) ([]assignment.Assignment, error) {
	var rows []assignmentRow
	query := `SELECT * FROM assignment WHERE course_id = $1 ORDER BY created_at DESC`
	if err := repo.db.SelectContext(ctx, &rows, query, courseID); err != nil {
		return nil, errors.Wrap(err, "querying assignments")
	}
	return assignmentsFromRows(rows), nil
}

func (repo assignmentRepository) QueryAssignmentsByID(ctx context.Context, ids []string) ([]assignment.Assignment, error) {
	if len(ids) == 0 {
		return []assignment.Assignment{}, nil
	}
	query, args, err := sqlx.In(`SELECT * FROM assignment WHERE id IN (?)`, ids)
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}
	var rows []assignmentRow
	if err = repo.db.SelectContext(ctx, &rows, repo.db.Rebind(query), args...); err != nil {
		return nil, errors.Wrap(err, "querying assignments")
	}
	return assignmentsFromRows(rows), nil
}

func (repo assignmentRepository) CountAssignmentsByCourse(ctx context.Context, courseIDs []string) (map[string]int, error) {
	counts := make(map[string]int, len(courseIDs))
	if len(courseIDs) == 0 {
		return counts, nil
	}
	query, args, err := sqlx.In(`SELECT course_id, COUNT(*) AS n FROM assignment WHERE course_id IN (?) GROUP BY course_id`, courseIDs)
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}
	var rows []struct {
		CourseID string `db:"course_id"`
		N        int    `db:"n"`
	}
	if err = repo.db.SelectContext(ctx, &rows, repo.db.Rebind(query), args...); err != nil {
		return nil, errors.Wrap(err, "counting assignments")
	}
	for _, row := range rows {
		counts[row.CourseID] = row.N
	}
	return counts, nil
}

func (repo assignmentRepository) UpdateAssignment(ctx context.Context, asg assignment.Assignment) (assignment.Assignment, error) {
	row := newAssignmentRow(asg)
	query := `
		UPDATE assignment
		SET title = :title, description = :description, due_date = :due_date, max_points = :max_points, updated_at = :updated_at
		WHERE id = :id`
	res, err := repo.db.NamedExecContext(ctx, query, row)
	if err != nil {
		return assignment.Assignment{}, errors.Wrap(err, "updating assignment")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return assignment.Assignment{}, assignment.ErrNotFound
	}
	return asg, nil
}

func (repo assignmentRepository) DeleteAssignment(ctx context.Context, id string) error {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "starting transaction")
	}
	defer func() { _ = tx.Rollback() }()

	if _, err = tx.ExecContext(ctx, `DELETE FROM submission WHERE assignment_id = $1`, id); err != nil {
		return errors.Wrap(err, "deleting submissions")
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM assignment WHERE id = $1`, id); err != nil {
		return errors.Wrap(err, "deleting assignment")
	}
	return errors.Wrap(tx.Commit(), "committing transaction")
}

func (repo assignmentRepository) UpsertSubmission(ctx context.Context, sub assignment.Submission) (assignment.Submission, error) {
	// the conflict arm only touches content and submitted_at; a prior grade
	// and the row's identity survive resubmission.
	query := `
		INSERT INTO submission (id, assignment_id, student_id, content, submitted_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (assignment_id, student_id)
		DO UPDATE SET content = EXCLUDED.content, submitted_at = EXCLUDED.submitted_at
		RETURNING *`
	var row submissionRow
	err := repo.db.GetContext(ctx, &row, query, uuid.New().String(), sub.AssignmentID, sub.StudentID, sub.Content, sub.SubmittedAt)
	if err != nil {
		return assignment.Submission{}, errors.Wrap(err, "upserting submission")
	}
	return row.submission(), nil
}

func (repo assignmentRepository) GetSubmissionByID(ctx context.Context, id string) (assignment.Submission, error) {
	var row submissionRow
	if err := repo.db.GetContext(ctx, &row, `SELECT * FROM submission WHERE id = $1`, id); err != nil {
		return assignment.Submission{}, repo.trapNoRowsErr(err, assignment.ErrSubmissionNotFound, "getting submission")
	}
	return row.submission(), nil
}

func (repo assignmentRepository) GetSubmission(ctx context.Context, assignmentID, studentID string) (assignment.Submission, error) {
	var row submissionRow
	query := `SELECT * FROM submission WHERE assignment_id = $1 AND student_id = $2`
	if err := repo.db.GetContext(ctx, &row, query, assignmentID, studentID); err != nil {
		return assignment.Submission{}, repo.trapNoRowsErr(err, assignment.ErrSubmissionNotFound, "getting submission")
	}
	return row.submission(), nil
}

func (repo assignmentRepository) QuerySubmissionsByStudent(ctx context.Context, studentID string) ([]assignment.Submission, error) {
	var rows []submissionRow
	query := `SELECT * FROM submission WHERE student_id = $1 ORDER BY submitted_at DESC`
	if err := repo.db.SelectContext(ctx, &rows, query, studentID); err != nil {
		return nil, errors.Wrap(err, "querying submissions")
	}
	return submissionsFromRows(rows), nil
}

func (repo assignmentRepository) QuerySubmissionsByAssignment(ctx context.Context, assignmentID string) ([]assignment.Submission, error) {
	var rows []submissionRow
	query := `SELECT * FROM submission WHERE assignment_id = $1 ORDER BY submitted_at`
	if err := repo.db.SelectContext(ctx, &rows, query, assignmentID); err != nil {
		return nil, errors.Wrap(err, "querying submissions")
	}
	return submissionsFromRows(rows), nil
}

func (repo assignmentRepository) QueryPendingSubmissions(ctx context.Context, courseIDs []string) ([]assignment.Submission, error) {
	if len(courseIDs) == 0 {
		return []assignment.Submission{}, nil
	}
	query, args, err := sqlx.In(`
		SELECT s.* FROM submission s
		JOIN assignment a ON a.id = s.assignment_id
		WHERE s.grade IS NULL AND a.course_id IN (?)
		ORDER BY s.submitted_at`, courseIDs)
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}
	var rows []submissionRow
	if err = repo.db.SelectContext(ctx, &rows, repo.db.Rebind(query), args...); err != nil {
		return nil, errors.Wrap(err, "querying pending submissions")
	}
	return submissionsFromRows(rows), nil
}

func (repo assignmentRepository) countSubmissions(ctx context.Context, assignmentIDs []string, ungradedOnly bool) (map[string]int, error) {
	counts := make(map[string]int, len(assignmentIDs))
	if len(assignmentIDs) == 0 {
		return counts, nil
	}
	q := `SELECT assignment_id, COUNT(*) AS n FROM submission WHERE assignment_id IN (?)`
	if ungradedOnly {
		q += ` AND grade IS NULL`
	}
	q += ` GROUP BY assignment_id`
	query, args, err := sqlx.In(q, assignmentIDs)
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}
	var rows []struct {
		AssignmentID string `db:"assignment_id"`
		N            int    `db:"n"`
	}
	if err = repo.db.SelectContext(ctx, &rows, repo.db.Rebind(query), args...); err != nil {
		return nil, errors.Wrap(err, "counting submissions")
	}
	for _, row := range rows {
		counts[row.AssignmentID] = row.N
	}
	return counts, nil
}

func (repo assignmentRepository) CountSubmissionsByAssignment(ctx context.Context, assignmentIDs []string) (map[string]int, error) {
	return repo.countSubmissions(ctx, assignmentIDs, false)
}

func (repo assignmentRepository) CountUngradedByAssignment(ctx context.Context, assignmentIDs []string) (map[string]int, error) {
	return repo.countSubmissions(ctx, assignmentIDs, true)
}

func (repo assignmentRepository) GradeSubmission(ctx context.Context, sub assignment.Submission) (assignment.Submission, error) {
	query := `UPDATE submission SET grade = $1, feedback = $2, graded_at = $3 WHERE id = $4`
	res, err := repo.db.ExecContext(ctx, query, sub.Grade, sub.Feedback, sub.GradedAt, sub.ID)
	if err != nil {
		return assignment.Submission{}, errors.Wrap(err, "grading submission")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return assignment.Submission{}, assignment.ErrSubmissionNotFound
	}
	return sub, nil
}
