package sqlxrepos

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/darasa/core/course"
)

type courseRow struct {
	ID          string    `db:"id"`
	TeacherID   string    `db:"teacher_id"`
	Name        string    `db:"name"`
	Description string    `db:"description"`
	Subject     string    `db:"subject"`
	IsActive    bool      `db:"is_active"`
	CreatedAt   null.Time `db:"created_at"`
	UpdatedAt   null.Time `db:"updated_at"`
}

func (row courseRow) course() course.Course {
	return course.Course{
		ID:          row.ID,
		TeacherID:   row.TeacherID,
		Name:        row.Name,
		Description: row.Description,
		Subject:     row.Subject,
		IsActive:    row.IsActive,
		CreatedAt:   row.CreatedAt.Time,
		UpdatedAt:   row.UpdatedAt.Time,
	}
}

func newCourseRow(crs course.Course) courseRow {
	return courseRow{
		ID:          crs.ID,
		TeacherID:   crs.TeacherID,
		Name:        crs.Name,
		Description: crs.Description,
		Subject:     crs.Subject,
		IsActive:    crs.IsActive,
		CreatedAt:   null.NewTime(crs.CreatedAt.UTC(), !crs.CreatedAt.IsZero()),
		UpdatedAt:   null.NewTime(crs.UpdatedAt.UTC(), !crs.UpdatedAt.IsZero()),
	}
}

func coursesFromRows(rows []courseRow) []course.Course {
	courses := make([]course.Course, 0, len(rows))
	for _, row := range rows {
		courses = append(courses, row.course())
	}
	return courses
}

type enrollmentRow struct {
	StudentID  string    `db:"student_id"`
	CourseID   string    `db:"course_id"`
	EnrolledAt null.Time `db:"enrolled_at"`
}

func (row enrollmentRow) enrollment() course.Enrollment {
	return course.Enrollment{
		StudentID:  row.StudentID,
		CourseID:   row.CourseID,
		EnrolledAt: row.EnrolledAt.Time,
	}
}

func enrollmentsFromRows(rows []enrollmentRow) []course.Enrollment {
	enrollments := make([]course.Enrollment, 0, len(rows))
	for _, row := range rows {
		enrollments = append(enrollments, row.enrollment())
	}
	return enrollments
}

type courseRepository struct {
	db *sqlx.DB
}

var _ course.Repository = (*courseRepository)(nil) // interface compliance check

func NewCourseRepository(db *sqlx.DB) *courseRepository {
	return &courseRepository{db: db}
}

// trapNoRowsErr maps psql "no rows" err to course.ErrNotFound
func (repo courseRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return course.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo courseRepository) CreateCourse(ctx context.Context, crs course.Course) (course.Course, error) {
	crs.ID = uuid.New().String()
	row := newCourseRow(crs)
	query := `
		INSERT INTO course (id, teacher_id, name, description, subject, is_active, created_at, updated_at)
		VALUES (:id, :teacher_id, :name, :description, :subject, :is_active, :created_at, :updated_at)`
	if _, err := repo.db.NamedExecContext(ctx, query, row); err != nil {
		return course.Course{}, errors.Wrap(err, "creating course")
	}
	return crs, nil
}

func (repo courseRepository) GetCourseByID(ctx context.Context, id string) (course.Course, error) {
	var row courseRow
	if err := repo.db.GetContext(ctx, &row, `SELECT * FROM course WHERE id = $1`, id); err != nil {
		return course.Course{}, repo.trapNoRowsErr(err, "getting course")
	}
	return row.course(), nil
}

func (repo courseRepository) QueryAllCourses(ctx context.Context) ([]course.Course, error) {
	var rows []courseRow
	if err := repo.db.SelectContext(ctx, &rows, `SELECT * FROM course ORDER BY created_at DESC`); err != nil {
		return nil, errors.Wrap(err, "querying courses")
	}
	return coursesFromRows(rows), nil
}

func (repo courseRepository) QueryCoursesByTeacher(ctx context.Context, teacherID string) ([]course.Course, error) {
	var rows []courseRow
	query := `SELECT * FROM course WHERE teacher_id = $1 ORDER BY created_at DESC`
	if err := repo.db.SelectContext(ctx, &rows, query, teacherID); err != nil {
		return nil, errors.Wrap(err, "querying courses")
	}
	return coursesFromRows(rows), nil
}

func (repo courseRepository) QueryActiveCourses(ctx context.Context) ([]course.Course, error) {
	var rows []courseRow
	query := `SELECT * FROM course WHERE is_active ORDER BY created_at DESC`
	if err := repo.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, errors.Wrap(err, "querying courses")
	}
	return coursesFromRows(rows), nil
}

func (repo courseRepository) QueryCoursesByID(ctx context.Context, ids []string) ([]course.Course, error) {
	if len(ids) == 0 {
		return []course.Course{}, nil
	}
	query, args, err := sqlx.In(`SELECT * FROM course WHERE id IN (?)`, ids)
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}
	var rows []courseRow
	if err = repo.db.SelectContext(ctx, &rows, repo.db.Rebind(query), args...); err != nil {
		return nil, errors.Wrap(err, "querying courses")
	}
	return coursesFromRows(rows), nil
}

func (repo courseRepository) UpdateCourse(ctx context.Context, crs course.Course) (course.Course, error) {
	row := newCourseRow(crs)
	query := `
		UPDATE course
		SET name = :name, description = :description, subject = :subject, updated_at = :updated_at
		WHERE id = :id`
	res, err := repo.db.NamedExecContext(ctx, query, row)
	if err != nil {
		return course.Course{}, errors.Wrap(err, "updating course")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return course.Course{}, course.ErrNotFound
	}
	return crs, nil
}

func (repo courseRepository) DeactivateCourse(ctx context.Context, id string) error {
	query := `UPDATE course SET is_active = FALSE, updated_at = NOW() WHERE id = $1`
	res, err := repo.db.ExecContext(ctx, query, id)
	if err != nil {
		return errors.Wrap(err, "deactivating course")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return course.ErrNotFound
	}
	return nil
}

func (repo courseRepository) QueryCoursesWithTeacher(ctx context.Context) ([]course.Info, error) {
	type infoRow struct {
		courseRow
		TeacherName     string `db:"teacher_name"`
		EnrollmentCount int    `db:"enrollment_count"`
	}
	query := `
		SELECT c.*,
		       TRIM(u.first_name || ' ' || u.last_name) AS teacher_name,
		       COUNT(e.student_id) AS enrollment_count
		FROM course c
		JOIN "user" u ON u.id = c.teacher_id
		LEFT JOIN enrollment e ON e.course_id = c.id
		GROUP BY c.id, u.first_name, u.last_name
		ORDER BY c.created_at DESC`
	var rows []infoRow
	if err := repo.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, errors.Wrap(err, "querying courses with teachers")
	}
	infos := make([]course.Info, 0, len(rows))
	for _, row := range rows {
		infos = append(infos, course.Info{
			Course:          row.course(),
			TeacherName:     row.TeacherName,
			EnrollmentCount: row.EnrollmentCount,
		})
	}
	return infos, nil
}

func (repo courseRepository) CreateEnrollment(ctx context.Context, enr course.Enrollment) (course.Enrollment, error) {
	query := `INSERT INTO enrollment (student_id, course_id, enrolled_at) VALUES ($1, $2, $3)`
	if _, err := repo.db.ExecContext(ctx, query, enr.StudentID, enr.CourseID, enr.EnrolledAt); err != nil {
		if pqErr, ok := errors.Cause(err).(*pq.Error); ok && pqErr.Code == uniqueViolation {
			return course.Enrollment{}, course.ErrAlreadyEnrolled
		}
		return course.Enrollment{}, errors.Wrap(err, "creating enrollment")
	}
	return enr, nil
}

func (repo courseRepository) DeleteEnrollment(ctx context.Context, studentID, courseID string) error {
	query := `DELETE FROM enrollment WHERE student_id = $1 AND course_id = $2`
	if _, err := repo.db.ExecContext(ctx, query, studentID, courseID); err != nil {
		return errors.Wrap(err, "deleting enrollment")
	}
	return nil
}

func (repo courseRepository) IsEnrolled(ctx context.Context, studentID, courseID string) (bool, error) {
	var count int
	query := `SELECT COUNT(*) FROM enrollment WHERE student_id = $1 AND course_id = $2`
	if err := repo.db.GetContext(ctx, &count, query, studentID, courseID); err != nil {
		return false, errors.Wrap(err, "checking enrollment")
	}
	return count > 0, nil
}

func (repo courseRepository) QueryEnrollmentsByStudent(ctx context.Context, studentID string) ([]course.Enrollment, error) {
	var rows []enrollmentRow
	query := `SELECT * FROM enrollment WHERE student_id = $1 ORDER BY enrolled_at`
	if err := repo.db.SelectContext(ctx, &rows, query, studentID); err != nil {
		return nil, errors.Wrap(err, "querying enrollments")
	}
	return enrollmentsFromRows(rows), nil
}

func (repo courseRepository) QueryEnrollmentsByCourse(ctx context.Context, courseID string) ([]course.Enrollment, error) {
	var rows []enrollmentRow
	query := `SELECT * FROM enrollment WHERE course_id = $1 ORDER BY enrolled_at`
	if err := repo.db.SelectContext(ctx, &rows, query, courseID); err != nil {
		return nil, errors.Wrap(err, "querying enrollments")
	}
	return enrollmentsFromRows(rows), nil
}

func (repo courseRepository) CountEnrollments(ctx context.Context, courseIDs []string) (map[string]int, error) {
	counts := make(map[string]int, len(courseIDs))
	if len(courseIDs) == 0 {
		return counts, nil
	}
	query, args, err := sqlx.In(`SELECT course_id, COUNT(*) AS n FROM enrollment WHERE course_id IN (?) GROUP BY course_id`, courseIDs)
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}
	var rows []struct {
		CourseID string `db:"course_id"`
		N        int    `db:"n"`
	}
	if err = repo.db.SelectContext(ctx, &rows, repo.db.Rebind(query), args...); err != nil {
		return nil, errors.Wrap(err, "counting enrollments")
	}
	for _, row := range rows {
		counts[row.CourseID] = row.N
	}
	return counts, nil
}
