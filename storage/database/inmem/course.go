package inmemdb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/trezcool/darasa/core/course"
)

type courseRepository struct {
	db *DB
}

var _ course.Repository = (*courseRepository)(nil) // interface compliance check

func NewCourseRepository(db *DB) *courseRepository {
	return &courseRepository{db: db}
}

func (repo *courseRepository) query() []course.Course {
	courses := make([]course.Course, 0, len(repo.db.courses))
	for _, crs := range repo.db.courses {
		courses = append(courses, *crs)
	}
	sort.Slice(courses, func(i, j int) bool { return courses[i].CreatedAt.After(courses[j].CreatedAt) })
	return courses
}

func (repo *courseRepository) CreateCourse(ctx context.Context, crs course.Course) (course.Course, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	crs.ID = uuid.New().String()
	repo.db.courses[crs.ID] = &crs
	return crs, nil
}

func (repo *courseRepository) GetCourseByID(ctx context.Context, id string) (course.Course, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if crs, ok := repo.db.courses[id]; ok {
		return *crs, nil
	}
	return course.Course{}, course.ErrNotFound
}

func (repo *courseRepository) QueryAllCourses(ctx context.Context) ([]course.Course, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	return repo.query(), nil
}

func (repo *courseRepository) QueryCoursesByTeacher(ctx context.Context, teacherID string) ([]course.Course, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	courses := make([]course.Course, 0)
	for _, crs := range repo.query() {
		if crs.TeacherID == teacherID {
			courses = append(courses, crs)
		}
	}
	return courses, nil
}

func (repo *courseRepository) QueryActiveCourses(ctx context.Context) ([]course.Course, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	courses := make([]course.Course, 0)
	for _, crs := range repo.query() {
		if crs.IsActive {
			courses = append(courses, crs)
		}
	}
	return courses, nil
}

func (repo *courseRepository) QueryCoursesByID(ctx context.Context, ids []string) ([]course.Course, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	courses := make([]course.Course, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		if crs, ok := repo.db.courses[id]; ok {
			courses = append(courses, *crs)
		}
	}
	return courses, nil
}

func (repo *courseRepository) UpdateCourse(ctx context.Context, crs course.Course) (course.Course, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orig, ok := repo.db.courses[crs.ID]
	if !ok {
		return course.Course{}, course.ErrNotFound
	}
	orig.Name = crs.Name
	orig.Description = crs.Description
	orig.Subject = crs.Subject
	orig.UpdatedAt = crs.UpdatedAt
	return *orig, nil
}

func (repo *courseRepository) DeactivateCourse(ctx context.Context, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	crs, ok := repo.db.courses[id]
	if !ok {
		return course.ErrNotFound
	}
	crs.IsActive = false
	return nil
}

func (repo *courseRepository) QueryCoursesWithTeacher(ctx context.Context) ([]course.Info, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	enrCounts := make(map[string]int, len(repo.db.courses))
	for _, enr := range repo.db.enrollments {
		enrCounts[enr.CourseID]++
	}

	infos := make([]course.Info, 0, len(repo.db.courses))
	for _, crs := range repo.query() {
		var teacherName string
		if teacher, ok := repo.db.users[crs.TeacherID]; ok {
			teacherName = teacher.Name()
		}
		infos = append(infos, course.Info{
			Course:          crs,
			TeacherName:     teacherName,
			EnrollmentCount: enrCounts[crs.ID],
		})
	}
	return infos, nil
}

func (repo *courseRepository) CreateEnrollment(ctx context.Context, enr course.Enrollment) (course.Enrollment, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	key := enrollmentKey(enr.StudentID, enr.CourseID)
	if _, ok := repo.db.enrollments[key]; ok {
		return course.Enrollment{}, course.ErrAlreadyEnrolled
	}
	repo.db.enrollments[key] = &enr
	return enr, nil
}

func (repo *courseRepository) DeleteEnrollment(ctx context.Context, studentID, courseID string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	delete(repo.db.enrollments, enrollmentKey(studentID, courseID))
	return nil
}

func (repo *courseRepository) IsEnrolled(ctx context.Context, studentID, courseID string) (bool, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	_, ok := repo.db.enrollments[enrollmentKey(studentID, courseID)]
	return ok, nil
}

func (repo *courseRepository) queryEnrollments(match func(course.Enrollment) bool) []course.Enrollment {
	enrollments := make([]course.Enrollment, 0)
	for _, enr := range repo.db.enrollments {
		if match(*enr) {
			enrollments = append(enrollments, *enr)
		}
	}
	sort.Slice(enrollments, func(i, j int) bool { return enrollments[i].EnrolledAt.Before(enrollments[j].EnrolledAt) })
	return enrollments
}

func (repo *courseRepository) QueryEnrollmentsByStudent(ctx context.Context, studentID string) ([]course.Enrollment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	return repo.queryEnrollments(func(enr course.Enrollment) bool { return enr.StudentID == studentID }), nil
}

func (repo *courseRepository) QueryEnrollmentsByCourse(ctx context.Context, courseID string) ([]course.Enrollment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	return repo.queryEnrollments(func(enr course.Enrollment) bool { return enr.CourseID == courseID }), nil
}

func (repo *courseRepository) CountEnrollments(ctx context.Context, courseIDs []string) (map[string]int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	wanted := make(map[string]struct{}, len(courseIDs))
	for _, id := range courseIDs {
		wanted[id] = struct{}{}
	}
	counts := make(map[string]int, len(courseIDs))
	for _, enr := range repo.db.enrollments {
		if _, ok := wanted[enr.CourseID]; ok {
			counts[enr.CourseID]++
		}
	}
	return counts, nil
}
