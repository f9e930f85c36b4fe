// Package inmemdb provides mutex-guarded in-memory repositories. It backs
// the API test suite and local hacking without a running Postgres.
package inmemdb

import (
	"sync"

	"github.com/trezcool/darasa/core/assignment"
	"github.com/trezcool/darasa/core/course"
	"github.com/trezcool/darasa/core/message"
	"github.com/trezcool/darasa/core/user"
)

type DB struct {
	mutex       sync.RWMutex
	users       map[string]*user.User
	courses     map[string]*course.Course
	enrollments map[string]*course.Enrollment // keyed on studentID+"/"+courseID
	assignments map[string]*assignment.Assignment
	submissions map[string]*assignment.Submission
	messages    []*message.Message
}

func NewDB() *DB {
	return &DB{
		users:       make(map[string]*user.User),
		courses:     make(map[string]*course.Course),
		enrollments: make(map[string]*course.Enrollment),
		assignments: make(map[string]*assignment.Assignment),
		submissions: make(map[string]*assignment.Submission),
	}
}

func enrollmentKey(studentID, courseID string) string {
	return studentID + "/" + courseID
}
