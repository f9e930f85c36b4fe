package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/darasa/core/assignment"
	"github.com/trezcool/darasa/core/course"
	"github.com/trezcool/darasa/core/message"
	"github.com/trezcool/darasa/core/user"
)

func CreateUser(
	t *testing.T,
	repo user.Repository,
	firstName, lastName, email, pwd string,
	role user.Role,
	isApproved bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()

	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		FirstName:  firstName,
		LastName:   lastName,
		Email:      email,
		Role:       role,
		IsApproved: isApproved,
		CreatedAt:  tstamp,
		UpdatedAt:  tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

func CreateCourse(
	t *testing.T,
	repo course.Repository,
	teacherID, name, subject string,
	isActive bool,
	createdAt ...time.Time,
) course.Course {
	t.Helper()

	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	crs, err := repo.CreateCourse(context.Background(), course.Course{
		TeacherID: teacherID,
		Name:      name,
		Subject:   subject,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	})
	if err != nil {
		t.Fatalf("CreateCourse() failed: %v", err)
	}
	return crs
}

func CreateEnrollment(
	t *testing.T,
	repo course.Repository,
	studentID, courseID string,
	enrolledAt ...time.Time,
) course.Enrollment {
	t.Helper()

	tstamp := time.Now().UTC()
	if len(enrolledAt) > 0 {
		tstamp = enrolledAt[0].UTC()
	}
	enr, err := repo.CreateEnrollment(context.Background(), course.Enrollment{
		StudentID:  studentID,
		CourseID:   courseID,
		EnrolledAt: tstamp,
	})
	if err != nil {
		t.Fatalf("CreateEnrollment() failed: %v", err)
	}
	return enr
}

func CreateAssignment(
	t *testing.T,
	repo assignment.Repository,
	courseID, title string,
	dueDate null.Time,
	maxPoints int,
	createdAt ...time.Time,
) assignment.Assignment {
	t.Helper()

	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	if maxPoints == 0 {
		maxPoints = assignment.DefaultMaxPoints
	}
	asg, err := repo.CreateAssignment(context.Background(), assignment.Assignment{
		CourseID:  courseID,
		Title:     title,
		DueDate:   dueDate,
		MaxPoints: maxPoints,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	})
	if err != nil {
		t.Fatalf("CreateAssignment() failed: %v", err)
	}
	return asg
}

func CreateSubmission(
	t *testing.T,
	repo assignment.Repository,
	assignmentID, studentID, content string,
	submittedAt ...time.Time,
) assignment.Submission {
	t.Helper()

	tstamp := time.Now().UTC()
	if len(submittedAt) > 0 {
		tstamp = submittedAt[0].UTC()
	}
	sub, err := repo.UpsertSubmission(context.Background(), assignment.Submission{
		AssignmentID: assignmentID,
		StudentID:    studentID,
		Content:      content,
		SubmittedAt:  tstamp,
	})
	if err != nil {
		t.Fatalf("CreateSubmission() failed: %v", err)
	}
	return sub
}

func CreateMessage(
	t *testing.T,
	repo message.Repository,
	senderID, receiverID, content string,
	createdAt ...time.Time,
) message.Message {
	t.Helper()

	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	msg, err := repo.CreateMessage(context.Background(), message.Message{
		SenderID:   senderID,
		ReceiverID: receiverID,
		Content:    content,
		CreatedAt:  tstamp,
	})
	if err != nil {
		t.Fatalf("CreateMessage() failed: %v", err)
	}
	return msg
}
