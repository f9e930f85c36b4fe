package message

import (
	"context"
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/course"
	"github.com/trezcool/darasa/core/user"
)

var ErrReceiverNotFound = core.NewNotFoundError("receiver not found")

type (
	Repository interface {
		CreateMessage(ctx context.Context, msg Message) (Message, error)
		// QueryMessagesByUser returns all messages the user sent or received.
		QueryMessagesByUser(ctx context.Context, userID string) ([]Message, error)
		// QueryConversation returns the full history between two users,
		// ascending by time.
		QueryConversation(ctx context.Context, userID, partnerID string) ([]Message, error)
		// MarkConversationRead flips the read flag on all unread messages
		// from sender to receiver. Safe to repeat.
		MarkConversationRead(ctx context.Context, receiverID, senderID string) error
		CountUnread(ctx context.Context, receiverID string) (int, error)
	}

	UserDirectory interface {
		GetUserByID(ctx context.Context, id string) (user.User, error)
		QueryUsersByID(ctx context.Context, ids []string) ([]user.User, error)
		QueryAllUsers(ctx context.Context) ([]user.User, error)
	}

	// CourseDirectory supplies the enrollment graph that decides who may
	// message whom.
	CourseDirectory interface {
		QueryCoursesByID(ctx context.Context, ids []string) ([]course.Course, error)
		QueryCoursesByTeacher(ctx context.Context, teacherID string) ([]course.Course, error)
		QueryEnrollmentsByStudent(ctx context.Context, studentID string) ([]course.Enrollment, error)
		QueryEnrollmentsByCourse(ctx context.Context, courseID string) ([]course.Enrollment, error)
	}

	Service interface {
		UnreadCount(ctx context.Context, userID string) (int, error)
		Conversations(ctx context.Context, userID string) ([]Conversation, error)
		Contacts(ctx context.Context, usr user.User) ([]Contact, error)
		// ConversationWith returns the chronological history with the
		// partner and marks their unread messages as read. Idempotent.
		ConversationWith(ctx context.Context, userID, partnerID string) ([]Message, error)
		Send(ctx context.Context, senderID string, nm NewMessage) (Message, error)
	}

	service struct {
		repo    Repository
		users   UserDirectory
		courses CourseDirectory
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, users UserDirectory, courses CourseDirectory) Service {
	return &service{repo: repo, users: users, courses: courses}
}

func (svc *service) UnreadCount(ctx context.Context, userID string) (int, error) {
	return svc.repo.CountUnread(ctx, userID)
}

// Conversations merges the caller's sent and received messages into one
// entry per counterpart, keeping the most recent message and counting the
// unread ones, sorted most-recent-first.
func (svc *service) Conversations(ctx context.Context, userID string) ([]Conversation, error) {
	messages, err := svc.repo.QueryMessagesByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	latest := make(map[string]Message)
	unread := make(map[string]int)
	for _, msg := range messages {
		partnerID := msg.SenderID
		if partnerID == userID {
			partnerID = msg.ReceiverID
		}
		if last, ok := latest[partnerID]; !ok || msg.CreatedAt.After(last.CreatedAt) {
			latest[partnerID] = msg
		}
		if msg.ReceiverID == userID && !msg.IsRead {
			unread[msg.SenderID]++
		}
	}

	partnerIDs := make([]string, 0, len(latest))
	for id := range latest {
		partnerIDs = append(partnerIDs, id)
	}
	partners, err := svc.users.QueryUsersByID(ctx, partnerIDs)
	if err != nil {
		return nil, errors.Wrap(err, "querying conversation partners")
	}
	partnerByID := make(map[string]user.User, len(partners))
	for _, p := range partners {
		partnerByID[p.ID] = p
	}

	conversations := make([]Conversation, 0, len(latest))
	for id, msg := range latest {
		partner := partnerByID[id]
		conversations = append(conversations, Conversation{
			PartnerID:   id,
			PartnerName: partner.Name(),
			PartnerRole: partner.Role,
			LastMessage: msg,
			UnreadCount: unread[id],
		})
	}
	sort.Slice(conversations, func(i, j int) bool {
		return conversations[i].LastMessage.CreatedAt.After(conversations[j].LastMessage.CreatedAt)
	})
	return conversations, nil
}

// Contacts returns who the caller may message: students reach the teachers
// of their enrolled courses, teachers reach the students of their own
// courses, admins reach everyone else.
func (svc *service) Contacts(ctx context.Context, usr user.User) ([]Contact, error) {
	switch {
	case usr.IsAdmin():
		all, err := svc.users.QueryAllUsers(ctx)
		if err != nil {
			return nil, err
		}
		contacts := make([]Contact, 0, len(all))
		for _, u := range all {
			if u.ID == usr.ID {
				continue
			}
			contacts = append(contacts, Contact{ID: u.ID, Name: u.Name(), Role: u.Role})
		}
		return contacts, nil

	case usr.IsTeacher():
		courses, err := svc.courses.QueryCoursesByTeacher(ctx, usr.ID)
		if err != nil {
			return nil, err
		}
		seen := make(map[string]struct{})
		var studentIDs []string
		for _, crs := range courses {
			enrollments, err := svc.courses.QueryEnrollmentsByCourse(ctx, crs.ID)
			if err != nil {
				return nil, err
			}
			for _, enr := range enrollments {
				if _, ok := seen[enr.StudentID]; ok {
					continue
				}
				seen[enr.StudentID] = struct{}{}
				studentIDs = append(studentIDs, enr.StudentID)
			}
		}
		return svc.toContacts(ctx, studentIDs)

	default: // student
		enrollments, err := svc.courses.QueryEnrollmentsByStudent(ctx, usr.ID)
		if err != nil {
			return nil, err
		}
		crsIDs := make([]string, 0, len(enrollments))
		for _, enr := range enrollments {
			crsIDs = append(crsIDs, enr.CourseID)
		}
		courses, err := svc.courses.QueryCoursesByID(ctx, crsIDs)
		if err != nil {
			return nil, err
		}
		seen := make(map[string]struct{})
		var teacherIDs []string
		for _, crs := range courses {
			if _, ok := seen[crs.TeacherID]; ok {
				continue
			}
			seen[crs.TeacherID] = struct{}{}
			teacherIDs = append(teacherIDs, crs.TeacherID)
		}
		return svc.toContacts(ctx, teacherIDs)
	}
}

func (svc *service) toContacts(ctx context.Context, ids []string) ([]Contact, error) {
	users, err := svc.users.QueryUsersByID(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "querying contacts")
	}
	contacts := make([]Contact, 0, len(users))
	for _, u := range users {
		contacts = append(contacts, Contact{ID: u.ID, Name: u.Name(), Role: u.Role})
	}
	return contacts, nil
}

func (svc *service) ConversationWith(ctx context.Context, userID, partnerID string) ([]Message, error) {
	messages, err := svc.repo.QueryConversation(ctx, userID, partnerID)
	if err != nil {
		return nil, err
	}
	// read receipt: opening the conversation marks the partner's messages
	// as read; repeating is a no-op.
	if err = svc.repo.MarkConversationRead(ctx, userID, partnerID); err != nil {
		return nil, err
	}
	for i := range messages {
		if messages[i].ReceiverID == userID {
			messages[i].IsRead = true
		}
	}
	return messages, nil
}

func (svc *service) Send(ctx context.Context, senderID string, nm NewMessage) (Message, error) {
	if _, err := svc.users.GetUserByID(ctx, nm.ReceiverID); err != nil {
		if core.IsNotFound(err) {
			return Message{}, ErrReceiverNotFound
		}
		return Message{}, err
	}
	return svc.repo.CreateMessage(ctx, Message{
		SenderID:   senderID,
		ReceiverID: nm.ReceiverID,
		Content:    nm.Content,
		CreatedAt:  time.Now().UTC(),
	})
}
