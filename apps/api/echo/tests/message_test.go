package tests

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/trezcool/darasa/core/message"
	"github.com/trezcool/darasa/core/user"
	testutil "github.com/trezcool/darasa/tests"
)

func Test_messageApi(t *testing.T) {
	app := setup(t)
	ctx := context.Background()

	tess := testutil.CreateUser(t, app.usrRepo, "Tess", "Owner", "tess@test.cd", "secret123", user.RoleTeacher, true)
	paul := testutil.CreateUser(t, app.usrRepo, "Paul", "Other", "paul@test.cd", "secret123", user.RoleTeacher, true)
	stu := testutil.CreateUser(t, app.usrRepo, "Stu", "Dent", "stu@test.cd", "secret123", user.RoleStudent, true)
	max := testutil.CreateUser(t, app.usrRepo, "Max", "Admin", "max@test.cd", "secret123", user.RoleMasterTeacher, true)

	math := testutil.CreateCourse(t, app.crsRepo, tess.ID, "Math 101", "math", true)
	testutil.CreateCourse(t, app.crsRepo, paul.ID, "History", "history", true)
	testutil.CreateEnrollment(t, app.crsRepo, stu.ID, math.ID)

	base := time.Now().UTC().Add(-time.Hour)
	testutil.CreateMessage(t, app.msgRepo, tess.ID, stu.ID, "welcome to class", base)
	testutil.CreateMessage(t, app.msgRepo, stu.ID, tess.ID, "thanks!", base.Add(time.Minute))
	testutil.CreateMessage(t, app.msgRepo, tess.ID, stu.ID, "first quiz on friday", base.Add(2*time.Minute))
	testutil.CreateMessage(t, app.msgRepo, max.ID, stu.ID, "account notice", base.Add(3*time.Minute))

	stuCookies := app.login(t, "stu@test.cd", "secret123")

	t.Run("unread-count", func(t *testing.T) {
		req, rec := newRequest(http.MethodGet, "/messages/unread-count", stuCookies)
		app.server.ServeHTTP(rec, req)
		tt := httpTest{wantCode: http.StatusOK, wantData: marchallObj(t, map[string]int{"unread_count": 3})}
		checkCodeAndData(t, tt, rec)
	})

	t.Run("conversations aggregate per partner, most recent first", func(t *testing.T) {
		req, rec := newRequest(http.MethodGet, "/messages/conversations", stuCookies)
		app.server.ServeHTTP(rec, req)
		checkCode(t, http.StatusOK, rec)

		var conversations []message.Conversation
		decodeBody(t, rec, &conversations)
		if len(conversations) != 2 {
			t.Fatalf("got %d conversations; want 2", len(conversations))
		}
		if conversations[0].PartnerID != max.ID {
			t.Errorf("most recent conversation first: got partner %s", conversations[0].PartnerName)
		}
		tessConv := conversations[1]
		if tessConv.PartnerName != "Tess Owner" || tessConv.PartnerRole != user.RoleTeacher {
			t.Errorf("partner = %+v", tessConv)
		}
		if tessConv.LastMessage.Content != "first quiz on friday" {
			t.Errorf("last message = %q", tessConv.LastMessage.Content)
		}
		if tessConv.UnreadCount != 2 {
			t.Errorf("unread = %d; want 2", tessConv.UnreadCount)
		}
	})

	t.Run("opening a conversation marks it read; repeat is a no-op", func(t *testing.T) {
		for i := 0; i < 2; i++ {
			req, rec := newRequest(http.MethodGet, "/messages/conversation/"+tess.ID, stuCookies)
			app.server.ServeHTTP(rec, req)
			checkCode(t, http.StatusOK, rec)

			var messages []message.Message
			decodeBody(t, rec, &messages)
			if len(messages) != 3 {
				t.Fatalf("got %d messages; want 3", len(messages))
			}
			// chronological, both directions
			if messages[0].Content != "welcome to class" || messages[2].Content != "first quiz on friday" {
				t.Errorf("history out of order: %+v", messages)
			}
			for _, msg := range messages {
				if msg.ReceiverID == stu.ID && !msg.IsRead {
					t.Errorf("message not marked read: %+v", msg)
				}
			}
		}

		count, _ := app.msgRepo.CountUnread(ctx, stu.ID)
		if count != 1 {
			t.Errorf("unread after reading tess = %d; want 1 (max's notice)", count)
		}
	})

	t.Run("send", func(t *testing.T) {
		body := marchallObj(t, map[string]string{"receiver_id": tess.ID, "content": "when is office hours?"})
		req, rec := newRequest(http.MethodPost, "/messages", stuCookies, body)
		app.server.ServeHTTP(rec, req)
		checkCode(t, http.StatusCreated, rec)

		var resp struct {
			Message message.Message `json:"message"`
		}
		decodeBody(t, rec, &resp)
		if resp.Message.SenderID != stu.ID || resp.Message.ReceiverID != tess.ID || resp.Message.IsRead {
			t.Errorf("message = %+v", resp.Message)
		}

		count, _ := app.msgRepo.CountUnread(ctx, tess.ID)
		if count == 0 {
			t.Error("receiver has no unread message")
		}
	})

	t.Run("send to unknown receiver -> 404", func(t *testing.T) {
		body := marchallObj(t, map[string]string{"receiver_id": "nope", "content": "hello?"})
		req, rec := newRequest(http.MethodPost, "/messages", stuCookies, body)
		app.server.ServeHTTP(rec, req)
		tt := httpTest{wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "receiver not found"})}
		checkCodeAndData(t, tt, rec)
	})

	t.Run("send without content -> 400", func(t *testing.T) {
		body := marchallObj(t, map[string]string{"receiver_id": tess.ID})
		req, rec := newRequest(http.MethodPost, "/messages", stuCookies, body)
		app.server.ServeHTTP(rec, req)
		checkCode(t, http.StatusBadRequest, rec)
	})

	t.Run("contacts", func(t *testing.T) {
		// student reaches the teachers of enrolled courses only
		req, rec := newRequest(http.MethodGet, "/messages/contacts", stuCookies)
		app.server.ServeHTTP(rec, req)
		checkCode(t, http.StatusOK, rec)

		var contacts []message.Contact
		decodeBody(t, rec, &contacts)
		if len(contacts) != 1 || contacts[0].ID != tess.ID {
			t.Errorf("student contacts = %+v; want just their teacher", contacts)
		}

		// teacher reaches the students of their own courses
		cookies := app.login(t, "tess@test.cd", "secret123")
		req, rec = newRequest(http.MethodGet, "/messages/contacts", cookies)
		app.server.ServeHTTP(rec, req)
		checkCode(t, http.StatusOK, rec)

		decodeBody(t, rec, &contacts)
		if len(contacts) != 1 || contacts[0].ID != stu.ID {
			t.Errorf("teacher contacts = %+v; want just their student", contacts)
		}

		// a teacher with no enrolled students has nobody to message
		cookies = app.login(t, "paul@test.cd", "secret123")
		req, rec = newRequest(http.MethodGet, "/messages/contacts", cookies)
		app.server.ServeHTTP(rec, req)
		checkCode(t, http.StatusOK, rec)

		decodeBody(t, rec, &contacts)
		if len(contacts) != 0 {
			t.Errorf("paul's contacts = %+v; want none", contacts)
		}

		// admin reaches everyone but themselves
		cookies = app.login(t, "max@test.cd", "secret123")
		req, rec = newRequest(http.MethodGet, "/messages/contacts", cookies)
		app.server.ServeHTTP(rec, req)
		checkCode(t, http.StatusOK, rec)

		decodeBody(t, rec, &contacts)
		if len(contacts) != 3 {
			t.Errorf("admin contacts = %d; want 3", len(contacts))
		}
		for _, c := range contacts {
			if c.ID == max.ID {
				t.Error("admin listed as their own contact")
			}
		}
	})

	t.Run("unauthenticated -> 401", func(t *testing.T) {
		req, rec := newRequest(http.MethodGet, "/messages/unread-count", nil)
		app.server.ServeHTTP(rec, req)
		tt := httpTest{wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errNotAuthed)}
		checkCodeAndData(t, tt, rec)
	})
}
