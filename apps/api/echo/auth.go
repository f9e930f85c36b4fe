package echoapi

import (
	"encoding/gob"

	"github.com/gorilla/sessions"
	"github.com/labstack/echo-contrib/session"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/user"
)

const (
	sessionName        = "session"
	sessionIdentityKey = "identity"
)

func init() {
	gob.Register(Identity{})
}

// Identity is the session-bound user snapshot established at login or
// registration. id, name, email and role are authoritative as of that
// moment; is_approved is advisory only and every approval-gated operation
// re-reads the live user record instead of trusting it.
type Identity struct {
	ID         string    `json:"id"`
	FirstName  string    `json:"first_name"`
	LastName   string    `json:"last_name"`
	Email      string    `json:"email"`
	Role       user.Role `json:"role"`
	IsApproved bool      `json:"is_approved"`
}

func (i Identity) Name() string {
	return core.CleanString(i.FirstName + " " + i.LastName)
}

func newIdentity(usr user.User) Identity {
	return Identity{
		ID:         usr.ID,
		FirstName:  usr.FirstName,
		LastName:   usr.LastName,
		Email:      usr.Email,
		Role:       usr.Role,
		IsApproved: usr.IsApproved,
	}
}

func saveIdentity(ctx echo.Context, usr user.User) error {
	sess, err := session.Get(sessionName, ctx)
	if err != nil {
		return errors.Wrap(err, "getting session")
	}
	sess.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int(core.Conf.SessionTTL.Seconds()),
		HttpOnly: true,
	}
	sess.Values[sessionIdentityKey] = newIdentity(usr)
	return errors.Wrap(sess.Save(ctx.Request(), ctx.Response()), "saving session")
}

func getIdentity(ctx echo.Context) (Identity, error) {
	sess, err := session.Get(sessionName, ctx)
	if err != nil {
		return Identity{}, errNotAuthenticated
	}
	identity, ok := sess.Values[sessionIdentityKey].(Identity)
	if !ok || identity.ID == "" {
		return Identity{}, errNotAuthenticated
	}
	return identity, nil
}

func clearIdentity(ctx echo.Context) error {
	sess, err := session.Get(sessionName, ctx)
	if err != nil {
		return errors.Wrap(err, "getting session")
	}
	sess.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	}
	delete(sess.Values, sessionIdentityKey)
	return errors.Wrap(sess.Save(ctx.Request(), ctx.Response()), "destroying session")
}

// authenticate verifies the email/password pair. Unknown email and wrong
// password are indistinguishable to the caller.
func authenticate(ctx echo.Context, email, pwd string, svc user.Service) (user.User, error) {
	usr, err := svc.GetByEmail(ctx.Request().Context(), email)
	if err != nil {
		if core.IsNotFound(errors.Cause(err)) {
			return user.User{}, errInvalidCredentials
		}
		return user.User{}, errors.Wrap(err, "finding user by email")
	}
	if err = usr.CheckPassword(pwd); err != nil {
		return user.User{}, errInvalidCredentials
	}
	return usr, nil
}
