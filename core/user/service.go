package user

import (
	"context"
	"net/mail"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
)

var (
	// errors
	ErrNotFound    = core.NewNotFoundError("user not found")
	ErrEmailExists = errors.New("a user with this email already exists")
	ErrNotTeacher  = errors.New("user is not a teacher")
)

type (
	Repository interface {
		CheckEmailUniqueness(ctx context.Context, email string, excludedUsers ...User) error
		CreateUser(ctx context.Context, usr User) (User, error)
		QueryAllUsers(ctx context.Context) ([]User, error)
		GetUserByID(ctx context.Context, id string) (User, error)
		GetUserByEmail(ctx context.Context, email string) (User, error)
		QueryUsersByID(ctx context.Context, ids []string) ([]User, error)
		// FilterUsers applies AND operation on available QueryFilter fields.
		FilterUsers(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering) ([]User, error)
		UpdateUser(ctx context.Context, usr User) (User, error)
		SetUserApproval(ctx context.Context, id string, approved bool) (User, error)
		SetUserRole(ctx context.Context, id string, role Role, approved bool) (User, error)
		SetLastLogin(ctx context.Context, usr User) (User, error)
		SetUserPassword(ctx context.Context, usr User) (User, error)
		DeleteUser(ctx context.Context, id string) error
	}

	Service interface {
		CheckEmailUniqueness(email string, exclUsers ...User) error
		Register(ctx context.Context, nu NewUser) (User, error)
		QueryAll(ctx context.Context) ([]User, error)
		GetByID(ctx context.Context, id string) (User, error)
		GetByEmail(ctx context.Context, email string) (User, error)
		QueryByID(ctx context.Context, ids []string) ([]User, error)
		Filter(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering) ([]User, error)
		Update(ctx context.Context, id string, uu UpdateUser) (User, error)
		Approve(ctx context.Context, id string) (User, error)
		Reject(ctx context.Context, id string) (User, error)
		Promote(ctx context.Context, id string) (User, error)
		SetLastLogin(ctx context.Context, usr User) (User, error)
		Delete(ctx context.Context, id string) error
		Stats(ctx context.Context) (Stats, error)
		RequestPasswordReset(ctx context.Context, email string) error
		ResetPassword(ctx context.Context, rp ResetUserPassword) error
	}

	service struct {
		repo    Repository
		mailSvc core.EmailService
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, mailSvc core.EmailService) Service {
	return &service{repo: repo, mailSvc: mailSvc}
}

func (svc *service) CheckEmailUniqueness(email string, exclUsers ...User) error {
	if err := svc.repo.CheckEmailUniqueness(context.Background(), email, exclUsers...); err != nil {
		if errors.Cause(err) == ErrEmailExists {
			return core.NewValidationError(err, core.FieldError{Field: "email", Error: err.Error()})
		}
		return err
	}
	return nil
}

// Register creates a self-service account. Students are auto-approved;
// teachers stay unapproved pending admin action.
func (svc *service) Register(ctx context.Context, nu NewUser) (User, error) {
	now := time.Now().UTC()
	usr := User{
		FirstName:  nu.FirstName,
		LastName:   nu.LastName,
		Email:      nu.Email,
		Role:       nu.Role,
		IsApproved: nu.Role == RoleStudent,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, errors.Wrap(err, "hashing password")
	}
	usr, err := svc.repo.CreateUser(ctx, usr)
	if err != nil {
		return User{}, err
	}
	svc.sendWelcomeMail(usr)
	return usr, nil
}

func (svc *service) QueryAll(ctx context.Context) ([]User, error) {
	return svc.repo.QueryAllUsers(ctx)
}

func (svc *service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUserByID(ctx, id)
}

func (svc *service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUserByEmail(ctx, core.CleanString(email, true /* lower */))
}

func (svc *service) QueryByID(ctx context.Context, ids []string) ([]User, error) {
	return svc.repo.QueryUsersByID(ctx, ids)
}

func (svc *service) Filter(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering) ([]User, error) {
	return svc.repo.FilterUsers(ctx, filter, ordering)
}

func (svc *service) Update(ctx context.Context, id string, uu UpdateUser) (User, error) {
	orig, err := svc.repo.GetUserByID(ctx, id)
	if err != nil {
		return User{}, err
	}
	orig.FirstName = uu.FirstName
	orig.LastName = uu.LastName
	orig.Email = uu.Email
	orig.Role = uu.Role
	orig.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, orig)
}

// Approve flips the approval flag of a teacher account. Only role=teacher
// accounts go through the approval workflow.
func (svc *service) Approve(ctx context.Context, id string) (User, error) {
	usr, err := svc.repo.GetUserByID(ctx, id)
	if err != nil {
		return User{}, err
	}
	if !usr.IsTeacher() {
		return User{}, core.NewValidationError(ErrNotTeacher)
	}
	usr, err = svc.repo.SetUserApproval(ctx, id, true)
	if err != nil {
		return User{}, err
	}
	svc.sendApprovedMail(usr)
	return usr, nil
}

func (svc *service) Reject(ctx context.Context, id string) (User, error) {
	usr, err := svc.repo.GetUserByID(ctx, id)
	if err != nil {
		return User{}, err
	}
	if !usr.IsTeacher() {
		return User{}, core.NewValidationError(ErrNotTeacher)
	}
	return svc.repo.SetUserApproval(ctx, id, false)
}

// Promote unconditionally makes the user a master_teacher and approves them.
func (svc *service) Promote(ctx context.Context, id string) (User, error) {
	return svc.repo.SetUserRole(ctx, id, RoleMasterTeacher, true)
}

func (svc *service) SetLastLogin(ctx context.Context, usr User) (User, error) {
	usr.LastLogin = time.Now().UTC()
	return svc.repo.SetLastLogin(ctx, usr)
}

func (svc *service) Delete(ctx context.Context, id string) error {
	return svc.repo.DeleteUser(ctx, id)
}

// Stats scans the full user collection and tallies it by role and approval.
func (svc *service) Stats(ctx context.Context) (Stats, error) {
	users, err := svc.repo.QueryAllUsers(ctx)
	if err != nil {
		return Stats{}, err
	}
	stats := Stats{Total: len(users)}
	for _, usr := range users {
		switch usr.Role {
		case RoleStudent:
			stats.Students++
		case RoleTeacher:
			stats.Teachers++
			if !usr.IsApproved {
				stats.PendingTeachers++
			}
		case RoleMasterTeacher:
			stats.Admins++
		}
	}
	return stats, nil
}

func (svc *service) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	go svc.sendPasswordResetMail(usr)
	return nil
}

func (svc *service) ResetPassword(ctx context.Context, rp ResetUserPassword) error {
	uid, err := decodeUID(rp.UID)
	if err != nil {
		return core.NewValidationError(errInvalidToken)
	}
	usr, err := svc.repo.GetUserByID(ctx, uid)
	if err != nil {
		return err
	}
	if err = verifyToken(usr, rp.Token); err != nil {
		return core.NewValidationError(err)
	}
	if err = usr.SetPassword(rp.Password); err != nil {
		return errors.Wrap(err, "hashing password")
	}
	usr.UpdatedAt = time.Now().UTC()
	_, err = svc.repo.SetUserPassword(ctx, usr)
	return err
}

// mails

func (svc *service) sendWelcomeMail(usr User) {
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name(), Address: usr.Email}},
		Subject:      "Welcome to " + core.Conf.AppName,
		TemplateName: "welcome",
		TemplateData: struct {
			Name            string
			PendingApproval bool
		}{usr.Name(), usr.IsTeacher() && !usr.IsApproved},
	})
}

func (svc *service) sendApprovedMail(usr User) {
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name(), Address: usr.Email}},
		Subject:      "Your teacher account has been approved",
		TemplateName: "account-approved",
		TemplateData: struct{ Name string }{usr.Name()},
	})
}

func (svc *service) sendPasswordResetMail(usr User) {
	token, err := MakeToken(usr)
	if err != nil {
		return
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name(), Address: usr.Email}},
		Subject:      "Password reset",
		TemplateName: "password-reset",
		TemplateData: struct {
			Name  string
			UID   string
			Token string
		}{usr.Name(), EncodeUID(usr), token},
	})
}
