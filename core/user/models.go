package user

import (
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/darasa/core"
)

// Role is the closed set of account roles. A master_teacher is the
// administrator role; it bypasses all ownership checks.
type Role string

const (
	RoleStudent       Role = "student"
	RoleTeacher       Role = "teacher"
	RoleMasterTeacher Role = "master_teacher"
)

var AllRoles = []Role{RoleStudent, RoleTeacher, RoleMasterTeacher}

func (r Role) IsValid() bool {
	switch r {
	case RoleStudent, RoleTeacher, RoleMasterTeacher:
		return true
	}
	return false
}

func (r Role) IsAdmin() bool { return r == RoleMasterTeacher }

type User struct {
	ID           string    `json:"id"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	Email        string    `json:"email"`
	Role         Role      `json:"role"`
	IsApproved   bool      `json:"is_approved"`
	PasswordHash []byte    `json:"-"`
	CreatedAt    time.Time `json:"created_at"` // UTC
	UpdatedAt    time.Time `json:"updated_at"` // UTC
	LastLogin    time.Time `json:"last_login"` // UTC
}

func (u *User) Name() string {
	return core.CleanString(u.FirstName + " " + u.LastName)
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

func (u *User) IsAdmin() bool   { return u.Role.IsAdmin() }
func (u *User) IsTeacher() bool { return u.Role == RoleTeacher }
func (u *User) IsStudent() bool { return u.Role == RoleStudent }

// CanMutateCourses reports whether the account has passed the approval gate.
// Students never mutate courses; teachers need admin approval first.
func (u *User) CanMutateCourses() bool {
	switch u.Role {
	case RoleMasterTeacher:
		return true
	case RoleTeacher:
		return u.IsApproved
	}
	return false
}

// NewUser contains information needed to register a new User.
type NewUser struct {
	FirstName string `json:"first_name" validate:"required"`
	LastName  string `json:"last_name" validate:"required"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=6"`
	Role      Role   `json:"role"`
}

func (nu *NewUser) Validate(svc Service) error {
	nu.FirstName = core.CleanString(nu.FirstName)
	nu.LastName = core.CleanString(nu.LastName)
	nu.Email = core.CleanString(nu.Email, true /* lower */)

	// self-service registration is restricted to student/teacher; anything
	// else silently downgrades to student.
	if !(nu.Role == RoleStudent || nu.Role == RoleTeacher) {
		nu.Role = RoleStudent
	}

	if err := core.Validate.Struct(nu); err != nil {
		return err
	}
	return svc.CheckEmailUniqueness(nu.Email)
}

// UpdateUser defines what information an admin may modify on an existing
// User. Empty fields are left untouched.
type UpdateUser struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email" validate:"omitempty,email"`
	Role      Role   `json:"role" validate:"omitempty,role"`
}

func (uu *UpdateUser) Validate(origUsr User, svc Service) error {
	if fname := core.CleanString(uu.FirstName); fname != "" {
		uu.FirstName = fname
	} else {
		uu.FirstName = origUsr.FirstName
	}
	if lname := core.CleanString(uu.LastName); lname != "" {
		uu.LastName = lname
	} else {
		uu.LastName = origUsr.LastName
	}
	if email := core.CleanString(uu.Email, true /* lower */); email != "" {
		uu.Email = email
	} else {
		uu.Email = origUsr.Email
	}
	if uu.Role == "" {
		uu.Role = origUsr.Role
	}

	if err := core.Validate.Struct(uu); err != nil {
		return err
	}
	return svc.CheckEmailUniqueness(uu.Email, origUsr)
}

type ResetUserPassword struct {
	Token    string `json:"token,omitempty" validate:"required"`
	UID      string `json:"uid,omitempty" validate:"required"`
	Password string `json:"password,omitempty" validate:"required,min=6"`
}

func (rp ResetUserPassword) Validate() error { return core.Validate.Struct(rp) }

type QueryFilter struct {
	Role       Role  `query:"role"`
	IsApproved *bool `query:"is_approved"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Role == "" && qf.IsApproved == nil
}

// Stats is the admin dashboard user breakdown, computed by scanning the full
// user collection. Acceptable at this scale.
type Stats struct {
	Students        int `json:"students"`
	Teachers        int `json:"teachers"`
	Admins          int `json:"admins"`
	PendingTeachers int `json:"pending_teachers"`
	Total           int `json:"total_users"`
}
