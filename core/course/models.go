package course

import (
	"time"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/user"
)

type Course struct {
	ID          string    `json:"id"`
	TeacherID   string    `json:"teacher_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Subject     string    `json:"subject"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"` // UTC
	UpdatedAt   time.Time `json:"updated_at"` // UTC
}

// OwnedBy reports whether the given identity may mutate this course: the
// owning teacher, or any admin.
func (c *Course) OwnedBy(userID string, role user.Role) bool {
	if role.IsAdmin() {
		return true
	}
	return c.TeacherID == userID
}

type Enrollment struct {
	StudentID  string    `json:"student_id"`
	CourseID   string    `json:"course_id"`
	EnrolledAt time.Time `json:"enrolled_at"` // UTC
}

// Info is a Course enriched for the role-aware listings.
type Info struct {
	Course
	TeacherName     string `json:"teacher_name,omitempty"`
	EnrollmentCount int    `json:"enrollment_count"`
	AssignmentCount int    `json:"assignment_count"`
	IsEnrolled      bool   `json:"is_enrolled"`
}

// Detail is the single-course payload; the assignment list is attached by
// the API layer.
type Detail struct {
	Course
	Teacher         user.User `json:"teacher"`
	EnrollmentCount int       `json:"enrollment_count"`
	IsEnrolled      bool      `json:"is_enrolled"`
}

// EnrolledStudent merges a student with their enrollment timestamp.
type EnrolledStudent struct {
	user.User
	EnrolledAt time.Time `json:"enrolled_at"`
}

// NewCourse contains information needed to create a new Course.
type NewCourse struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
	Subject     string `json:"subject"`
}

func (nc *NewCourse) Validate() error {
	nc.Name = core.CleanString(nc.Name)
	nc.Description = core.CleanString(nc.Description)
	nc.Subject = core.CleanString(nc.Subject)
	return core.Validate.Struct(nc)
}

// UpdateCourse defines what may be modified on an existing Course. Empty
// fields are left untouched.
type UpdateCourse struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Subject     string `json:"subject"`
}

func (uc *UpdateCourse) Validate(orig Course) error {
	if name := core.CleanString(uc.Name); name != "" {
		uc.Name = name
	} else {
		uc.Name = orig.Name
	}
	if desc := core.CleanString(uc.Description); desc != "" {
		uc.Description = desc
	} else {
		uc.Description = orig.Description
	}
	if subj := core.CleanString(uc.Subject); subj != "" {
		uc.Subject = subj
	} else {
		uc.Subject = orig.Subject
	}
	return core.Validate.Struct(uc)
}
