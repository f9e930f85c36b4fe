package user

import (
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/darasa/core"
)

var (
	roleTag  = "role"
	roleText = "invalid role"
)

func init() {
	_ = core.Validate.RegisterValidation(roleTag, roleValidation)
	core.RegisterCustomTranslation(roleTag, roleText)
}

// roleValidation checks that a provided role is in the closed role set.
func roleValidation(fl validator.FieldLevel) bool {
	return Role(fl.Field().String()).IsValid()
}
