package types

import (
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

const (
	maxPasswordLength = 72
	maxEmailLength    = 254
	maxFullNameLength = 255
)

// Validate checks the fields required to create a user.
func (c UserCreate) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Email, validation.Required, validation.Length(3, maxEmailLength), is.Email),
		validation.Field(&c.Password, validation.Required, validation.Length(1, maxPasswordLength)),
		validation.Field(&c.FullName, validation.Length(0, maxFullNameLength)),
	)
}

// Validate checks the fields present in the patch. Absent fields are skipped.
func (p UserPatch) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Email, validation.NilOrNotEmpty, validation.Length(3, maxEmailLength), is.Email),
		validation.Field(&p.Password, validation.NilOrNotEmpty, validation.Length(1, maxPasswordLength)),
		validation.Field(&p.FullName, validation.Length(0, maxFullNameLength)),
	)
}
