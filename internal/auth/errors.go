package auth

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/Niranjjith/Department-portal/internal/repository"
)

var (
	ErrInvalidCredentials = errors.New("email or password is incorrect")
	ErrAdminEmailReserved = errors.New("admin email is reserved")
	ErrEmailExists        = repository.ErrEmailExists
	ErrNotFound           = repository.ErrNotFound
	ErrEmailInUse         = errors.New("email already in use")
	ErrFieldsRequired     = errors.New("all fields are required")
	ErrWrongPassword      = errors.New("current password is incorrect")
	ErrPasswordMismatch   = errors.New("new passwords do not match")
	ErrPasswordTooShort   = errors.New("password must be at least 6 characters")
	ErrSetupCompleted     = errors.New("setup has already been completed")
	ErrInvalidSetupToken  = errors.New("invalid or expired setup token")
)

// FieldError describes a problem with one submitted form field.
type FieldError struct {
	Field string
	Tag   string
	Error string
}

type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.Error)
	}
	return strings.Join(msgs, "; ")
}

func (e *ValidationError) has(tag string) bool {
	for _, f := range e.Fields {
		if f.Tag == tag {
			return true
		}
	}
	return false
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report fields by their form names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})
	return v
}

// validateStruct runs the struct tags of in and converts failures into a
// *ValidationError.
func validateStruct(in interface{}) error {
	err := validate.Struct(in)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	fields := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, FieldError{Field: fe.Field(), Tag: fe.Tag(), Error: fieldMessage(fe)})
	}
	return &ValidationError{Fields: fields}
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "email":
		return fe.Field() + " must be a valid email address"
	case "oneof":
		return fe.Field() + " must be one of " + fe.Param()
	case "min":
		return fe.Field() + " must be at least " + fe.Param() + " characters"
	case "eqfield":
		return fe.Field() + " does not match"
	default:
		return fe.Field() + " is invalid"
	}
}
