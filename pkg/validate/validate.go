// Package validate wraps go-playground/validator with the request rules
// used across the auth surface: email shape, password strength, and
// display-name constraints.
package validate

import (
	"errors"
	"reflect"
	"regexp"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

var nameRe = regexp.MustCompile(`^[a-zA-Z\s]+$`)

var v = newValidator()

func newValidator() *validator.Validate {
	val := validator.New(validator.WithRequiredStructEnabled())

	// Report fields by their json name so validation errors line up with
	// the request payload the client actually sent.
	val.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return fld.Name
		}
		return name
	})

	_ = val.RegisterValidation("strongpassword", func(fl validator.FieldLevel) bool {
		return PasswordStrength(fl.Field().String()) == nil
	})
	_ = val.RegisterValidation("displayname", func(fl validator.FieldLevel) bool {
		return nameRe.MatchString(fl.Field().String())
	})

	return val
}

// Struct validates a tagged request struct. It returns nil when the value is
// valid, otherwise a field→message map suitable for a 400 response body.
func Struct(s any) map[string]string {
	err := v.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return map[string]string{"request": "invalid request"}
	}

	out := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		out[fe.Field()] = message(fe)
	}
	return out
}

// Email reports whether s looks like a valid email address.
func Email(s string) bool {
	return v.Var(s, "required,email") == nil
}

// PasswordStrength checks the password policy and returns a descriptive
// error for the first failing rule, or nil if the password is acceptable.
func PasswordStrength(pw string) error {
	if len(pw) < 8 {
		return errors.New("Password must be at least 8 characters long")
	}

	var upper, lower, digit, special bool
	for _, c := range pw {
		switch {
		case unicode.IsUpper(c):
			upper = true
		case unicode.IsLower(c):
			lower = true
		case unicode.IsDigit(c):
			digit = true
		case strings.ContainsRune(`!@#$%^&*(),.?":{}|<>`, c):
			special = true
		}
	}

	switch {
	case !upper:
		return errors.New("Password must contain at least one uppercase letter")
	case !lower:
		return errors.New("Password must contain at least one lowercase letter")
	case !digit:
		return errors.New("Password must contain at least one number")
	case !special:
		return errors.New("Password must contain at least one special character")
	}
	return nil
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required"
	case "email":
		return "Invalid email format"
	case "min", "max":
		return "Name must be between 2 and 50 characters"
	case "displayname":
		return "Name can only contain letters and spaces"
	case "strongpassword":
		if pw, ok := fe.Value().(string); ok {
			if err := PasswordStrength(pw); err != nil {
				return err.Error()
			}
		}
		return "Password is not strong enough"
	case "eqfield":
		return "Passwords do not match"
	default:
		return "Invalid value"
	}
}
