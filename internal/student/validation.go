package student

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// EmailChecker answers the uniqueness question for the validator.
type EmailChecker interface {
	EmailExists(ctx context.Context, email string, excludeID int) (bool, error)
}

type Validator struct {
	validate *validator.Validate
	emails   EmailChecker
	now      func() time.Time
}

func NewValidator(emails EmailChecker, now func() time.Time) *Validator {
	v := validator.New()
	// "numeric" would also accept signs and decimals
	_ = v.RegisterValidation("digits", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		for i := 0; i < len(s); i++ {
			if s[i] < '0' || s[i] > '9' {
				return false
			}
		}
		return true
	})

	if now == nil {
		now = time.Now
	}

	return &Validator{
		validate: v,
		emails:   emails,
		now:      now,
	}
}

// Today is the current calendar date as seen by the validator.
func (v *Validator) Today() time.Time {
	return dateOnly(v.now())
}

// Validate checks a candidate record and returns the normalized values.
// excludeID is the record being updated (0 on create) and is left out of
// the email uniqueness check. With partial set, absent fields are skipped
// instead of reported as missing. Field problems are collected into a
// *ValidationError; any other error comes from the email lookup.
func (v *Validator) Validate(ctx context.Context, in Input, excludeID int, partial bool) (Changes, error) {
	var ch Changes
	verr := NewValidationError()

	if name, ok := v.text(verr, "name", in.Name, partial, "required,max=100"); ok {
		ch.Name = &name
	}

	if course, ok := v.text(verr, "course", in.Course, partial, "required,max=100"); ok {
		ch.Course = &course
	}

	if email, ok := v.text(verr, "email", in.Email, partial, "required,max=254,email"); ok {
		taken, err := v.emails.EmailExists(ctx, email, excludeID)
		if err != nil {
			return Changes{}, fmt.Errorf("checking email uniqueness: %w", err)
		}
		if taken {
			verr.Add("email", msgEmailTaken)
		} else {
			ch.Email = &email
		}
	}

	if phone, ok := v.text(verr, "phone", in.Phone, partial, "required"); ok {
		// reported independently so both messages surface
		digits := v.check(verr, "phone", phone, "digits")
		length := v.check(verr, "phone", phone, "len=10")
		if digits && length {
			ch.Phone = &phone
		}
	}

	if raw, ok := v.text(verr, "date_of_joining", in.DateOfJoining, partial, "required"); ok {
		if joined, ok := v.joiningDate(verr, raw); ok {
			ch.DateOfJoining = &joined
		}
	}

	if !verr.Empty() {
		return Changes{}, verr
	}
	return ch, nil
}

// text trims a submitted string and runs tags against it. It reports
// whether the value is usable.
func (v *Validator) text(verr *ValidationError, field string, value *string, partial bool, tags string) (string, bool) {
	if value == nil {
		if !partial {
			verr.Add(field, msgRequired)
		}
		return "", false
	}

	s := strings.TrimSpace(*value)
	if !v.check(verr, field, s, tags) {
		return "", false
	}
	return s, true
}

func (v *Validator) check(verr *ValidationError, field, value, tags string) bool {
	err := v.validate.Var(value, tags)
	if err == nil {
		return true
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		for _, fe := range fieldErrs {
			verr.Add(field, message(fe))
		}
	} else {
		verr.Add(field, err.Error())
	}
	return false
}

func (v *Validator) joiningDate(verr *ValidationError, raw string) (time.Time, bool) {
	joined, err := time.Parse(DateLayout, raw)
	if err != nil {
		verr.Add("date_of_joining", "Date has wrong format. Use one of these formats instead: YYYY-MM-DD.")
		return time.Time{}, false
	}
	if joined.After(v.Today()) {
		verr.Add("date_of_joining", "Date of joining cannot be in the future.")
		return time.Time{}, false
	}
	return joined, true
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field may not be blank."
	case "max":
		return fmt.Sprintf("Ensure this field has no more than %s characters.", fe.Param())
	case "email":
		return "Enter a valid email address."
	case "digits":
		return "Phone number must contain only digits."
	case "len":
		return fmt.Sprintf("Phone number must be exactly %s digits.", fe.Param())
	default:
		return fmt.Sprintf("Failed on the '%s' rule.", fe.Tag())
	}
}
