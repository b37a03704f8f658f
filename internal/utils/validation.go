package utils

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
)

// DateLayout is the calendar date format used everywhere a day is stored or typed.
const DateLayout = "2006-01-02"

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// usernamePattern allows letters, digits, dot, dash and underscore.
var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// Validator returns the shared struct validator with the custom tags registered.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		_ = validate.RegisterValidation("username", func(fl validator.FieldLevel) bool {
			return usernamePattern.MatchString(fl.Field().String())
		})
		_ = validate.RegisterValidation("isodate", func(fl validator.FieldLevel) bool {
			_, err := time.Parse(DateLayout, fl.Field().String())
			return err == nil
		})
	})
	return validate
}

// ValidationError lists the fields of a struct that failed validation.
type ValidationError struct {
	Fields []string
	Err    error
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return "invalid input: " + strings.Join(e.Fields, "; ")
}

// Unwrap returns the underlying validator error.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Validate checks v against its `validate` struct tags.
func Validate(v any) error {
	err := Validator().Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, describeFieldError(fe))
	}
	return &ValidationError{Fields: fields, Err: err}
}

func describeFieldError(fe validator.FieldError) string {
	name := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return name + " is required"
	case "email":
		return name + " must be a valid email address"
	case "username":
		return name + " may only contain letters, digits, '.', '-' and '_'"
	case "isodate":
		return name + " must be a date in YYYY-MM-DD format"
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", name, fe.Param())
	case "min", "gte":
		return fmt.Sprintf("%s must be at least %s", name, fe.Param())
	case "max", "lte":
		return fmt.Sprintf("%s must be at most %s", name, fe.Param())
	case "gtefield":
		return fmt.Sprintf("%s must not be less than %s", name, strings.ToLower(fe.Param()))
	default:
		return fmt.Sprintf("%s failed %s", name, fe.Tag())
	}
}

// relativePattern matches relative day offsets like -3d, +1d, -2w
var relativePattern = regexp.MustCompile(`^([+-])(\d+)([dw])$`)

// ParseDay parses "today", "yesterday", a relative offset (-3d, +1w) or a
// YYYY-MM-DD date, relative to now. The result is midnight local time.
func ParseDay(dateStr string, now time.Time) (time.Time, error) {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	lower := strings.ToLower(strings.TrimSpace(dateStr))
	switch lower {
	case "", "today":
		return today, nil
	case "yesterday":
		return today.AddDate(0, 0, -1), nil
	case "tomorrow":
		return today.AddDate(0, 0, 1), nil
	}

	if matches := relativePattern.FindStringSubmatch(lower); matches != nil {
		num, err := strconv.Atoi(matches[2])
		if err != nil {
			return time.Time{}, ErrInvalidDate(dateStr)
		}
		if matches[1] == "-" {
			num = -num
		}
		if matches[3] == "w" {
			num *= 7
		}
		return today.AddDate(0, 0, num), nil
	}

	parsed, err := time.ParseInLocation(DateLayout, lower, now.Location())
	if err != nil {
		return time.Time{}, ErrInvalidDate(dateStr)
	}
	return parsed, nil
}
