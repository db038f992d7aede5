// ABOUTME: Error taxonomy for pipeline operations
// ABOUTME: Validation errors carry field messages, step errors name the failed write
package crm

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	ErrLeadAlreadyConverted = errors.New("lead already converted")
	ErrForbidden            = errors.New("forbidden")
	ErrQuoteAlreadyLinked   = errors.New("quote already linked to an opportunity")
	ErrOrganizationInUse    = errors.New("organization has opportunities")
)

// ValidationError is raised before any store call. Fields maps the input
// field to a human message.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

func invalid(field, message string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: message}}
}

// add records a message and returns the receiver so callers can chain.
func (e *ValidationError) add(field, message string) *ValidationError {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	e.Fields[field] = message
	return e
}

// orNil lets callers build a ValidationError incrementally and return nil
// when nothing was added.
func (e *ValidationError) orNil() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

// StepError marks which write of a multi-step operation failed. The whole
// operation was rolled back.
type StepError struct {
	Op   string
	Step int
	Name string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: step %d (%s) failed: %v", e.Op, e.Step, e.Name, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// validateStruct runs the struct tags and folds the result into a
// ValidationError.
func validateStruct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	out := &ValidationError{}
	for _, fe := range verrs {
		field := fe.Field()
		switch fe.Tag() {
		case "required":
			out.add(field, field+" is required")
		case "required_without":
			out.add(field, field+" or "+jsonName(s, fe.Param())+" is required")
		case "required_with":
			out.add(field, field+" is required when a contact person is named")
		case "email":
			out.add(field, field+" must be a valid email")
		case "max":
			out.add(field, field+" must be at most "+fe.Param()+" characters")
		case "oneof":
			out.add(field, field+" must be one of: "+fe.Param())
		default:
			out.add(field, field+" is invalid")
		}
	}
	return out
}

// jsonName maps a Go field name used in a tag parameter back to its json name.
func jsonName(s any, goField string) string {
	t := reflect.TypeOf(s)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if f, ok := t.FieldByName(goField); ok {
		if name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]; name != "" && name != "-" {
			return name
		}
	}
	return strings.ToLower(goField)
}
