package domain

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// ValidationError describes a single invalid field.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Value   any    `json:"value,omitempty"`
	Rule    string `json:"rule,omitempty"`
}

func (ve *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", ve.Field, ve.Message)
}

// ValidationErrors is a collection of field errors.
type ValidationErrors []ValidationError

func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "validation failed"
	}
	if len(ve) == 1 {
		return fmt.Sprintf("validation failed: %s %s", ve[0].Field, ve[0].Message)
	}
	parts := make([]string, 0, len(ve))
	for _, e := range ve {
		parts = append(parts, e.Field+" "+e.Message)
	}
	return fmt.Sprintf("validation failed: %d field errors (%s)", len(ve), strings.Join(parts, "; "))
}

// Unwrap lets errors.Is match ErrInvalidDocument.
func (ve ValidationErrors) Unwrap() error {
	return ErrInvalidDocument
}

var (
	structValidator     *validator.Validate
	structValidatorOnce sync.Once
)

func documentValidator() *validator.Validate {
	structValidatorOnce.Do(func() {
		structValidator = validator.New()
	})
	return structValidator
}

// ValidateDocument checks struct constraints and the identity rules the
// engine depends on: group ids unique, audio ids unique across the whole
// document.
func ValidateDocument(doc *ExerciseDocument) error {
	if doc == nil {
		return ValidationErrors{{Field: "document", Message: "is required", Rule: "required"}}
	}

	errs, err := StructErrors(doc)
	if err != nil {
		return fmt.Errorf("validate document: %w", err)
	}

	groupIDs := make(map[int]bool, len(doc.Groups))
	audioIDs := make(map[int]int)
	for gi, g := range doc.Groups {
		if groupIDs[g.ID] {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("groups[%d].id", gi),
				Message: "duplicates another group id",
				Value:   g.ID,
				Rule:    "unique",
			})
		}
		groupIDs[g.ID] = true

		for ai, a := range g.AudioItems {
			if owner, dup := audioIDs[a.ID]; dup {
				errs = append(errs, ValidationError{
					Field:   fmt.Sprintf("groups[%d].audioElements[%d].id", gi, ai),
					Message: fmt.Sprintf("duplicates an audio id already used in group %d", owner),
					Value:   a.ID,
					Rule:    "unique",
				})
				continue
			}
			audioIDs[a.ID] = g.ID
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// StructErrors runs the struct-tag rules on v and converts failures into
// ValidationErrors. The error return is reserved for unusable input.
func StructErrors(v any) (ValidationErrors, error) {
	err := documentValidator().Struct(v)
	if err == nil {
		return nil, nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return nil, err
	}
	errs := make(ValidationErrors, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		errs = append(errs, ValidationError{
			Field:   fe.Namespace(),
			Message: ruleMessage(fe),
			Value:   fe.Value(),
			Rule:    fe.Tag(),
		})
	}
	return errs, nil
}

func ruleMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gt":
		return "must be greater than " + fe.Param()
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "min":
		return "must have at least " + fe.Param() + " entries"
	default:
		return "failed " + fe.Tag() + " validation"
	}
}
