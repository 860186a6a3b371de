// Package validation implements the pure, synchronous validation and
// sanitization rules for the waitlist form. Rules never perform I/O and
// never panic; failures are always returned as data so the form controller
// and HTTP handlers can surface them field by field.
package validation

import (
	"fmt"
	"regexp"
	"unicode/utf8"

	"github.com/example/waitlist-service/internal/models"
)

var (
	namePattern  = regexp.MustCompile(`^[a-zA-Z\s'-]+$`)
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phonePattern = regexp.MustCompile(`^[+]?[1-9][0-9]{0,15}$`)
)

// rule captures the constraints for a single field. Length limits are in
// runes and are checked before the pattern so an over-long value reports a
// length violation rather than a pattern one.
type rule struct {
	label      string
	required   bool
	minLen     int
	maxLen     int
	pattern    *regexp.Regexp
	patternMsg string
}

var rules = map[models.Field]rule{
	models.FieldName: {
		label:      "Name",
		required:   true,
		minLen:     2,
		maxLen:     50,
		pattern:    namePattern,
		patternMsg: "Name may only contain letters, spaces, hyphens and apostrophes",
	},
	models.FieldEmail: {
		label:      "Email",
		required:   true,
		minLen:     5,
		maxLen:     254,
		pattern:    emailPattern,
		patternMsg: "Please enter a valid email address",
	},
	models.FieldMessage: {
		label:  "Message",
		minLen: 10,
		maxLen: 1000,
	},
	models.FieldCompany: {
		label:  "Company",
		minLen: 2,
		maxLen: 100,
	},
	models.FieldPhone: {
		label:      "Phone",
		pattern:    phonePattern,
		patternMsg: "Please enter a valid phone number",
	},
}

// ValidateField checks a single raw value against the rules for the given
// field and returns the first violated rule as a ValidationError, or nil
// when the value is acceptable. Values are trimmed and tag-stripped before
// the check so surrounding whitespace never trips a length rule. Fields
// without rules (the newsletter flag, unknown fields) are always valid.
func ValidateField(field models.Field, value string) *models.ValidationError {
	r, ok := rules[field]
	if !ok {
		return nil
	}

	cleaned := cleanText(value)
	if cleaned == "" {
		if r.required {
			return &models.ValidationError{
				Field:   field,
				Message: fmt.Sprintf("%s is required", r.label),
				Code:    models.CodeRequiredField,
			}
		}
		return nil
	}

	length := utf8.RuneCountInString(cleaned)
	if r.minLen > 0 && length < r.minLen {
		return &models.ValidationError{
			Field:   field,
			Message: fmt.Sprintf("%s must be at least %d characters", r.label, r.minLen),
			Code:    models.CodeMinLength,
		}
	}
	if r.maxLen > 0 && length > r.maxLen {
		return &models.ValidationError{
			Field:   field,
			Message: fmt.Sprintf("%s must be no more than %d characters", r.label, r.maxLen),
			Code:    models.CodeMaxLength,
		}
	}

	if r.pattern != nil && !r.pattern.MatchString(cleaned) {
		return &models.ValidationError{
			Field:   field,
			Message: r.patternMsg,
			Code:    models.CodeInvalidPattern,
		}
	}

	return nil
}

// ValidateForm applies ValidateField to every field and aggregates all
// failures in field declaration order. It does not short-circuit on the
// first failure.
func ValidateForm(data models.FormData) models.ValidationResult {
	result := models.ValidationResult{IsValid: true}
	for _, field := range models.FieldOrder {
		if err := ValidateField(field, fieldValue(data, field)); err != nil {
			result.Errors = append(result.Errors, *err)
		}
	}
	result.IsValid = len(result.Errors) == 0
	return result
}

// Checked is the combined outcome of ValidateAndSanitize.
type Checked struct {
	IsValid       bool
	Errors        []models.ValidationError
	SanitizedData models.FormData
}

// ValidateAndSanitize sanitizes the form first and validates the sanitized
// copy, so that markup and stray whitespace can never cause spurious
// length failures. The sanitized data is returned regardless of validity.
func ValidateAndSanitize(data models.FormData) Checked {
	sanitized := Sanitize(data)
	result := ValidateForm(sanitized)
	return Checked{
		IsValid:       result.IsValid,
		Errors:        result.Errors,
		SanitizedData: sanitized,
	}
}

func fieldValue(data models.FormData, field models.Field) string {
	switch field {
	case models.FieldName:
		return data.Name
	case models.FieldEmail:
		return data.Email
	case models.FieldMessage:
		return deref(data.Message)
	case models.FieldCompany:
		return deref(data.Company)
	case models.FieldPhone:
		return deref(data.Phone)
	default:
		return ""
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
