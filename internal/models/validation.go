package models

// Field identifies a single waitlist form field.
type Field string

// Form fields in declaration order. Aggregated validation results follow
// this order regardless of the order fields were checked in.
const (
	FieldName       Field = "name"
	FieldEmail      Field = "email"
	FieldMessage    Field = "message"
	FieldCompany    Field = "company"
	FieldPhone      Field = "phone"
	FieldNewsletter Field = "subscribed_newsletter"
)

// FieldOrder lists the validatable fields in declaration order. The
// newsletter flag is a boolean and is never validated.
var FieldOrder = []Field{FieldName, FieldEmail, FieldMessage, FieldCompany, FieldPhone}

// Validation error codes.
const (
	CodeRequiredField  = "REQUIRED_FIELD"
	CodeMinLength      = "MIN_LENGTH"
	CodeMaxLength      = "MAX_LENGTH"
	CodeInvalidPattern = "INVALID_PATTERN"
)

// ValidationError describes a single failed rule for a field. A form holds
// at most one error per field at a time.
type ValidationError struct {
	Field   Field  `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// ValidationResult aggregates the outcome of validating a whole form.
// IsValid holds exactly when Errors is empty.
type ValidationResult struct {
	IsValid bool              `json:"is_valid"`
	Errors  []ValidationError `json:"errors"`
}

// ErrorFor returns the error recorded for the given field, or nil.
func (r ValidationResult) ErrorFor(field Field) *ValidationError {
	for i := range r.Errors {
		if r.Errors[i].Field == field {
			return &r.Errors[i]
		}
	}
	return nil
}
