package validation

// Violation codes shared by the step and file validators.
const (
	CodeMissingRequired  = "MISSING_REQUIRED"
	CodeInvalidFormat    = "INVALID_FORMAT"
	CodeInvalidValue     = "INVALID_VALUE"
	CodeInvalidEnumValue = "INVALID_ENUM_VALUE"
	CodeSchemaViolation  = "SCHEMA_VIOLATION"
)

// ValidationResult is the outcome of validating one step or one file.
// Errors keeps insertion order; Valid is true exactly when Errors is empty.
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// NewResult returns an empty, valid result.
func NewResult() *ValidationResult {
	return &ValidationResult{Valid: true}
}

// Add records a violation.
func (r *ValidationResult) Add(field, code, message string) {
	r.Errors = append(r.Errors, ValidationError{
		Field:   field,
		Message: message,
		Code:    code,
	})
	r.Valid = false
}

// Merge appends every violation of other.
func (r *ValidationResult) Merge(other *ValidationResult) {
	if other == nil {
		return
	}
	for _, e := range other.Errors {
		r.Add(e.Field, e.Code, e.Message)
	}
}

// First returns the first violation, if any.
func (r *ValidationResult) First() (ValidationError, bool) {
	if len(r.Errors) == 0 {
		return ValidationError{}, false
	}
	return r.Errors[0], true
}

// HasField reports whether field has at least one violation.
func (r *ValidationResult) HasField(field string) bool {
	for _, e := range r.Errors {
		if e.Field == field {
			return true
		}
	}
	return false
}
