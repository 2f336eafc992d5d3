package errors

import "strings"

// ValidationErrors aggregates multiple validation errors
type ValidationErrors struct {
	Errors []*AppError `json:"errors"`
}

// NewValidationErrors creates a new validation errors collection
func NewValidationErrors() *ValidationErrors {
	return &ValidationErrors{
		Errors: make([]*AppError, 0),
	}
}

// Add adds a validation error for a field
func (v *ValidationErrors) Add(field string, message string) {
	err := NewValidationError(message).
		WithDetails(map[string]interface{}{"field": field})
	v.Errors = append(v.Errors, err)
}

// AddError adds an existing error
func (v *ValidationErrors) AddError(err *AppError) {
	v.Errors = append(v.Errors, err)
}

// HasErrors returns true if there are validation errors
func (v *ValidationErrors) HasErrors() bool {
	return len(v.Errors) > 0
}

// Error implements the error interface
func (v *ValidationErrors) Error() string {
	if len(v.Errors) == 0 {
		return ""
	}

	messages := make([]string, len(v.Errors))
	for i, err := range v.Errors {
		messages[i] = err.Message
	}
	return strings.Join(messages, "; ")
}

// ToMap groups error messages by field
func (v *ValidationErrors) ToMap() map[string][]string {
	result := make(map[string][]string)

	for _, err := range v.Errors {
		field, ok := err.Details["field"].(string)
		if !ok {
			field = "_"
		}
		result[field] = append(result[field], err.Message)
	}

	return result
}
