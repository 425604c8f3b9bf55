package models

import "strings"

// APIErrorBody is the error envelope shared by the three remote services.
type APIErrorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
	Success *bool  `json:"success,omitempty"`
}

// Text returns the most specific message the body carries.
func (b APIErrorBody) Text() string {
	if msg := strings.TrimSpace(b.Message); msg != "" {
		return msg
	}
	return strings.TrimSpace(b.Error)
}

// ValidationError represents a single field validation error
type ValidationError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Message string `json:"message"`
}

// ValidationErrors represents multiple validation errors
type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	if len(v.Errors) == 0 {
		return "validation failed"
	}
	return v.Errors[0].Message
}

// HasField reports whether any error was raised for field.
func (v ValidationErrors) HasField(field string) bool {
	for _, e := range v.Errors {
		if e.Field == field {
			return true
		}
	}
	return false
}
