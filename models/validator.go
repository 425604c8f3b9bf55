package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/trafficportal/linkshortener/utils"
)

var validate *validator.Validate

func init() {
	validate = validator.New()

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	validate.RegisterValidation("url_scheme", func(fl validator.FieldLevel) bool {
		return utils.ValidateURLScheme(fl.Field().String()) == nil
	})

	validate.RegisterValidation("tpkey", func(fl validator.FieldLevel) bool {
		return utils.IsValidKey(fl.Field().String())
	})
}

// ValidateStruct validates a struct using the validator
func ValidateStruct(s interface{}) error {
	return validate.Struct(s)
}

// Validate runs struct validation and reports failures as ValidationErrors.
func Validate(s interface{}) error {
	err := ValidateStruct(s)
	if err == nil {
		return nil
	}

	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err
	}
	return ValidationErrors{Errors: parseValidationErrors(validationErrs)}
}

// DecodeAndValidate parses a JSON body into T and validates it
func DecodeAndValidate[T any](body io.Reader) (*T, error) {
	var req T
	var allErrors []ValidationError

	if err := json.NewDecoder(body).Decode(&req); err != nil {
		// Check if it's a type mismatch error (e.g., string instead of int)
		var jsonErr *json.UnmarshalTypeError
		if errors.As(err, &jsonErr) {
			allErrors = append(allErrors, ValidationError{
				Field:   jsonErr.Field,
				Tag:     "type",
				Message: fmt.Sprintf("Invalid type for field '%s': expected %s but got %s", jsonErr.Field, jsonErr.Type.String(), jsonErr.Value),
			})
			// Continue to validate other fields even after type error
		} else {
			allErrors = append(allErrors, ValidationError{
				Field:   "",
				Tag:     "json",
				Message: "Invalid request body: " + err.Error(),
			})
			return nil, ValidationErrors{Errors: allErrors}
		}
	}

	if err := ValidateStruct(&req); err != nil {
		allErrors = append(allErrors, parseValidationErrors(err)...)
	}

	if len(allErrors) > 0 {
		return nil, ValidationErrors{Errors: allErrors}
	}

	return &req, nil
}

func parseValidationErrors(err error) []ValidationError {
	var validationErrors []ValidationError

	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		for _, fieldErr := range validationErrs {
			validationErrors = append(validationErrors, ValidationError{
				Field:   getJSONFieldName(fieldErr),
				Tag:     fieldErr.Tag(),
				Message: getValidationMessage(fieldErr),
			})
		}
	}

	return validationErrors
}

func getJSONFieldName(fieldErr validator.FieldError) string {
	// "ScreenshotRequest.viewport.width" -> "viewport.width"
	namespace := fieldErr.Namespace()
	parts := strings.Split(namespace, ".")

	if len(parts) <= 1 {
		return fieldErr.Field()
	}

	jsonParts := make([]string, 0, len(parts)-1)
	for i := 1; i < len(parts); i++ {
		jsonParts = append(jsonParts, toLowerFirst(parts[i]))
	}

	return strings.Join(jsonParts, ".")
}

func toLowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

func getValidationMessage(fieldErr validator.FieldError) string {
	field := getJSONFieldName(fieldErr)
	switch fieldErr.Tag() {
	case "required":
		return fmt.Sprintf("Field '%s' is required", field)
	case "url":
		return fmt.Sprintf("Field '%s' must be a valid URL", field)
	case "url_scheme":
		return fmt.Sprintf("Field '%s' has an invalid URL scheme", field)
	case "tpkey":
		return fmt.Sprintf("Field '%s' may only contain letters, digits, '-' and '_'", field)
	case "hostname_rfc1123":
		return fmt.Sprintf("Field '%s' must be a valid domain", field)
	case "oneof":
		return fmt.Sprintf("Field '%s' must be one of [%s]", field, fieldErr.Param())
	case "min":
		return fmt.Sprintf("Field '%s' must be at least %s", field, fieldErr.Param())
	case "gt":
		return fmt.Sprintf("Field '%s' must be greater than %s", field, fieldErr.Param())
	case "max":
		return fmt.Sprintf("Field '%s' must be at most %s", field, fieldErr.Param())
	default:
		return fmt.Sprintf("Field '%s' failed validation on '%s' tag", field, fieldErr.Tag())
	}
}
