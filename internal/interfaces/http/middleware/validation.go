package middleware

import (
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/returnflow/backend/internal/domain/returns"
	"github.com/returnflow/backend/internal/domain/sequence"
	"github.com/returnflow/backend/internal/interfaces/http/dto"
)

// SetupValidator configures gin's validator: JSON names in error details plus
// the return_status, return_action, disposition and counter_family tags.
func SetupValidator() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errors.New("gin validator engine is not go-playground/validator")
	}
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		for _, tag := range []string{"json", "form", "uri"} {
			name := strings.SplitN(fld.Tag.Get(tag), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name != "" {
				return name
			}
		}
		return fld.Name
	})

	custom := map[string]validator.Func{
		"return_status": func(fl validator.FieldLevel) bool {
			return returns.Status(fl.Field().String()).IsValid()
		},
		"return_action": func(fl validator.FieldLevel) bool {
			return returns.Action(fl.Field().String()).IsValid()
		},
		"disposition": func(fl validator.FieldLevel) bool {
			return returns.Disposition(fl.Field().String()).IsValid()
		},
		"counter_family": func(fl validator.FieldLevel) bool {
			_, err := sequence.ParseFamily(fl.Field().String())
			return err == nil
		},
	}
	for tag, fn := range custom {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return err
		}
	}
	return nil
}

// FormatValidationErrors turns a binding error into a 400 body
func FormatValidationErrors(err error, requestID string) dto.Response {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return dto.NewErrorResponse(dto.ErrCodeInvalidJSON, "Request body is not valid JSON: "+err.Error(), requestID)
	}

	details := make([]dto.ValidationDetail, 0, len(validationErrors))
	for _, e := range validationErrors {
		details = append(details, dto.ValidationDetail{
			Field:   e.Field(),
			Message: validationMessage(e),
			Tag:     e.Tag(),
		})
	}
	return dto.NewValidationErrorResponse("Request validation failed", requestID, details)
}

// HandleValidationError writes the 400 response for a binding error
func HandleValidationError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, FormatValidationErrors(err, GetRequestID(c)))
}

func validationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "This field is required"
	case "required_without":
		return "This field is required when " + e.Param() + " is empty"
	case "min":
		if e.Kind() == reflect.String {
			return "Must be at least " + e.Param() + " characters"
		}
		if e.Kind() == reflect.Slice {
			return "Must contain at least " + e.Param() + " items"
		}
		return "Must be at least " + e.Param()
	case "max":
		if e.Kind() == reflect.String {
			return "Must be at most " + e.Param() + " characters"
		}
		return "Must be at most " + e.Param()
	case "oneof":
		return "Must be one of: " + e.Param()
	case "datetime":
		return "Must be a date formatted as " + e.Param()
	case "return_status":
		return "Unknown return status"
	case "return_action":
		return "Unknown lifecycle action"
	case "disposition":
		return "Must be one of: Restock RTV Claim InternalUse Recycle Pending"
	case "counter_family":
		return "Unknown counter family, use ncr, return or collection"
	default:
		return "Invalid value"
	}
}
