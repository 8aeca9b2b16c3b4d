// Package apierr writes the {"detail": "..."} error bodies every StudySphere endpoint returns.
package apierr

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// Body is the error payload shape.
type Body struct {
	Detail string `json:"detail"`
}

// Abort writes status with a detail message and stops the handler chain.
func Abort(c *gin.Context, status int, detail string) {
	c.AbortWithStatusJSON(status, Body{Detail: detail})
}

// BindDetail turns a ShouldBindJSON error into a readable detail message.
func BindDetail(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "Invalid request body"
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fieldMessage(fe))
	}
	return strings.Join(msgs, "; ")
}

func fieldMessage(fe validator.FieldError) string {
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s: This field is required.", field)
	case "url", "http_url":
		return fmt.Sprintf("%s: Enter a valid URL.", field)
	case "email":
		return fmt.Sprintf("%s: Enter a valid email address.", field)
	case "len":
		return fmt.Sprintf("%s: Must be exactly %s characters.", field, fe.Param())
	case "min":
		return fmt.Sprintf("%s: Ensure this field has at least %s characters.", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s: Ensure this field has no more than %s characters.", field, fe.Param())
	default:
		return fmt.Sprintf("%s: Invalid value.", field)
	}
}
