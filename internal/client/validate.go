package client

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"unicode"

	"studysphere/internal/studysession"

	"github.com/go-playground/validator/v10"
)

// ValidationError is a client-side input failure. No request was sent.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	msgs := make([]string, 0, len(keys))
	for _, k := range keys {
		msgs = append(msgs, e.Fields[k])
	}
	return strings.Join(msgs, " ")
}

func invalid(field, msg string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: msg}}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		return name
	})
	return v
}

var messages = map[string]string{
	"required": "%s is required.",
	"url":      "Please enter a valid URL.",
	"max":      "%s is too long.",
}

// check runs struct validation and converts the result to a ValidationError.
func check(in any) error {
	err := validate.Struct(in)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	out := &ValidationError{Fields: map[string]string{}}
	for _, fe := range verrs {
		format, ok := messages[fe.Tag()]
		if !ok {
			format = "%s is invalid."
		}
		if strings.Contains(format, "%s") {
			out.Fields[fe.Field()] = fmt.Sprintf(format, label(fe.Field()))
		} else {
			out.Fields[fe.Field()] = format
		}
	}
	return out
}

func label(field string) string {
	words := strings.Split(field, "_")
	if words[0] != "" {
		words[0] = strings.ToUpper(words[0][:1]) + words[0][1:]
	}
	return strings.Join(words, " ")
}

// ResourceInput is the add-resource form
type ResourceInput struct {
	Title string `json:"title" validate:"required,max=200"`
	Link  string `json:"link" validate:"required,url,max=2000"`
}

func (in ResourceInput) trimmed() ResourceInput {
	return ResourceInput{Title: strings.TrimSpace(in.Title), Link: strings.TrimSpace(in.Link)}
}

// SessionInput is the create-session form
type SessionInput struct {
	Title       string `json:"title" validate:"required,max=200"`
	CourseCode  string `json:"course_code" validate:"required,max=50"`
	Description string `json:"description" validate:"required,max=2000"`
	Date        string `json:"date" validate:"required,max=100"`
	Time        string `json:"time" validate:"required,max=100"`
	Location    string `json:"location" validate:"required,max=200"`
	Group       *int64 `json:"group,omitempty"`
}

func (in SessionInput) trimmed() SessionInput {
	return SessionInput{
		Title:       strings.TrimSpace(in.Title),
		CourseCode:  strings.TrimSpace(in.CourseCode),
		Description: strings.TrimSpace(in.Description),
		Date:        strings.TrimSpace(in.Date),
		Time:        strings.TrimSpace(in.Time),
		Location:    strings.TrimSpace(in.Location),
		Group:       in.Group,
	}
}

func (in SessionInput) request() studysession.CreateSessionRequest {
	return studysession.CreateSessionRequest{
		Title:       in.Title,
		CourseCode:  in.CourseCode,
		Description: in.Description,
		Date:        in.Date,
		Time:        in.Time,
		Location:    in.Location,
		Group:       in.Group,
	}
}

// NormalizeCode keeps the digits of s, up to the code length.
func NormalizeCode(s string) string {
	var b strings.Builder
	for _, r := range s {
		if b.Len() == studysession.CodeLength {
			break
		}
		if r <= unicode.MaxASCII && unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ValidateCode accepts exactly CodeLength digits.
func ValidateCode(code string) error {
	if len(code) != studysession.CodeLength || NormalizeCode(code) != code {
		return invalid("verification_code", fmt.Sprintf("Please enter a %d-digit code.", studysession.CodeLength))
	}
	return nil
}
