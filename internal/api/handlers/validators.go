package handlers

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/yoockh/scribe/internal/services"
)

// RegisterValidators adds the custom binding rules used by request structs.
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return nil
	}
	return v.RegisterValidation("username", validUsername)
}

// username: non-blank, at most 80 characters, no control characters.
func validUsername(fl validator.FieldLevel) bool {
	s := strings.TrimSpace(fl.Field().String())
	if s == "" || utf8.RuneCountInString(s) > services.MaxUsernameLen {
		return false
	}
	return strings.IndexFunc(s, unicode.IsControl) < 0
}

// bindingMessage describes the first rule a request failed.
func bindingMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "invalid request body"
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return "username and password are required"
	case "username":
		return fmt.Sprintf("username must be 1 to %d characters with no control characters", services.MaxUsernameLen)
	default:
		return fmt.Sprintf("%s is invalid", strings.ToLower(fe.Field()))
	}
}
