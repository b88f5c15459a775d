// Package schemavalidator holds the shared validator instance and the
// catalog-specific validation tags.
package schemavalidator

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	schemaValidator *validator.Validate
	once            sync.Once
)

func V() *validator.Validate {
	once.Do(func() {
		schemaValidator = validator.New(validator.WithRequiredStructEnabled())
		registerValidators(schemaValidator)
	})
	return schemaValidator
}

// Describe flattens validator errors into one readable message.
func Describe(err error) string {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err.Error()
	}
	msgs := make([]string, 0, len(ve))
	for _, fe := range ve {
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s: failed %s=%s", fe.Field(), fe.Tag(), fe.Param()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s: failed %s", fe.Field(), fe.Tag()))
		}
	}
	return strings.Join(msgs, "; ")
}
