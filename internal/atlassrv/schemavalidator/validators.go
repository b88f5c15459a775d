package schemavalidator

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/tansive/atlas/internal/atlassrv/atlascommon"
)

const maxTagLength = 64

// entryTypeValidator accepts the closed set of catalog entry types.
func entryTypeValidator(fl validator.FieldLevel) bool {
	return atlascommon.EntryType(fl.Field().String()).Valid()
}

// trackedPathValidator accepts a file path under one of the tracked prefixes.
func trackedPathValidator(fl validator.FieldLevel) bool {
	p := fl.Field().String()
	if strings.Contains(p, "..") || strings.HasPrefix(p, "/") || strings.HasSuffix(p, "/") {
		return false
	}
	_, ok := atlascommon.EntryTypeForPath(p)
	return ok
}

// tagValidator accepts one curated tag before normalization.
func tagValidator(fl validator.FieldLevel) bool {
	t := strings.TrimSpace(fl.Field().String())
	return len(t) <= maxTagLength && !strings.ContainsAny(t, ",\n\t")
}

func registerValidators(v *validator.Validate) {
	v.RegisterValidation("entryType", entryTypeValidator)
	v.RegisterValidation("trackedPath", trackedPathValidator)
	v.RegisterValidation("tag", tagValidator)
}
