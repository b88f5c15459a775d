// Package uuid wraps github.com/google/uuid with UUIDv7 as the default
// version, so generated ids sort by creation time.
package uuid

import (
	"github.com/google/uuid"
)

type UUID = uuid.UUID

// Nil is the zero UUID.
var Nil = uuid.Nil

// UUID7 returns a new UUIDv7, or Nil if the random source fails.
func UUID7() UUID {
	id, _ := uuid.NewV7()
	return id
}

func NewRandom() (UUID, error) {
	return uuid.NewV7()
}

// New panics if the random source fails.
func New() UUID {
	id, err := uuid.NewV7()
	if err != nil {
		panic(err)
	}
	return id
}

func Parse(s string) (UUID, error) {
	return uuid.Parse(s)
}

func MustParse(s string) UUID {
	return uuid.MustParse(s)
}

// IsUUIDv7 reports whether id was generated as a version 7 UUID.
func IsUUIDv7(id UUID) bool {
	return id.Version() == uuid.Version(7)
}
