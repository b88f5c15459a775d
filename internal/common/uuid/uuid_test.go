package uuid

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGeneratedIdsAreVersion7(t *testing.T) {
	assert.True(t, IsUUIDv7(UUID7()))
	assert.True(t, IsUUIDv7(New()))

	id, err := NewRandom()
	assert.NoError(t, err)
	assert.True(t, IsUUIDv7(id))
	assert.NotEqual(t, Nil, id)
}

func TestIdsSortByCreation(t *testing.T) {
	a := New()
	b := New()
	assert.Less(t, a.String(), b.String())
}

func TestParse(t *testing.T) {
	valid := "123e4567-e89b-12d3-a456-426614174000"
	id, err := Parse(valid)
	assert.NoError(t, err)
	assert.Equal(t, valid, id.String())
	assert.False(t, IsUUIDv7(id))

	_, err = Parse("invalid-uuid")
	assert.Error(t, err)

	assert.Panics(t, func() { MustParse("invalid-uuid") })
}
