package atlascommon

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tansive/atlas/internal/common/uuid"
)

func TestEntryTypeForPath(t *testing.T) {
	tests := []struct {
		path    string
		want    EntryType
		tracked bool
	}{
		{"skills/a.md", EntryTypeSkill, true},
		{"skills/nested/b.md", EntryTypeSkill, true},
		{"mcps/github.json", EntryTypeMCP, true},
		{"tools/lint.md", EntryTypeTool, true},
		{"skills/", "", false},
		{"skillset/a.md", "", false},
		{"configs/users/1/claude.md", "", false},
		{"README.md", "", false},
	}
	for _, tt := range tests {
		got, ok := EntryTypeForPath(tt.path)
		assert.Equal(t, tt.tracked, ok, tt.path)
		assert.Equal(t, tt.want, got, tt.path)
		assert.Equal(t, tt.tracked, IsTrackedPath(tt.path), tt.path)
	}
}

func TestParseEntryType(t *testing.T) {
	got, err := ParseEntryType("skill")
	assert.NoError(t, err)
	assert.Equal(t, EntryTypeSkill, got)

	_, err = ParseEntryType("plugin")
	assert.Error(t, err)
}

func TestConfigPaths(t *testing.T) {
	assert.Equal(t, "configs/users/u1/claude.md", UserConfigPath("u1"))
	assert.Equal(t, "configs/teams/t1/claude.md", TeamConfigPath("t1"))
	assert.Equal(t, []string{"skills/", "mcps/", "tools/"}, TrackedPrefixStrings())
}

func TestUserContext(t *testing.T) {
	assert.Equal(t, uuid.Nil, GetUserID(context.Background()))
	id := uuid.New()
	ctx := WithUserContext(context.Background(), &UserContext{UserID: id})
	assert.Equal(t, id, GetUserID(ctx))
	assert.False(t, GetUserContext(ctx).Admin)
}
