// Package atlascommon holds the types and constants shared by the atlassrv
// components: catalog entry types, the tracked prefix table, configuration
// document paths and request context values.
package atlascommon

import (
	"fmt"
	"strings"
)

const (
	ServerVersion = "0.1.0"
	ApiVersion    = "1.0.0"
)

// EntryType is the closed set of catalog entry types.
type EntryType string

const (
	EntryTypeSkill EntryType = "SKILL"
	EntryTypeMCP   EntryType = "MCP"
	EntryTypeTool  EntryType = "TOOL"
)

// Valid reports whether t is one of the known entry types.
func (t EntryType) Valid() bool {
	switch t {
	case EntryTypeSkill, EntryTypeMCP, EntryTypeTool:
		return true
	}
	return false
}

// ParseEntryType accepts the type name in any case.
func ParseEntryType(s string) (EntryType, error) {
	t := EntryType(strings.ToUpper(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("unknown entry type: %q", s)
	}
	return t, nil
}

// TrackedPrefix maps a content store prefix to the entry type it holds.
type TrackedPrefix struct {
	Prefix string
	Type   EntryType
}

var trackedPrefixes = []TrackedPrefix{
	{Prefix: "skills/", Type: EntryTypeSkill},
	{Prefix: "mcps/", Type: EntryTypeMCP},
	{Prefix: "tools/", Type: EntryTypeTool},
}

// TrackedPrefixes returns the prefix table in a fixed order.
func TrackedPrefixes() []TrackedPrefix {
	out := make([]TrackedPrefix, len(trackedPrefixes))
	copy(out, trackedPrefixes)
	return out
}

// TrackedPrefixStrings returns only the prefixes.
func TrackedPrefixStrings() []string {
	out := make([]string, 0, len(trackedPrefixes))
	for _, p := range trackedPrefixes {
		out = append(out, p.Prefix)
	}
	return out
}

// EntryTypeForPath returns the entry type of a tracked path. The prefix itself
// (a directory) is not a tracked path.
func EntryTypeForPath(path string) (EntryType, bool) {
	for _, p := range trackedPrefixes {
		if strings.HasPrefix(path, p.Prefix) && len(path) > len(p.Prefix) {
			return p.Type, true
		}
	}
	return "", false
}

// IsTrackedPath reports whether path lives under a tracked prefix.
func IsTrackedPath(path string) bool {
	_, ok := EntryTypeForPath(path)
	return ok
}

// Configuration document locations in the content store.
const (
	OrganizationConfigPath = "configs/organization/claude.md"
	teamConfigPathFmt      = "configs/teams/%s/claude.md"
	userConfigPathFmt      = "configs/users/%s/claude.md"
)

func TeamConfigPath(teamID string) string {
	return fmt.Sprintf(teamConfigPathFmt, teamID)
}

func UserConfigPath(userID string) string {
	return fmt.Sprintf(userConfigPathFmt, userID)
}
