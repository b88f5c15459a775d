package webhook

import (
	"github.com/tidwall/gjson"
)

const EventPush = "push"

var changeFields = []string{"added", "modified", "removed"}

// ExtractPaths returns the distinct file paths changed by the commits of a
// push payload, in first-seen order.
func ExtractPaths(body []byte) ([]string, error) {
	if !gjson.ValidBytes(body) {
		return nil, ErrInvalidPayload.Msg("payload is not valid JSON")
	}
	commits := gjson.GetBytes(body, "commits")
	if commits.Exists() && !commits.IsArray() {
		return nil, ErrInvalidPayload.Msg("commits must be an array")
	}

	seen := make(map[string]struct{})
	var paths []string
	commits.ForEach(func(_, commit gjson.Result) bool {
		for _, field := range changeFields {
			commit.Get(field).ForEach(func(_, p gjson.Result) bool {
				if p.Type != gjson.String || p.Str == "" {
					return true
				}
				if _, ok := seen[p.Str]; !ok {
					seen[p.Str] = struct{}{}
					paths = append(paths, p.Str)
				}
				return true
			})
		}
		return true
	})
	return paths, nil
}
