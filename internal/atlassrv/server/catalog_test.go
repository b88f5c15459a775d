package server

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tansive/atlas/internal/atlassrv/contentstore"
	"github.com/tansive/atlas/internal/atlassrv/db/models"
	"github.com/tansive/atlas/internal/common/uuid"
)

func createEntry(t *testing.T, env *testEnv, body map[string]any) models.CatalogEntry {
	t.Helper()
	response := executeTestRequest(t, env, jsonRequest(t, http.MethodPost, "/catalog", body), env.userToken(t))
	require.Equal(t, http.StatusCreated, response.Code, response.Body.String())
	checkHeader(t, response.Result().Header)
	var e models.CatalogEntry
	decode(t, response, &e)
	assert.Equal(t, "/catalog/"+e.ID.String(), response.Header().Get("Location"))
	return e
}

func TestCatalogCreateAndGet(t *testing.T) {
	env := newTestEnv(t)
	e := createEntry(t, env, map[string]any{
		"path":    "skills/review.md",
		"content": "---\nname: Review\ndescription: Reviews code\n---\n",
		"tags":    []string{"Go"},
	})
	assert.Equal(t, "SKILL", string(e.Type))
	assert.Equal(t, "Review", e.Name)
	assert.Equal(t, env.user, e.OwnerID)
	assert.Equal(t, []string{"go"}, e.Tags)

	req, _ := http.NewRequest(http.MethodGet, "/catalog/"+e.ID.String(), nil)
	response := executeTestRequest(t, env, req, env.userToken(t))
	require.Equal(t, http.StatusOK, response.Code)
	var got models.CatalogEntry
	decode(t, response, &got)
	assert.Equal(t, e.ID, got.ID)
	assert.Equal(t, e.ContentRevision, got.ContentRevision)

	// the saved content is picked up by reconciliation without changes
	req, _ = http.NewRequest(http.MethodPost, "/sync/full", nil)
	response = executeTestRequest(t, env, req, env.adminToken(t))
	require.Equal(t, http.StatusOK, response.Code)
	compareJson(t, `{"created":0,"updated":0,"deleted":0,"errors":[]}`, response.Body.String())
}

func TestCatalogCreateConflictAndValidation(t *testing.T) {
	env := newTestEnv(t)
	createEntry(t, env, map[string]any{"path": "tools/lint.sh", "content": "echo"})

	response := executeTestRequest(t, env,
		jsonRequest(t, http.MethodPost, "/catalog", map[string]any{"path": "tools/lint.sh", "content": "echo"}),
		env.userToken(t))
	assert.Equal(t, http.StatusConflict, response.Code)

	response = executeTestRequest(t, env,
		jsonRequest(t, http.MethodPost, "/catalog", map[string]any{"path": "notes/x.md", "content": "x"}),
		env.userToken(t))
	assert.Equal(t, http.StatusBadRequest, response.Code)
	checkHeader(t, response.Result().Header)
}

func TestCatalogList(t *testing.T) {
	env := newTestEnv(t)
	createEntry(t, env, map[string]any{"path": "skills/a.md", "content": "a", "name": "Alpha", "tags": []string{"go"}})
	createEntry(t, env, map[string]any{"path": "mcps/b.json", "content": "{}", "name": "Beta"})
	createEntry(t, env, map[string]any{"path": "tools/c.sh", "content": "c", "name": "Gamma", "description": "Go linter"})

	tests := []struct {
		name   string
		query  string
		status int
		want   []string
	}{
		{"all", "", http.StatusOK, []string{"Alpha", "Beta", "Gamma"}},
		{"type", "?type=mcp", http.StatusOK, []string{"Beta"}},
		{"tag", "?tag=go", http.StatusOK, []string{"Alpha"}},
		{"search", "?q=linter", http.StatusOK, []string{"Gamma"}},
		{"owner", "?owner=" + env.user.String(), http.StatusOK, []string{"Alpha", "Beta", "Gamma"}},
		{"page", "?limit=1&offset=2", http.StatusOK, []string{"Gamma"}},
		{"bad type", "?type=widget", http.StatusBadRequest, nil},
		{"bad owner", "?owner=nobody", http.StatusBadRequest, nil},
		{"bad limit", "?limit=-1", http.StatusBadRequest, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, _ := http.NewRequest(http.MethodGet, "/catalog"+tt.query, nil)
			response := executeTestRequest(t, env, req, env.userToken(t))
			require.Equal(t, tt.status, response.Code, response.Body.String())
			if tt.want == nil {
				return
			}
			var rsp struct {
				Items []models.CatalogEntry `json:"items"`
				Count int                   `json:"count"`
			}
			decode(t, response, &rsp)
			names := []string{}
			for _, e := range rsp.Items {
				names = append(names, e.Name)
			}
			assert.Equal(t, tt.want, names)
			assert.Equal(t, len(tt.want), rsp.Count)
		})
	}
}

func TestCatalogTagsAndUsage(t *testing.T) {
	env := newTestEnv(t)
	e := createEntry(t, env, map[string]any{"path": "skills/a.md", "content": "a"})

	response := executeTestRequest(t, env,
		jsonRequest(t, http.MethodPut, "/catalog/"+e.ID.String()+"/tags", map[string]any{"tags": []string{" CI ", "ci", "Review"}}),
		env.userToken(t))
	require.Equal(t, http.StatusOK, response.Code)
	var updated models.CatalogEntry
	decode(t, response, &updated)
	assert.Equal(t, []string{"ci", "review"}, updated.Tags)

	for i := 1; i <= 2; i++ {
		req, _ := http.NewRequest(http.MethodPost, "/catalog/"+e.ID.String()+"/usage", nil)
		response = executeTestRequest(t, env, req, env.userToken(t))
		require.Equal(t, http.StatusOK, response.Code)
		compareJson(t, map[string]any{"id": e.ID.String(), "usage_count": i}, response.Body.String())
	}

	// curated tags survive a full scan
	env.write(t, "skills/a.md", "changed")
	req, _ := http.NewRequest(http.MethodPost, "/sync/full", nil)
	response = executeTestRequest(t, env, req, env.adminToken(t))
	require.Equal(t, http.StatusOK, response.Code)
	compareJson(t, `{"created":0,"updated":1,"deleted":0,"errors":[]}`, response.Body.String())

	req, _ = http.NewRequest(http.MethodGet, "/catalog/"+e.ID.String(), nil)
	response = executeTestRequest(t, env, req, env.userToken(t))
	var got models.CatalogEntry
	decode(t, response, &got)
	assert.Equal(t, []string{"ci", "review"}, got.Tags)
	assert.Equal(t, int64(2), got.UsageCount)

	req, _ = http.NewRequest(http.MethodGet, "/catalog/not-a-uuid", nil)
	response = executeTestRequest(t, env, req, env.userToken(t))
	assert.Equal(t, http.StatusBadRequest, response.Code)

	req, _ = http.NewRequest(http.MethodPost, "/catalog/0190a0e4-0000-7000-8000-00000000ffff/usage", nil)
	response = executeTestRequest(t, env, req, env.userToken(t))
	assert.Equal(t, http.StatusNotFound, response.Code)
}

func TestCatalogContent(t *testing.T) {
	env := newTestEnv(t)
	e := createEntry(t, env, map[string]any{"path": "skills/a.md", "content": "---\nname: Alpha\n---\nbody"})

	req, _ := http.NewRequest(http.MethodGet, "/catalog/"+e.ID.String()+"/content", nil)
	response := executeTestRequest(t, env, req, env.userToken(t))
	require.Equal(t, http.StatusOK, response.Code, response.Body.String())
	checkHeader(t, response.Result().Header)
	var rsp struct {
		ID        string `json:"id"`
		Path      string `json:"path"`
		Content   string `json:"content"`
		CommitSha string `json:"commit_sha"`
	}
	decode(t, response, &rsp)
	assert.Equal(t, e.ID.String(), rsp.ID)
	assert.Equal(t, "skills/a.md", rsp.Path)
	assert.Equal(t, "---\nname: Alpha\n---\nbody", rsp.Content)
	assert.Equal(t, e.ContentRevision, rsp.CommitSha)

	req, _ = http.NewRequest(http.MethodGet, "/catalog/"+uuid.New().String()+"/content", nil)
	response = executeTestRequest(t, env, req, env.userToken(t))
	assert.Equal(t, http.StatusNotFound, response.Code)

	req, _ = http.NewRequest(http.MethodGet, "/catalog/not-an-id/content", nil)
	response = executeTestRequest(t, env, req, env.userToken(t))
	assert.Equal(t, http.StatusBadRequest, response.Code)
}

func TestCatalogDelete(t *testing.T) {
	env := newTestEnv(t)
	e := createEntry(t, env, map[string]any{"path": "skills/a.md", "content": "a", "name": "Alpha"})
	other := createEntry(t, env, map[string]any{"path": "tools/b.sh", "content": "b"})

	stranger := env.token(t, uuid.New(), false)
	req, _ := http.NewRequest(http.MethodDelete, "/catalog/"+e.ID.String(), nil)
	response := executeTestRequest(t, env, req, &stranger)
	assert.Equal(t, http.StatusForbidden, response.Code)

	req, _ = http.NewRequest(http.MethodDelete, "/catalog/"+e.ID.String(), nil)
	response = executeTestRequest(t, env, req, env.userToken(t))
	require.Equal(t, http.StatusOK, response.Code, response.Body.String())
	compareJson(t, map[string]any{"id": e.ID.String(), "deleted": true}, response.Body.String())

	_, err := env.store.Read(context.Background(), "skills/a.md")
	assert.ErrorIs(t, err, contentstore.ErrNotFound)
	req, _ = http.NewRequest(http.MethodGet, "/catalog/"+e.ID.String(), nil)
	response = executeTestRequest(t, env, req, env.userToken(t))
	assert.Equal(t, http.StatusNotFound, response.Code)

	// admins delete any entry
	req, _ = http.NewRequest(http.MethodDelete, "/catalog/"+other.ID.String(), nil)
	response = executeTestRequest(t, env, req, env.adminToken(t))
	require.Equal(t, http.StatusOK, response.Code)

	// the removals are already reflected in the index
	req, _ = http.NewRequest(http.MethodPost, "/sync/full", nil)
	response = executeTestRequest(t, env, req, env.adminToken(t))
	require.Equal(t, http.StatusOK, response.Code)
	compareJson(t, `{"created":0,"updated":0,"deleted":0,"errors":[]}`, response.Body.String())
}
