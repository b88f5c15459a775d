package server

import (
	"bytes"
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tansive/atlas/internal/atlassrv/db/models"
	"github.com/tansive/atlas/internal/atlassrv/webhook"
)

const pushPayload = `{
	"ref": "refs/heads/main",
	"commits": [
		{"added": ["skills/a.md", "skills/b.md"], "modified": ["README.md"], "removed": []}
	]
}`

func webhookRequest(t *testing.T, event, body, secret string) *http.Request {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, "/webhooks/github", bytes.NewBufferString(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(webhook.EventHeader, event)
	req.Header.Set(webhook.DeliveryHeader, "72d3162e-cc78-11e3-81ab-4c9367dc0958")
	req.Header.Set(webhook.SignatureHeader, webhook.Sign([]byte(secret), []byte(body)))
	return req
}

func indexedPaths(t *testing.T, env *testEnv) []string {
	t.Helper()
	list, err := env.index.ListEntries(context.Background(), models.EntryFilter{})
	require.NoError(t, err)
	paths := []string{}
	for _, e := range list {
		paths = append(paths, e.Path)
	}
	return paths
}

func TestWebhookPush(t *testing.T) {
	env := newTestEnv(t)
	env.write(t, "skills/a.md", "---\nname: A\n---\n")
	env.write(t, "skills/b.md", "b")

	response := executeTestRequest(t, env, webhookRequest(t, "push", pushPayload, testWebhookSecret), nil)

	require.Equal(t, http.StatusOK, response.Code)
	checkHeader(t, response.Result().Header)
	compareJson(t, `{
		"status": "processed",
		"event": "push",
		"paths": ["skills/a.md", "skills/b.md"],
		"created": 2,
		"updated": 0,
		"deleted": 0,
		"errors": 0
	}`, response.Body.String())
	assert.Equal(t, []string{"skills/a.md", "skills/b.md"}, indexedPaths(t, env))

	// redelivery is harmless
	response = executeTestRequest(t, env, webhookRequest(t, "push", pushPayload, testWebhookSecret), nil)
	require.Equal(t, http.StatusOK, response.Code)
	var summary webhook.Summary
	decode(t, response, &summary)
	assert.Equal(t, 0, summary.Created+summary.Updated+summary.Deleted)
}

func TestWebhookBadSignature(t *testing.T) {
	env := newTestEnv(t)
	env.write(t, "skills/a.md", "a")

	response := executeTestRequest(t, env, webhookRequest(t, "push", pushPayload, "wrong secret"), nil)

	require.Equal(t, http.StatusUnauthorized, response.Code)
	checkHeader(t, response.Result().Header)
	compareJson(t, `{"result":0,"error":"invalid signature"}`, response.Body.String())
	assert.Empty(t, indexedPaths(t, env))
}

func TestWebhookPingIgnored(t *testing.T) {
	env := newTestEnv(t)
	body := `{"zen":"Design for failure."}`

	response := executeTestRequest(t, env, webhookRequest(t, "ping", body, testWebhookSecret), nil)

	require.Equal(t, http.StatusOK, response.Code)
	var summary webhook.Summary
	decode(t, response, &summary)
	assert.Equal(t, webhook.StatusIgnored, summary.Status)
}

func TestWebhookInvalidPayload(t *testing.T) {
	env := newTestEnv(t)
	response := executeTestRequest(t, env, webhookRequest(t, "push", `{"commits": `, testWebhookSecret), nil)
	assert.Equal(t, http.StatusBadRequest, response.Code)
}

func TestWebhookQueued(t *testing.T) {
	env := newTestEnv(t, withWorker(1))
	env.write(t, "skills/a.md", "a")

	response := executeTestRequest(t, env, webhookRequest(t, "push", pushPayload, testWebhookSecret), nil)
	require.Equal(t, http.StatusAccepted, response.Code)
	var summary webhook.Summary
	decode(t, response, &summary)
	assert.Equal(t, webhook.StatusQueued, summary.Status)

	response = executeTestRequest(t, env, webhookRequest(t, "push", pushPayload, testWebhookSecret), nil)
	require.Equal(t, http.StatusTooManyRequests, response.Code)
	assert.Equal(t, "30", response.Header().Get("Retry-After"))
}

func TestFullSync(t *testing.T) {
	env := newTestEnv(t)
	env.write(t, "skills/a.md", "a")
	env.write(t, "mcps/gh.json", "{}")
	env.write(t, "docs/ignored.md", "x")

	req, _ := http.NewRequest(http.MethodPost, "/sync/full", nil)
	response := executeTestRequest(t, env, req, env.adminToken(t))

	require.Equal(t, http.StatusOK, response.Code)
	checkHeader(t, response.Result().Header)
	compareJson(t, `{"created":2,"updated":0,"deleted":0,"errors":[]}`, response.Body.String())

	req, _ = http.NewRequest(http.MethodPost, "/sync/full", nil)
	response = executeTestRequest(t, env, req, env.adminToken(t))
	require.Equal(t, http.StatusOK, response.Code)
	compareJson(t, `{"created":0,"updated":0,"deleted":0,"errors":[]}`, response.Body.String())
}

func TestFullSyncRequiresAdmin(t *testing.T) {
	env := newTestEnv(t)

	req, _ := http.NewRequest(http.MethodPost, "/sync/full", nil)
	response := executeTestRequest(t, env, req, env.userToken(t))
	assert.Equal(t, http.StatusForbidden, response.Code)

	req, _ = http.NewRequest(http.MethodPost, "/sync/full", nil)
	response = executeTestRequest(t, env, req, nil)
	assert.Equal(t, http.StatusUnauthorized, response.Code)
}
