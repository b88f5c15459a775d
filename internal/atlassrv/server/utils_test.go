package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tansive/atlas/internal/atlassrv/apis"
	"github.com/tansive/atlas/internal/atlassrv/auth"
	"github.com/tansive/atlas/internal/atlassrv/catalog"
	"github.com/tansive/atlas/internal/atlassrv/config"
	"github.com/tansive/atlas/internal/atlassrv/contentstore"
	"github.com/tansive/atlas/internal/atlassrv/db/memory"
	"github.com/tansive/atlas/internal/atlassrv/inheritance"
	"github.com/tansive/atlas/internal/atlassrv/reconcile"
	"github.com/tansive/atlas/internal/atlassrv/versioning"
	"github.com/tansive/atlas/internal/atlassrv/webhook"
	"github.com/tansive/atlas/internal/common/middleware"
	"github.com/tansive/atlas/internal/common/uuid"
)

const (
	testSigningKey    = "0123456789abcdef0123456789abcdef"
	testWebhookSecret = "webhook-secret"
)

var systemUser = uuid.MustParse("00000000-0000-0000-0000-000000000001")

// testEnv holds the in-memory adapters shared by the requests of one test.
type testEnv struct {
	store    *contentstore.MemoryStore
	index    *memory.Index
	authn    *auth.Authenticator
	services *apis.Services
	worker   *webhook.Worker
	user     uuid.UUID
	admin    uuid.UUID
}

type envOption func(*testEnv)

// withWorker processes webhook deliveries through a worker with the given
// queue size. The worker is not started, so jobs stay queued.
func withWorker(size int) envOption {
	return func(e *testEnv) {
		w := webhook.NewWorker(e.services.Engine, size)
		e.worker = w
		e.services.Ingestor = webhook.NewIngestor(testWebhookSecret, e.services.Engine, webhook.WithWorker(w))
	}
}

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()
	config.SetConfig(&config.ConfigParam{
		ServerPort:         "8678",
		MaxRequestBodySize: 4 << 20,
	})

	store := contentstore.NewMemoryStore(contentstore.WithAuthor("atlas"))
	idx := memory.NewIndex()
	authn := auth.NewAuthenticator(config.AuthConfig{SigningKey: testSigningKey, Issuer: "atlas", ClockSkew: "1m"})
	engine := reconcile.NewEngine(store, idx, systemUser)
	vs := versioning.NewService(store, idx)

	env := &testEnv{
		store: store,
		index: idx,
		authn: authn,
		services: &apis.Services{
			Auth:       authn,
			Engine:     engine,
			Ingestor:   webhook.NewIngestor(testWebhookSecret, engine),
			Versioning: vs,
			Resolver:   inheritance.NewResolver(store, idx, vs),
			Catalog:    catalog.NewService(store, idx, catalog.WithSerializer(engine)),
			Teams:      idx,
		},
		user:  uuid.New(),
		admin: uuid.New(),
	}
	for _, o := range opts {
		o(env)
	}
	return env
}

func (e *testEnv) token(t *testing.T, userID uuid.UUID, admin bool) string {
	t.Helper()
	tok, _, err := e.authn.CreateToken(userID, admin, time.Hour)
	require.NoError(t, err)
	return tok
}

func (e *testEnv) userToken(t *testing.T) *string {
	tok := e.token(t, e.user, false)
	return &tok
}

func (e *testEnv) adminToken(t *testing.T) *string {
	tok := e.token(t, e.admin, true)
	return &tok
}

func (e *testEnv) write(t *testing.T, p, content string) {
	t.Helper()
	_, err := e.store.Write(context.Background(), p, content, "update "+p)
	require.NoError(t, err)
}

func executeTestRequest(t *testing.T, env *testEnv, req *http.Request, token *string) *httptest.ResponseRecorder {
	s, err := CreateNewServer(env.services, env.index)
	assert.NoError(t, err, "create new server")

	if token != nil {
		req.Header.Set("Authorization", "Bearer "+*token)
	}

	// Mount Handlers
	s.MountHandlers()

	rr := httptest.NewRecorder()
	s.Router.ServeHTTP(rr, req)

	return rr
}

func jsonRequest(t *testing.T, method, target string, body any) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, target, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func multipartRequest(t *testing.T, target, filename string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, target, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func checkHeader(t *testing.T, h http.Header) {
	expected := "application/json"
	got := h.Get("Content-Type")
	assert.Equal(t, expected, got, "Content-Type expected %s, got %s", expected, got)
	assert.NotEmpty(t, h.Get(middleware.RequestIDHeader), "No Request Id")
}

func compareJson(t *testing.T, expected any, actual string) {
	var j []byte
	var err error

	switch v := expected.(type) {
	case string:
		if json.Valid([]byte(v)) {
			j = []byte(v)
		} else {
			j, err = json.Marshal(v)
			assert.NoError(t, err, "json marshal")
		}
	case []byte:
		if json.Valid(v) {
			j = v
		} else {
			j, err = json.Marshal(string(v))
			assert.NoError(t, err, "json marshal")
		}
	default:
		j, err = json.Marshal(expected)
		assert.NoError(t, err, "json marshal")
	}
	assert.JSONEq(t, string(j), actual, "json response")
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), v), rr.Body.String())
}
