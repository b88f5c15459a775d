package contentstore

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// GitHubOptions configures a GitHubStore.
type GitHubOptions struct {
	APIURL      string
	Owner       string
	Repo        string
	Branch      string
	Token       string
	Timeout     time.Duration
	MaxRetries  uint
	RetryDelay  time.Duration
	AuthorName  string
	AuthorEmail string
	HTTPClient  *http.Client
}

// GitHubStore is a Store backed by a GitHub repository branch.
type GitHubStore struct {
	client      *http.Client
	apiURL      string
	owner       string
	repo        string
	branch      string
	token       string
	attempts    uint
	retryDelay  time.Duration
	authorName  string
	authorEmail string
}

var _ Store = (*GitHubStore)(nil)

func NewGitHubStore(opts GitHubOptions) (*GitHubStore, error) {
	if opts.Owner == "" || opts.Repo == "" {
		return nil, fmt.Errorf("owner and repo are required")
	}
	if opts.APIURL == "" {
		opts.APIURL = "https://api.github.com"
	}
	if opts.Branch == "" {
		opts.Branch = "main"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 500 * time.Millisecond
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}
	return &GitHubStore{
		client:      client,
		apiURL:      strings.TrimRight(opts.APIURL, "/"),
		owner:       opts.Owner,
		repo:        opts.Repo,
		branch:      opts.Branch,
		token:       opts.Token,
		attempts:    opts.MaxRetries + 1,
		retryDelay:  opts.RetryDelay,
		authorName:  opts.AuthorName,
		authorEmail: opts.AuthorEmail,
	}, nil
}

// statusError is a non-2xx answer from the API.
type statusError struct {
	status    int
	message   string
	retryable bool
}

func (e *statusError) Error() string {
	return fmt.Sprintf("github api: %d %s", e.status, e.message)
}

func (s *GitHubStore) repoURL(parts ...string) string {
	return s.apiURL + "/repos/" + url.PathEscape(s.owner) + "/" + url.PathEscape(s.repo) + "/" + strings.Join(parts, "/")
}

func escapePath(p string) string {
	segs := strings.Split(p, "/")
	for i, seg := range segs {
		segs[i] = url.PathEscape(seg)
	}
	return strings.Join(segs, "/")
}

// do issues one API call with retries on transport errors, 5xx, 429 and
// rate-limited 403 responses. Other failures are returned at once.
func (s *GitHubStore) do(ctx context.Context, method, endpoint string, query url.Values, body []byte) ([]byte, error) {
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	var rspBody []byte
	err := retry.Do(
		func() error {
			var reader io.Reader
			if body != nil {
				reader = bytes.NewReader(body)
			}
			req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
			if err != nil {
				return retry.Unrecoverable(err)
			}
			req.Header.Set("Accept", "application/vnd.github+json")
			req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
			if s.token != "" {
				req.Header.Set("Authorization", "Bearer "+s.token)
			}
			if body != nil {
				req.Header.Set("Content-Type", "application/json")
			}
			rsp, err := s.client.Do(req)
			if err != nil {
				if ctx.Err() != nil {
					return retry.Unrecoverable(ctx.Err())
				}
				return err
			}
			defer rsp.Body.Close()
			b, err := io.ReadAll(rsp.Body)
			if err != nil {
				return err
			}
			if rsp.StatusCode >= 200 && rsp.StatusCode < 300 {
				rspBody = b
				return nil
			}
			serr := &statusError{status: rsp.StatusCode, message: gjson.GetBytes(b, "message").String()}
			switch {
			case rsp.StatusCode >= 500, rsp.StatusCode == http.StatusTooManyRequests:
				serr.retryable = true
			case rsp.StatusCode == http.StatusForbidden && rsp.Header.Get("X-RateLimit-Remaining") == "0":
				serr.retryable = true
			}
			if serr.retryable {
				return serr
			}
			return retry.Unrecoverable(serr)
		},
		retry.Context(ctx),
		retry.Attempts(s.attempts),
		retry.Delay(s.retryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			log.Ctx(ctx).Warn().Err(err).Uint("attempt", n+1).Str("method", method).Msg("retrying content store request")
		}),
	)
	if err != nil {
		var serr *statusError
		if errors.As(err, &serr) && !serr.retryable {
			return nil, serr
		}
		return nil, ErrUpstreamUnavailable.Err(err)
	}
	return rspBody, nil
}

func isStatus(err error, codes ...int) bool {
	var serr *statusError
	if !errors.As(err, &serr) {
		return false
	}
	for _, c := range codes {
		if serr.status == c {
			return true
		}
	}
	return false
}

// mapError turns unexpected API answers into content store errors.
func mapError(err error, notFound error) error {
	if err == nil {
		return nil
	}
	if notFound != nil && isStatus(err, http.StatusNotFound) {
		return notFound
	}
	var serr *statusError
	if errors.As(err, &serr) {
		return ErrContentStore.MsgErr(serr.Error(), err).SetStatusCode(http.StatusBadGateway)
	}
	return err
}

// getContents returns the decoded file and its blob sha at ref.
func (s *GitHubStore) getContents(ctx context.Context, p, ref string) (string, string, error) {
	q := url.Values{}
	q.Set("ref", ref)
	b, err := s.do(ctx, http.MethodGet, s.repoURL("contents", escapePath(p)), q, nil)
	if err != nil {
		return "", "", err
	}
	doc := gjson.ParseBytes(b)
	if doc.IsArray() || doc.Get("type").String() != "file" {
		return "", "", &statusError{status: http.StatusNotFound, message: p + " is not a file"}
	}
	raw := strings.ReplaceAll(doc.Get("content").String(), "\n", "")
	content, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return "", "", ErrContentStore.MsgErr("unable to decode file content", err)
	}
	return string(content), doc.Get("sha").String(), nil
}

func parseCommit(c gjson.Result) Revision {
	ts, _ := time.Parse(time.RFC3339, c.Get("commit.author.date").String())
	return Revision{
		ID:        c.Get("sha").String(),
		Message:   c.Get("commit.message").String(),
		Author:    c.Get("commit.author.name").String(),
		Timestamp: ts,
	}
}

func (s *GitHubStore) commits(ctx context.Context, p, ref string, limit int) ([]Revision, error) {
	q := url.Values{}
	q.Set("path", p)
	q.Set("sha", ref)
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	q.Set("per_page", strconv.Itoa(limit))
	b, err := s.do(ctx, http.MethodGet, s.repoURL("commits"), q, nil)
	if err != nil {
		return nil, err
	}
	out := []Revision{}
	for _, c := range gjson.ParseBytes(b).Array() {
		out = append(out, parseCommit(c))
	}
	return out, nil
}

func (s *GitHubStore) Read(ctx context.Context, p string) (*Document, error) {
	p, err := CleanPath(p)
	if err != nil {
		return nil, err
	}
	content, _, err := s.getContents(ctx, p, s.branch)
	if err != nil {
		return nil, mapError(err, ErrNotFound.Msg("no file at "+p))
	}
	doc := &Document{Path: p, Content: content}
	revs, err := s.commits(ctx, p, s.branch, 1)
	if err != nil {
		return nil, mapError(err, ErrNotFound.Msg("no history for "+p))
	}
	if len(revs) > 0 {
		doc.Revision = revs[0]
	}
	return doc, nil
}

func (s *GitHubStore) ReadAt(ctx context.Context, p, revision string) (*Document, error) {
	p, err := CleanPath(p)
	if err != nil {
		return nil, err
	}
	notFound := ErrRevisionNotFound.Msg(fmt.Sprintf("revision %s does not touch %s", revision, p))
	if len(revision) < MinRevisionPrefix {
		return nil, notFound
	}
	// the newest commit touching p at or before revision must be revision itself
	revs, err := s.commits(ctx, p, revision, 1)
	if err != nil {
		if isStatus(err, http.StatusUnprocessableEntity, http.StatusConflict) {
			return nil, notFound
		}
		return nil, mapError(err, notFound)
	}
	if len(revs) == 0 || !strings.HasPrefix(revs[0].ID, revision) {
		return nil, notFound
	}
	content, _, err := s.getContents(ctx, p, revs[0].ID)
	if err != nil {
		return nil, mapError(err, notFound)
	}
	return &Document{Path: p, Content: content, Revision: revs[0]}, nil
}

func (s *GitHubStore) Write(ctx context.Context, p, content, message string) (*Revision, error) {
	p, err := CleanPath(p)
	if err != nil {
		return nil, err
	}
	rev, err := s.put(ctx, p, content, message)
	// another writer moved the file between reading its sha and writing; the
	// newer write wins
	if isStatus(err, http.StatusConflict, http.StatusUnprocessableEntity) {
		log.Ctx(ctx).Info().Str("path", p).Msg("write conflict, retrying with fresh sha")
		rev, err = s.put(ctx, p, content, message)
	}
	if err != nil {
		var serr *statusError
		if errors.As(err, &serr) {
			return nil, ErrWriteRejected.Err(serr)
		}
		return nil, err
	}
	return rev, nil
}

func (s *GitHubStore) Delete(ctx context.Context, p, message string) (*Revision, error) {
	p, err := CleanPath(p)
	if err != nil {
		return nil, err
	}
	_, sha, err := s.getContents(ctx, p, s.branch)
	if err != nil {
		return nil, mapError(err, ErrNotFound.Msg("no file at "+p))
	}

	body := []byte(`{}`)
	body, _ = sjson.SetBytes(body, "message", message)
	body, _ = sjson.SetBytes(body, "sha", sha)
	body, _ = sjson.SetBytes(body, "branch", s.branch)
	if s.authorName != "" && s.authorEmail != "" {
		body, _ = sjson.SetBytes(body, "committer.name", s.authorName)
		body, _ = sjson.SetBytes(body, "committer.email", s.authorEmail)
	}
	b, err := s.do(ctx, http.MethodDelete, s.repoURL("contents", escapePath(p)), nil, body)
	if err != nil {
		var serr *statusError
		if errors.As(err, &serr) {
			if serr.status == http.StatusNotFound {
				return nil, ErrNotFound.Msg("no file at " + p)
			}
			return nil, ErrWriteRejected.Err(serr)
		}
		return nil, err
	}
	rev := commitRevision(gjson.GetBytes(b, "commit"))
	return &rev, nil
}

// commitRevision reads the commit object returned by the contents API.
func commitRevision(c gjson.Result) Revision {
	ts, _ := time.Parse(time.RFC3339, c.Get("author.date").String())
	return Revision{
		ID:        c.Get("sha").String(),
		Message:   c.Get("message").String(),
		Author:    c.Get("author.name").String(),
		Timestamp: ts,
	}
}

func (s *GitHubStore) put(ctx context.Context, p, content, message string) (*Revision, error) {
	_, sha, err := s.getContents(ctx, p, s.branch)
	if err != nil && !isStatus(err, http.StatusNotFound) {
		return nil, err
	}

	body := []byte(`{}`)
	body, _ = sjson.SetBytes(body, "message", message)
	body, _ = sjson.SetBytes(body, "content", base64.StdEncoding.EncodeToString([]byte(content)))
	body, _ = sjson.SetBytes(body, "branch", s.branch)
	if sha != "" {
		body, _ = sjson.SetBytes(body, "sha", sha)
	}
	if s.authorName != "" && s.authorEmail != "" {
		body, _ = sjson.SetBytes(body, "committer.name", s.authorName)
		body, _ = sjson.SetBytes(body, "committer.email", s.authorEmail)
	}

	b, err := s.do(ctx, http.MethodPut, s.repoURL("contents", escapePath(p)), nil, body)
	if err != nil {
		return nil, err
	}
	rev := commitRevision(gjson.GetBytes(b, "commit"))
	return &rev, nil
}

func (s *GitHubStore) List(ctx context.Context, prefix string) ([]string, error) {
	q := url.Values{}
	q.Set("recursive", "1")
	b, err := s.do(ctx, http.MethodGet, s.repoURL("git", "trees", url.PathEscape(s.branch)), q, nil)
	if err != nil {
		switch {
		case isStatus(err, http.StatusConflict):
			// "Git Repository is empty"
			return []string{}, nil
		case isStatus(err, http.StatusNotFound):
			// a missing branch, a wrong repository and a revoked token all
			// answer 404; none of them means the repository has no files
			return nil, ErrListingFailed.MsgErr("branch "+s.branch+" not found in "+s.owner+"/"+s.repo, err)
		}
		return nil, mapError(err, nil)
	}
	tree := gjson.ParseBytes(b)
	if tree.Get("truncated").Bool() {
		log.Ctx(ctx).Error().Str("prefix", prefix).Msg("repository tree listing truncated")
		return nil, ErrListingFailed.Msg("repository tree listing truncated")
	}
	paths := []string{}
	for _, e := range tree.Get("tree").Array() {
		p := e.Get("path").String()
		if e.Get("type").String() == "blob" && strings.HasPrefix(p, prefix) {
			paths = append(paths, p)
		}
	}
	sort.Strings(paths)
	return paths, nil
}

func (s *GitHubStore) History(ctx context.Context, p string, limit int) ([]Revision, error) {
	p, err := CleanPath(p)
	if err != nil {
		return nil, err
	}
	revs, err := s.commits(ctx, p, s.branch, limit)
	if err != nil {
		if isStatus(err, http.StatusNotFound) {
			return []Revision{}, nil
		}
		return nil, mapError(err, nil)
	}
	return revs, nil
}
