// Package contentstore is the boundary to the version-controlled repository
// that holds catalog content and configuration documents. Store has two
// implementations: GitHubStore talks to a hosted repository over its REST API
// and MemoryStore keeps revisions in memory.
package contentstore

import (
	"context"
	"path"
	"strings"
	"time"
)

// Revision describes one revision that touched a path.
type Revision struct {
	ID        string    `json:"commit_sha"`
	Message   string    `json:"message"`
	Author    string    `json:"author"`
	Timestamp time.Time `json:"timestamp"`
}

// ShortID returns the first seven characters of the revision id.
func (r Revision) ShortID() string {
	return ShortRevision(r.ID)
}

func ShortRevision(id string) string {
	if len(id) > 7 {
		return id[:7]
	}
	return id
}

// MinRevisionPrefix is the shortest revision prefix ReadAt accepts.
const MinRevisionPrefix = 4

// Document is the content of a path as of a revision.
type Document struct {
	Path     string
	Content  string
	Revision Revision
}

// Store reads and writes versioned files.
//
// Read and ReadAt return ErrNotFound and ErrRevisionNotFound respectively
// when there is nothing at the requested location. Errors reaching the
// upstream repository after retries are reported as ErrUpstreamUnavailable.
type Store interface {
	// Read returns the content at the head of the tracked branch together
	// with the latest revision that touched path.
	Read(ctx context.Context, path string) (*Document, error)
	// ReadAt returns the content as of revision, which must touch path.
	ReadAt(ctx context.Context, path, revision string) (*Document, error)
	// Write stores content as a new revision of path.
	Write(ctx context.Context, path, content, message string) (*Revision, error)
	// Delete records a revision that removes path. It returns ErrNotFound
	// when there is no file at path.
	Delete(ctx context.Context, path, message string) (*Revision, error)
	// List returns every file path below prefix, sorted.
	List(ctx context.Context, prefix string) ([]string, error)
	// History returns revisions touching path, newest first. limit <= 0
	// means no limit.
	History(ctx context.Context, path string, limit int) ([]Revision, error)
}

// CleanPath validates a repository path and returns it in canonical form.
func CleanPath(p string) (string, error) {
	p = strings.TrimSpace(p)
	if p == "" || strings.HasPrefix(p, "/") {
		return "", ErrInvalidPath.Msg("path must be relative and non-empty")
	}
	cleaned := path.Clean(p)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", ErrInvalidPath.Msg("path escapes the repository root")
	}
	return cleaned, nil
}
