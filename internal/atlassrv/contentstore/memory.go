package contentstore

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

type memRevision struct {
	Revision
	content string
	deleted bool
}

// MemoryStore is an in-memory Store. Every write or delete creates a new
// revision; nothing is ever rewritten.
type MemoryStore struct {
	mu     sync.RWMutex
	files  map[string][]memRevision // oldest first
	seq    uint64
	author string
	now    func() time.Time
}

type MemoryOption func(*MemoryStore)

// WithAuthor sets the author recorded on revisions.
func WithAuthor(author string) MemoryOption {
	return func(m *MemoryStore) { m.author = author }
}

// WithClock replaces time.Now for revision timestamps.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *MemoryStore) { m.now = now }
}

func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	m := &MemoryStore{
		files:  make(map[string][]memRevision),
		author: "atlas",
		now:    time.Now,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

var _ Store = (*MemoryStore)(nil)

func (m *MemoryStore) Read(ctx context.Context, p string) (*Document, error) {
	p, err := CleanPath(p)
	if err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	revs := m.files[p]
	if len(revs) == 0 || revs[len(revs)-1].deleted {
		return nil, ErrNotFound.Msg("no file at " + p)
	}
	head := revs[len(revs)-1]
	return &Document{Path: p, Content: head.content, Revision: head.Revision}, nil
}

func (m *MemoryStore) ReadAt(ctx context.Context, p, revision string) (*Document, error) {
	p, err := CleanPath(p)
	if err != nil {
		return nil, err
	}
	if len(revision) < MinRevisionPrefix {
		return nil, ErrRevisionNotFound.Msg(fmt.Sprintf("revision %q is shorter than %d characters", revision, MinRevisionPrefix))
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var match *memRevision
	for i, r := range m.files[p] {
		if !strings.HasPrefix(r.ID, revision) {
			continue
		}
		if match != nil {
			return nil, ErrRevisionNotFound.Msg(fmt.Sprintf("revision %s is ambiguous for %s", revision, p))
		}
		match = &m.files[p][i]
	}
	if match == nil {
		return nil, ErrRevisionNotFound.Msg(fmt.Sprintf("revision %s does not touch %s", revision, p))
	}
	if match.deleted {
		return nil, ErrRevisionNotFound.Msg(fmt.Sprintf("%s was deleted in %s", p, match.ShortID()))
	}
	return &Document{Path: p, Content: match.content, Revision: match.Revision}, nil
}

func (m *MemoryStore) Write(ctx context.Context, p, content, message string) (*Revision, error) {
	p, err := CleanPath(p)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, ErrUpstreamUnavailable.Err(err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rev := m.appendLocked(p, content, message, false)
	return &rev, nil
}

// Delete records a revision that removes path.
func (m *MemoryStore) Delete(ctx context.Context, p, message string) (*Revision, error) {
	p, err := CleanPath(p)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	revs := m.files[p]
	if len(revs) == 0 || revs[len(revs)-1].deleted {
		return nil, ErrNotFound.Msg("no file at " + p)
	}
	rev := m.appendLocked(p, "", message, true)
	return &rev, nil
}

func (m *MemoryStore) appendLocked(p, content, message string, deleted bool) Revision {
	m.seq++
	sum := sha1.Sum([]byte(fmt.Sprintf("%d\x00%s\x00%s\x00%s", m.seq, p, message, content)))
	rev := Revision{
		ID:        hex.EncodeToString(sum[:]),
		Message:   message,
		Author:    m.author,
		Timestamp: m.now().UTC(),
	}
	m.files[p] = append(m.files[p], memRevision{Revision: rev, content: content, deleted: deleted})
	return rev
}

func (m *MemoryStore) List(ctx context.Context, prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var paths []string
	for p, revs := range m.files {
		if !strings.HasPrefix(p, prefix) || revs[len(revs)-1].deleted {
			continue
		}
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths, nil
}

func (m *MemoryStore) History(ctx context.Context, p string, limit int) ([]Revision, error) {
	p, err := CleanPath(p)
	if err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	revs := m.files[p]
	out := make([]Revision, 0, len(revs))
	for i := len(revs) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, revs[i].Revision)
	}
	return out, nil
}
