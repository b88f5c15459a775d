// Package reconcile keeps the metadata index consistent with the content
// store. A full scan compares every tracked prefix; a targeted scan looks only
// at the paths named by a push notification. Both produce the same index
// state for the paths they cover.
package reconcile

import (
	"context"
	"errors"
	"sort"

	"github.com/rs/zerolog"
	"github.com/tansive/atlas/internal/atlassrv/atlascommon"
	"github.com/tansive/atlas/internal/atlassrv/contentstore"
	"github.com/tansive/atlas/internal/atlassrv/db"
	"github.com/tansive/atlas/internal/atlassrv/db/dberror"
	"github.com/tansive/atlas/internal/atlassrv/db/models"
	"github.com/tansive/atlas/internal/atlassrv/frontmatter"
	"github.com/tansive/atlas/internal/atlassrv/schemavalidator"
	"github.com/tansive/atlas/internal/common/logtrace"
	"github.com/tansive/atlas/internal/common/uuid"
)

// Engine serializes reconciliation runs through a single slot.
type Engine struct {
	store      contentstore.Store
	index      db.CatalogManager
	systemUser uuid.UUID
	slot       chan struct{}
	logger     zerolog.Logger
}

// NewEngine creates an engine that attributes new entries to systemUser.
func NewEngine(store contentstore.Store, index db.CatalogManager, systemUser uuid.UUID) *Engine {
	return &Engine{
		store:      store,
		index:      index,
		systemUser: systemUser,
		slot:       make(chan struct{}, 1),
		logger:     logtrace.Component("reconcile"),
	}
}

func (e *Engine) acquire(ctx context.Context) error {
	select {
	case e.slot <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Engine) tryAcquire() bool {
	select {
	case e.slot <- struct{}{}:
		return true
	default:
		return false
	}
}

func (e *Engine) release() { <-e.slot }

// Exclusive waits for the slot and runs fn while holding it, so no scan sees
// the store and the index part way through fn.
func (e *Engine) Exclusive(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := e.acquire(ctx); err != nil {
		return err
	}
	defer e.release()
	return fn(ctx)
}

// FullScan waits for the slot and reconciles every tracked prefix.
func (e *Engine) FullScan(ctx context.Context) (*Result, error) {
	if err := e.acquire(ctx); err != nil {
		return nil, err
	}
	defer e.release()
	return e.fullScan(ctx)
}

// TryFullScan is FullScan for manual triggers: it returns ErrScanInProgress
// instead of waiting when another run holds the slot.
func (e *Engine) TryFullScan(ctx context.Context) (*Result, error) {
	if !e.tryAcquire() {
		return nil, ErrScanInProgress
	}
	defer e.release()
	return e.fullScan(ctx)
}

// TargetedScan reconciles the given paths. Untracked paths are dropped and
// duplicates collapsed. It waits for a running scan to finish.
func (e *Engine) TargetedScan(ctx context.Context, paths []string) (*Result, error) {
	paths = FilterTracked(paths)
	if len(paths) == 0 {
		return newResult(), nil
	}
	if err := e.acquire(ctx); err != nil {
		return nil, err
	}
	defer e.release()

	res := newResult()
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if err := e.syncPath(ctx, p, res); err != nil {
			if unavailable(err) {
				e.logger.Error().Err(err).Str("path", p).Msg("targeted scan aborted")
				return nil, scanFailed("unable to reconcile "+p, err)
			}
			e.logger.Warn().Err(err).Str("path", p).Msg("path reconciliation failed")
			res.fail(p, err)
		}
	}
	e.logger.Info().Int("paths", len(paths)).Stringer("result", res).Msg("targeted scan complete")
	return res, nil
}

// FilterTracked returns the distinct tracked paths in sorted order.
func FilterTracked(paths []string) []string {
	seen := make(map[string]struct{}, len(paths))
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if !atlascommon.IsTrackedPath(p) {
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

func (e *Engine) fullScan(ctx context.Context) (*Result, error) {
	content := make(map[string]struct{})
	for _, tp := range atlascommon.TrackedPrefixes() {
		paths, err := e.store.List(ctx, tp.Prefix)
		if err != nil {
			e.logger.Error().Err(err).Str("prefix", tp.Prefix).Msg("unable to list content")
			return nil, scanFailed("unable to list "+tp.Prefix, err)
		}
		for _, p := range paths {
			if atlascommon.IsTrackedPath(p) {
				content[p] = struct{}{}
			}
		}
	}

	entries, err := e.index.ListEntries(ctx, models.EntryFilter{PathPrefixes: atlascommon.TrackedPrefixStrings()})
	if err != nil {
		e.logger.Error().Err(err).Msg("unable to list catalog entries")
		return nil, scanFailed("unable to list catalog entries", err)
	}
	indexed := make(map[string]*models.CatalogEntry, len(entries))
	for _, entry := range entries {
		indexed[entry.Path] = entry
	}

	res := newResult()
	for _, p := range sortedKeys(content) {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		var err error
		if entry, ok := indexed[p]; ok {
			err = e.refreshFromHistory(ctx, entry, res)
		} else {
			err = e.createFromStore(ctx, p, res)
		}
		if err != nil {
			if unavailable(err) {
				e.logger.Error().Err(err).Str("path", p).Msg("full scan aborted")
				return nil, scanFailed("unable to reconcile "+p, err)
			}
			e.logger.Warn().Err(err).Str("path", p).Msg("path reconciliation failed")
			res.fail(p, err)
		}
	}

	for _, p := range sortedKeys(indexed) {
		if _, ok := content[p]; ok {
			continue
		}
		if err := e.remove(ctx, indexed[p], res); err != nil {
			if unavailable(err) {
				e.logger.Error().Err(err).Str("path", p).Msg("full scan aborted")
				return nil, scanFailed("unable to reconcile "+p, err)
			}
			e.logger.Warn().Err(err).Str("path", p).Msg("path reconciliation failed")
			res.fail(p, err)
		}
	}
	e.logger.Info().Stringer("result", res).Msg("full scan complete")
	return res, nil
}

// unavailable reports whether err means the store or the index cannot be
// reached, in which case no later path would succeed either.
func unavailable(err error) bool {
	return errors.Is(err, contentstore.ErrUpstreamUnavailable) || errors.Is(err, dberror.ErrUnavailable)
}

func scanFailed(msg string, err error) error {
	appErr := ErrScanFailed.MsgErr(msg, err)
	if unavailable(err) {
		appErr = appErr.SetStatusCode(contentstore.ErrUpstreamUnavailable.StatusCode())
	}
	return appErr
}

// syncPath applies the targeted decision table to one path.
func (e *Engine) syncPath(ctx context.Context, p string, res *Result) error {
	entry, err := e.index.GetEntryByPath(ctx, p)
	if err != nil && !errors.Is(err, dberror.ErrNotFound) {
		return err
	}
	if errors.Is(err, dberror.ErrNotFound) {
		entry = nil
	}

	doc, readErr := e.store.Read(ctx, p)
	if readErr != nil {
		if !errors.Is(readErr, contentstore.ErrNotFound) {
			return readErr
		}
		if entry == nil {
			e.logger.Debug().Str("path", p).Msg("path absent from content and index")
			return nil
		}
		return e.remove(ctx, entry, res)
	}

	if entry == nil {
		return e.create(ctx, doc, res)
	}
	if !isNewer(entry, doc.Revision) {
		return nil
	}
	return e.update(ctx, entry, doc, res)
}

// isNewer reports whether rev supersedes the content the entry was built from.
func isNewer(entry *models.CatalogEntry, rev contentstore.Revision) bool {
	if entry.ContentRevision != "" {
		return rev.ID != "" && rev.ID != entry.ContentRevision
	}
	return rev.Timestamp.After(entry.UpdatedAt)
}

func (e *Engine) refreshFromHistory(ctx context.Context, entry *models.CatalogEntry, res *Result) error {
	revs, err := e.store.History(ctx, entry.Path, 1)
	if err != nil {
		return err
	}
	if len(revs) == 0 || !isNewer(entry, revs[0]) {
		return nil
	}
	doc, err := e.store.Read(ctx, entry.Path)
	if err != nil {
		return err
	}
	return e.update(ctx, entry, doc, res)
}

func (e *Engine) createFromStore(ctx context.Context, p string, res *Result) error {
	doc, err := e.store.Read(ctx, p)
	if err != nil {
		return err
	}
	return e.create(ctx, doc, res)
}

func (e *Engine) create(ctx context.Context, doc *contentstore.Document, res *Result) error {
	typ, _ := atlascommon.EntryTypeForPath(doc.Path)
	name, description := frontmatter.Describe(doc.Path, doc.Content)
	entry := &models.CatalogEntry{
		ID:              uuid.UUID7(),
		Type:            typ,
		Name:            name,
		Description:     description,
		Path:            doc.Path,
		OwnerID:         e.systemUser,
		Tags:            []string{},
		ContentRevision: doc.Revision.ID,
	}
	if err := schemavalidator.V().Struct(entry); err != nil {
		return ErrInvalidEntry.Msg(schemavalidator.Describe(err))
	}
	if err := e.index.CreateEntry(ctx, entry); err != nil {
		return err
	}
	e.logger.Debug().Str("path", doc.Path).Str("type", string(typ)).Msg("catalog entry created")
	res.Created++
	return nil
}

func (e *Engine) update(ctx context.Context, entry *models.CatalogEntry, doc *contentstore.Document, res *Result) error {
	name, description := frontmatter.Describe(doc.Path, doc.Content)
	next := *entry
	next.Name, next.Description, next.ContentRevision = name, description, doc.Revision.ID
	if err := schemavalidator.V().Struct(&next); err != nil {
		return ErrInvalidEntry.Msg(schemavalidator.Describe(err))
	}
	err := e.index.UpdateEntryContent(ctx, entry.ID, models.ContentFields{
		Name:            name,
		Description:     description,
		ContentRevision: doc.Revision.ID,
	})
	if err != nil {
		return err
	}
	e.logger.Debug().Str("path", doc.Path).Str("revision", doc.Revision.ShortID()).Msg("catalog entry updated")
	res.Updated++
	return nil
}

func (e *Engine) remove(ctx context.Context, entry *models.CatalogEntry, res *Result) error {
	if err := e.index.DeleteEntry(ctx, entry.ID); err != nil {
		if errors.Is(err, dberror.ErrNotFound) {
			return nil
		}
		return err
	}
	e.logger.Debug().Str("path", entry.Path).Msg("catalog entry deleted")
	res.Deleted++
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
