// Package webhook turns signed push notifications from the content host into
// targeted reconciliation runs.
package webhook

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/tansive/atlas/internal/atlassrv/reconcile"
	"github.com/tansive/atlas/internal/common/logtrace"
)

// Scanner runs a targeted reconciliation.
type Scanner interface {
	TargetedScan(ctx context.Context, paths []string) (*reconcile.Result, error)
}

const (
	StatusProcessed = "processed"
	StatusIgnored   = "ignored"
	StatusQueued    = "queued"
)

// Summary is returned to the sender. Per-path error details are logged and
// only counted here.
type Summary struct {
	Status  string   `json:"status"`
	Event   string   `json:"event"`
	Paths   []string `json:"paths"`
	Created int      `json:"created"`
	Updated int      `json:"updated"`
	Deleted int      `json:"deleted"`
	Errors  int      `json:"errors"`
}

type Ingestor struct {
	secret  []byte
	scanner Scanner
	worker  *Worker
	logger  zerolog.Logger
}

type Option func(*Ingestor)

// WithWorker hands verified deliveries to w instead of scanning inline.
func WithWorker(w *Worker) Option {
	return func(i *Ingestor) { i.worker = w }
}

func NewIngestor(secret string, scanner Scanner, opts ...Option) *Ingestor {
	i := &Ingestor{
		secret:  []byte(secret),
		scanner: scanner,
		logger:  logtrace.Component("webhook"),
	}
	for _, o := range opts {
		o(i)
	}
	return i
}

// QueueStats describes the backlog of an asynchronous ingestor.
type QueueStats struct {
	Pending  int `json:"pending"`
	Capacity int `json:"capacity"`
}

// Queue returns the worker backlog, or nil when deliveries are reconciled
// inline.
func (i *Ingestor) Queue() *QueueStats {
	if i.worker == nil {
		return nil
	}
	return &QueueStats{Pending: i.worker.Pending(), Capacity: i.worker.Capacity()}
}

func (i *Ingestor) Verify(body []byte, signature string) error {
	return VerifySignature(i.secret, body, signature)
}

// Ingest verifies the delivery before looking at its contents, then
// reconciles the tracked paths of push events. Other events are acknowledged.
func (i *Ingestor) Ingest(ctx context.Context, event string, body []byte, signature string) (*Summary, error) {
	if err := i.Verify(body, signature); err != nil {
		i.logger.Warn().Str("event", event).Msg("rejected webhook with invalid signature")
		return nil, err
	}

	summary := &Summary{Event: event, Paths: []string{}}
	if event != EventPush {
		i.logger.Debug().Str("event", event).Msg("ignoring webhook event")
		summary.Status = StatusIgnored
		return summary, nil
	}

	changed, err := ExtractPaths(body)
	if err != nil {
		return nil, err
	}
	summary.Paths = reconcile.FilterTracked(changed)
	if len(summary.Paths) == 0 {
		summary.Status = StatusProcessed
		return summary, nil
	}

	if i.worker != nil {
		if err := i.worker.Enqueue(Job{Paths: summary.Paths}); err != nil {
			return nil, err
		}
		summary.Status = StatusQueued
		return summary, nil
	}

	res, err := i.scanner.TargetedScan(ctx, summary.Paths)
	if err != nil {
		i.logger.Error().Err(err).Strs("paths", summary.Paths).Msg("targeted scan failed")
		return nil, err
	}
	logPathErrors(i.logger, res)
	summary.Status = StatusProcessed
	summary.Created, summary.Updated, summary.Deleted = res.Created, res.Updated, res.Deleted
	summary.Errors = len(res.Errors)
	return summary, nil
}

func logPathErrors(logger zerolog.Logger, res *reconcile.Result) {
	for _, pe := range res.Errors {
		logger.Error().Err(pe.Err).Str("path", pe.Path).Msg("webhook path reconciliation failed")
	}
}
