package apis

import (
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"
	"github.com/tansive/atlas/internal/atlassrv/webhook"
	"github.com/tansive/atlas/internal/common/apperrors"
	"github.com/tansive/atlas/internal/common/httpx"
)

// retryAfterSeconds is sent with 429 when the webhook queue is full.
const retryAfterSeconds = "30"

func (s *Services) githubWebhook(r *http.Request) (*httpx.Response, error) {
	ctx := r.Context()
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, httpx.ErrRequestTooLarge(maxErr.Limit)
		}
		return nil, httpx.ErrUnableToReadRequest()
	}
	event := r.Header.Get(webhook.EventHeader)
	log.Ctx(ctx).Debug().
		Str("event", event).
		Str("delivery", r.Header.Get(webhook.DeliveryHeader)).
		Msg("webhook delivery")

	summary, err := s.Ingestor.Ingest(ctx, event, body, r.Header.Get(webhook.SignatureHeader))
	if err != nil {
		switch {
		case errors.Is(err, webhook.ErrSignatureVerification):
			return nil, httpx.ErrUnAuthorized("invalid signature")
		case errors.Is(err, webhook.ErrQueueFull):
			return &httpx.Response{
				StatusCode: http.StatusTooManyRequests,
				Headers:    map[string]string{"Retry-After": retryAfterSeconds},
				Response:   map[string]any{"result": httpx.Failure, "error": webhook.ErrQueueFull.Error()},
			}, nil
		case errors.Is(err, webhook.ErrInvalidPayload), errors.Is(err, webhook.ErrWorkerStopped):
			return nil, err
		}
		// Scan-wide failures keep their status but not their upstream detail.
		status := http.StatusInternalServerError
		if appErr, ok := err.(apperrors.Error); ok && appErr.StatusCode() != 0 {
			status = appErr.StatusCode()
		}
		return nil, &httpx.Error{StatusCode: status, Description: "reconciliation failed"}
	}

	status := http.StatusOK
	if summary.Status == webhook.StatusQueued {
		status = http.StatusAccepted
	}
	return &httpx.Response{
		StatusCode: status,
		Response:   summary,
	}, nil
}

func (s *Services) fullSync(r *http.Request) (*httpx.Response, error) {
	ctx := r.Context()
	res, err := s.Engine.TryFullScan(ctx)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("full scan failed")
		return nil, err
	}
	log.Ctx(ctx).Info().Stringer("result", res).Msg("full scan complete")
	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response:   res,
	}, nil
}
