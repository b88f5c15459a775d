package models

import (
	"time"

	"github.com/tansive/atlas/internal/common/uuid"
)

/*
CREATE TABLE user_configurations (
  id UUID PRIMARY KEY,
  user_id UUID NOT NULL UNIQUE,
  path TEXT NOT NULL UNIQUE,
  last_revision TEXT NOT NULL DEFAULT '',
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
*/

// UserConfiguration points at a user's configuration document in the
// content store.
type UserConfiguration struct {
	ID           uuid.UUID `db:"id"`
	UserID       uuid.UUID `db:"user_id"`
	Path         string    `db:"path"`
	LastRevision string    `db:"last_revision"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}
