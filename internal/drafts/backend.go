package drafts

import (
	"context"
	"time"
)

// Record is one stored value. Namespace groups the records of one user.
type Record struct {
	Namespace string
	Key       string
	Value     string
	UpdatedAt time.Time
}

// Backend persists records. Get returns apierrors.ErrDraftNotFound for unknown keys.
type Backend interface {
	Get(ctx context.Context, namespace, key string) (Record, error)
	Set(ctx context.Context, record Record) error
	Delete(ctx context.Context, namespace, key string) error
	List(ctx context.Context, namespace string) ([]Record, error)
	Clear(ctx context.Context, namespace string) error
	Close() error
}
