package store

import (
	"context"
	"encoding/json"

	"github.com/sirupsen/logrus"
)

// BestEffort wraps a backend so mutations never fail the caller: a failed
// write or delete is logged and dropped. Reads still report real errors.
// This is the constructor-time replacement for the original ambient
// "shouldCache" toggle; callers in best-effort deployments must not assume
// persistence guarantees.
type BestEffort struct {
	inner Store
	log   *logrus.Logger
}

func NewBestEffort(inner Store, log *logrus.Logger) *BestEffort {
	return &BestEffort{inner: inner, log: log}
}

func (b *BestEffort) Read(ctx context.Context, collection, id string) (json.RawMessage, error) {
	return b.inner.Read(ctx, collection, id)
}

func (b *BestEffort) Write(ctx context.Context, collection, id string, doc json.RawMessage) error {
	if err := b.inner.Write(ctx, collection, id, doc); err != nil {
		b.log.WithFields(logrus.Fields{"collection": collection, "id": id}).
			WithError(err).Warn("best-effort store: dropped write")
	}
	return nil
}

func (b *BestEffort) Delete(ctx context.Context, collection, id string) error {
	if err := b.inner.Delete(ctx, collection, id); err != nil {
		b.log.WithFields(logrus.Fields{"collection": collection, "id": id}).
			WithError(err).Warn("best-effort store: dropped delete")
	}
	return nil
}

func (b *BestEffort) List(ctx context.Context, collection string) ([]Record, error) {
	return b.inner.List(ctx, collection)
}
