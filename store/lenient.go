package store

import (
	"context"

	"go.uber.org/zap"

	"github.com/Keksclan/linkSquirrel/contextx"
	"github.com/Keksclan/linkSquirrel/linkpage"
)

// Reader is the read half of an [Accessor].
type Reader interface {
	linkpage.ProfileReader
	linkpage.AIPageReader
}

// Lenient decorates a [Reader] so that read failures are logged and reported
// as not found. It is meant for the cache read path only
// (linkpage.WithReadAccessors); write paths must see real errors.
//
// Reads through a Lenient reader never fail, so the revalidating cache
// stores the resulting not-found outcome for its TTL.
type Lenient struct {
	next   Reader
	logger *zap.Logger
}

// NewLenient wraps next.
func NewLenient(next Reader, logger *zap.Logger) *Lenient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Lenient{next: next, logger: logger}
}

func (l *Lenient) swallow(ctx context.Context, kind, key string, err error) {
	l.logger.Error("read failed, reporting not found",
		zap.String("kind", kind),
		zap.String("key", key),
		zap.String("request_id", contextx.RequestIDFromContext(ctx)),
		zap.Error(err),
	)
}

// FindProfile implements [linkpage.ProfileReader].
func (l *Lenient) FindProfile(ctx context.Context, username string) (*linkpage.Profile, bool, error) {
	p, ok, err := l.next.FindProfile(ctx, username)
	if err != nil {
		l.swallow(ctx, "profile", username, err)
		return nil, false, nil
	}
	return p, ok, nil
}

// FindAIPage implements [linkpage.AIPageReader].
func (l *Lenient) FindAIPage(ctx context.Context, slug string) (*linkpage.AIPage, bool, error) {
	p, ok, err := l.next.FindAIPage(ctx, slug)
	if err != nil {
		l.swallow(ctx, "ai-page", slug, err)
		return nil, false, nil
	}
	return p, ok, nil
}
