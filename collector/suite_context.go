package collector

import (
	"context"

	"github.com/gofrs/uuid"
)

type ctxKey string

const (
	groupIDKey  ctxKey = "groupID"
	suiteIDsKey ctxKey = "suiteIDs"
)

// WithSuiteIDs returns a new context tagged with the given suite IDs.
// A suite is a set of runs started together, e.g. by one CLI invocation or
// one dashboard viewer. Runs carry several IDs when more than one viewer follows them.
func WithSuiteIDs(ctx context.Context, suiteIDs ...uuid.UUID) context.Context {
	if existing, ok := SuiteIDsFromContext(ctx); ok {
		suiteIDs = append(append([]uuid.UUID{}, existing...), suiteIDs...)
	}
	return context.WithValue(ctx, suiteIDsKey, suiteIDs)
}

// SuiteIDsFromContext retrieves the suite IDs from the context.
func SuiteIDsFromContext(ctx context.Context) ([]uuid.UUID, bool) {
	if suiteIDs, ok := ctx.Value(suiteIDsKey).([]uuid.UUID); ok {
		return suiteIDs, true
	}
	return nil, false
}

// EventIDFromContext returns the ID of the innermost event started with
// EventAggregator.StartEvent.
func EventIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	return groupIDFromContext(ctx)
}

// InEvent reports whether the context belongs to an open event.
func InEvent(ctx context.Context) bool {
	_, ok := groupIDFromContext(ctx)
	return ok
}

func groupIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	if groupID, ok := ctx.Value(groupIDKey).(uuid.UUID); ok {
		return groupID, true
	}
	return uuid.Nil, false
}

func withGroupID(ctx context.Context, groupID uuid.UUID) context.Context {
	return context.WithValue(ctx, groupIDKey, groupID)
}
