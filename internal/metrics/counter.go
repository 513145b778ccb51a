package metrics

import (
	"context"

	"go.uber.org/zap"

	"github.com/ca-srg/prodsearch/internal/types"
)

type surfaceKey struct{}

// WithSurface tags ctx with the entry point of the request.
func WithSurface(ctx context.Context, surface Surface) context.Context {
	return context.WithValue(ctx, surfaceKey{}, surface)
}

// SurfaceFromContext returns the tagged surface, defaulting to http.
func SurfaceFromContext(ctx context.Context) Surface {
	if s, ok := ctx.Value(surfaceKey{}).(Surface); ok && s != "" {
		return s
	}
	return SurfaceHTTP
}

// Recorder counts search outcomes in a Store.
type Recorder struct {
	store  *Store
	logger *zap.Logger
}

// NewRecorder creates a Recorder. A nil store makes Record a no-op.
func NewRecorder(store *Store, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{store: store, logger: logger.Named("usage")}
}

// Record increments the counter for strategy under the context's surface.
func (r *Recorder) Record(ctx context.Context, strategy types.Strategy) error {
	if r == nil || r.store == nil {
		return nil
	}
	surface := SurfaceFromContext(ctx)
	if err := r.store.Increment(ctx, surface, strategy); err != nil {
		return err
	}
	r.logger.Debug("search recorded", zap.String("surface", string(surface)), zap.String("strategy", string(strategy)))
	return nil
}

// Store returns the underlying store.
func (r *Recorder) Store() *Store {
	return r.store
}
