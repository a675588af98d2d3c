package blob

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/pkolev/warrantyhub/pkg/observability"
)

// InstrumentedStore wraps a Store and records every operation's outcome and
// latency in Prometheus. ErrNotFound counts as its own outcome rather than
// an error, since best-effort cleanup treats it as success.
type InstrumentedStore struct {
	inner   Store
	metrics *observability.Metrics
}

// NewInstrumentedStore wraps inner with operation metrics
func NewInstrumentedStore(inner Store, metrics *observability.Metrics) *InstrumentedStore {
	return &InstrumentedStore{inner: inner, metrics: metrics}
}

// Put uploads content under key, recording the operation
func (s *InstrumentedStore) Put(ctx context.Context, key string, content io.Reader, contentType string) error {
	start := time.Now()
	err := s.inner.Put(ctx, key, content, contentType)
	s.record("put", start, err)
	return err
}

// Get retrieves the content stored under key, recording the operation
func (s *InstrumentedStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	start := time.Now()
	rc, err := s.inner.Get(ctx, key)
	s.record("get", start, err)
	return rc, err
}

// Delete removes the object under key, recording the operation
func (s *InstrumentedStore) Delete(ctx context.Context, key string) error {
	start := time.Now()
	err := s.inner.Delete(ctx, key)
	s.record("delete", start, err)
	return err
}

func (s *InstrumentedStore) record(operation string, start time.Time, err error) {
	status := "success"
	switch {
	case errors.Is(err, ErrNotFound):
		status = "not_found"
	case err != nil:
		status = "error"
	}
	s.metrics.BlobOperationsTotal.WithLabelValues(operation, status).Inc()
	s.metrics.BlobOperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
