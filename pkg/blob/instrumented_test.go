package blob

import (
	"context"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkolev/warrantyhub/pkg/observability"
)

func TestInstrumentedStoreRecordsOperations(t *testing.T) {
	inner, err := NewFilesystemStore(t.TempDir())
	require.NoError(t, err)
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	store := NewInstrumentedStore(inner, metrics)
	ctx := context.Background()

	key := NewKey("receipt.pdf")
	require.NoError(t, store.Put(ctx, key, strings.NewReader("bytes"), "application/pdf"))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.BlobOperationsTotal.WithLabelValues("put", "success")))

	rc, err := store.Get(ctx, key)
	require.NoError(t, err)
	rc.Close()
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.BlobOperationsTotal.WithLabelValues("get", "success")))

	require.NoError(t, store.Delete(ctx, key))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.BlobOperationsTotal.WithLabelValues("delete", "success")))
}

func TestInstrumentedStoreCountsNotFoundSeparately(t *testing.T) {
	inner, err := NewFilesystemStore(t.TempDir())
	require.NoError(t, err)
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	store := NewInstrumentedStore(inner, metrics)

	_, err = store.Get(context.Background(), "uploads/absent.jpg")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.BlobOperationsTotal.WithLabelValues("get", "not_found")))
	assert.Zero(t, testutil.ToFloat64(metrics.BlobOperationsTotal.WithLabelValues("get", "error")))
}
