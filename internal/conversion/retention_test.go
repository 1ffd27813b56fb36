package conversion

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"waveconv/entity"
	"waveconv/internal/storage"
	"waveconv/internal/storage/localfs"
	"waveconv/internal/telemetry/metric"
	"waveconv/pkg/logger"
)

func putAged(t *testing.T, store *localfs.Store, root, key string, age time.Duration, now time.Time) {
	t.Helper()
	_, err := store.Put(context.Background(), key, strings.NewReader("x"), "")
	require.NoError(t, err)
	ts := now.Add(-age)
	require.NoError(t, os.Chtimes(filepath.Join(root, filepath.FromSlash(key)), ts, ts))
}

func TestSweeper_Sweep(t *testing.T) {
	root := t.TempDir()
	store, err := localfs.New(root)
	require.NoError(t, err)

	now := time.Now()
	putAged(t, store, root, "uploads/old.wav", 25*time.Hour, now)
	putAged(t, store, root, "uploads/fresh.wav", time.Hour, now)
	putAged(t, store, root, "converted/old.oga", 48*time.Hour, now)
	putAged(t, store, root, "converted/fresh.oga", 23*time.Hour, now)

	m := metric.NewMetrics(prometheus.NewRegistry())
	s := NewSweeper(store, logger.New("disabled"), m, 6*time.Hour, 24*time.Hour)

	n, err := s.Sweep(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	assert.ElementsMatch(t, []string{"uploads/fresh.wav"}, keys(t, store, entity.InputPrefix))
	assert.ElementsMatch(t, []string{"converted/fresh.oga"}, keys(t, store, entity.OutputPrefix))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.RetentionDeleted))

	n, err = s.Sweep(context.Background(), now)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSweeper_ContinuesAfterErrors(t *testing.T) {
	now := time.Now()
	old := now.Add(-48 * time.Hour)

	store := storage.NewMockArtifactStore()
	store.On("List", mock.Anything, entity.InputPrefix).Return(nil, errors.New("listing failed"))
	store.On("List", mock.Anything, entity.OutputPrefix).Return([]entity.ArtifactInfo{
		{Key: "converted/a.oga", ModTime: old},
		{Key: "converted/b.oga", ModTime: old},
		{Key: "converted/c.oga", ModTime: now},
	}, nil)
	store.On("Delete", mock.Anything, "converted/a.oga").Return(errors.New("permission denied"))
	store.On("Delete", mock.Anything, "converted/b.oga").Return(nil)

	s := NewSweeper(store, logger.New("disabled"), nil, time.Hour, 24*time.Hour)

	n, err := s.Sweep(context.Background(), now)
	assert.Equal(t, 1, n)
	assert.ErrorContains(t, err, "listing failed")
	assert.ErrorContains(t, err, "permission denied")
	store.AssertNotCalled(t, "Delete", mock.Anything, "converted/c.oga")
}

func TestSweeper_RunSweepsImmediatelyAndStops(t *testing.T) {
	root := t.TempDir()
	store, err := localfs.New(root)
	require.NoError(t, err)
	putAged(t, store, root, "converted/old.oga", 48*time.Hour, time.Now())

	s := NewSweeper(store, logger.New("disabled"), nil, time.Hour, 24*time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		items, err := store.List(context.Background(), entity.OutputPrefix)
		return err == nil && len(items) == 0
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("sweeper did not stop")
	}
}
