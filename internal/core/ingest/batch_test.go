package ingest

import (
	"context"
	"sync"
	"testing"
	"time"

	"recipe-ingest/internal/core/source"
	"recipe-ingest/internal/pkg/common"

	"github.com/stretchr/testify/require"
)

type recordingStarter struct {
	mu       sync.Mutex
	sessions []string
}

func (s *recordingStarter) Start(ctx context.Context, sessionID string, src *source.RawSource) (*State, error) {
	s.mu.Lock()
	s.sessions = append(s.sessions, sessionID)
	s.mu.Unlock()
	if src.Text() == "kaputt" {
		return nil, common.ErrInsufficientContent
	}
	return &State{SessionID: sessionID, Stage: StageOCRReview}, nil
}

func TestBatchRunnerProcessesEveryItem(t *testing.T) {
	starter := &recordingStarter{}
	r := NewBatchRunner(starter, 2, 10)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r.Start(ctx)
	defer r.Close()

	batch, err := r.Submit(ctx, []*source.RawSource{
		source.FromText("Tomatensuppe"),
		source.FromText("kaputt"),
		source.FromURL("https://example.com/rezept"),
	})
	require.NoError(t, err)
	require.Len(t, batch.Items, 3)
	require.Equal(t, batch.ID+":1", batch.Items[1].SessionID)

	require.Eventually(t, func() bool {
		return r.Status().ProcessedCount == 3
	}, 2*time.Second, 10*time.Millisecond)

	got, err := r.Batch(batch.ID)
	require.NoError(t, err)
	require.Equal(t, ItemReady, got.Items[0].Status)
	require.Equal(t, StageOCRReview, got.Items[0].Stage)
	require.Equal(t, ItemFailed, got.Items[1].Status)
	require.NotEmpty(t, got.Items[1].Error)
	require.Equal(t, ItemReady, got.Items[2].Status)
	require.Equal(t, "url", got.Items[2].Kind)
	require.ElementsMatch(t, []string{batch.ID + ":0", batch.ID + ":1", batch.ID + ":2"}, starter.sessions)
}

func TestBatchRunnerRejectsWhenFull(t *testing.T) {
	r := NewBatchRunner(&recordingStarter{}, 1, 2)

	_, err := r.Submit(context.Background(), []*source.RawSource{
		source.FromText("a"), source.FromText("b"), source.FromText("c"),
	})
	require.ErrorIs(t, err, common.ErrTooManyRequests)

	_, err = r.Submit(context.Background(), nil)
	require.ErrorIs(t, err, common.ErrInvalidRequest)

	status := r.Status()
	require.Equal(t, 0, status.QueueLength)
	require.Equal(t, 2, status.MaxQueueSize)
	require.Equal(t, 1, status.Workers)
}

func TestBatchRunnerUnknownBatch(t *testing.T) {
	r := NewBatchRunner(&recordingStarter{}, 1, 2)
	_, err := r.Batch("nope")
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestBatchRunnerClosed(t *testing.T) {
	r := NewBatchRunner(&recordingStarter{}, 1, 2)
	r.Start(context.Background())
	r.Close()
	_, err := r.Submit(context.Background(), []*source.RawSource{source.FromText("a")})
	require.ErrorIs(t, err, common.ErrServiceUnavailable)
}
