// SPDX-License-Identifier: MIT

package queue

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/alexandriaenglishd6/yt-subtitle-v2-sub001/internal/errclass"
)

type sink struct {
	mu     sync.Mutex
	passed []int
	failed []int
	errs   []error
}

func (s *sink) success(v int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.passed = append(s.passed, v)
}

func (s *sink) failure(v int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failed = append(s.failed, v)
	s.errs = append(s.errs, err)
}

func (s *sink) snapshot() (passed, failed []int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.passed...), append([]int(nil), s.failed...)
}

func TestQueueProcessesAndForwards(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	var snk sink
	q := New(Config[int]{
		Name:    "detect",
		Workers: 3,
		Process: func(_ context.Context, v int) (int, error) {
			return v * 10, nil
		},
		OnSuccess: snk.success,
		OnFailure: snk.failure,
	})
	q.Start(context.Background())

	for i := 1; i <= 5; i++ {
		require.NoError(t, q.Submit(context.Background(), i))
	}
	q.CloseInput()
	q.WaitDrained()

	passed, failed := snk.snapshot()
	sort.Ints(passed)
	assert.Equal(t, []int{10, 20, 30, 40, 50}, passed)
	assert.Empty(t, failed)

	st := q.Stats()
	assert.EqualValues(t, 5, st.Processed)
	assert.EqualValues(t, 0, st.Failed)
	assert.EqualValues(t, 0, st.InFlight)
	assert.Equal(t, 0, st.Depth)
}

func TestQueueRoutesFailures(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	var snk sink
	q := New(Config[int]{
		Name:    "download",
		Workers: 1,
		Process: func(_ context.Context, v int) (int, error) {
			if v%2 == 0 {
				return 0, errclass.New(errclass.Network, "download", "boom")
			}
			return v, nil
		},
		OnSuccess: snk.success,
		OnFailure: snk.failure,
	})
	q.Start(context.Background())

	for i := 1; i <= 4; i++ {
		require.NoError(t, q.Submit(context.Background(), i))
	}
	q.CloseInput()
	q.WaitDrained()

	passed, failed := snk.snapshot()
	assert.Equal(t, []int{1, 3}, passed)
	assert.Equal(t, []int{2, 4}, failed)
	for _, err := range snk.errs {
		assert.Equal(t, errclass.Network, errclass.Classify(err))
	}

	st := q.Stats()
	assert.EqualValues(t, 2, st.Processed)
	assert.EqualValues(t, 2, st.Failed)
}

func TestQueueDropIsNeitherForwardNorFailure(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	var snk sink
	q := New(Config[int]{
		Name:    "detect",
		Workers: 1,
		Process: func(_ context.Context, v int) (int, error) {
			if v == 2 {
				return v, ErrDrop
			}
			return v, nil
		},
		OnSuccess: snk.success,
		OnFailure: snk.failure,
	})
	q.Start(context.Background())

	for i := 1; i <= 3; i++ {
		require.NoError(t, q.Submit(context.Background(), i))
	}
	q.CloseInput()
	q.WaitDrained()

	passed, failed := snk.snapshot()
	assert.Equal(t, []int{1, 3}, passed)
	assert.Empty(t, failed)
	assert.EqualValues(t, 3, q.Stats().Processed)
}

func TestQueueCancelDrainsToFailureSink(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	ctx, cancel := context.WithCancel(context.Background())
	release := make(chan struct{})

	var snk sink
	q := New(Config[int]{
		Name:     "translate",
		Workers:  1,
		Capacity: 8,
		Process: func(pctx context.Context, v int) (int, error) {
			select {
			case <-release:
				return v, nil
			case <-pctx.Done():
				return v, errclass.Wrap(errclass.Cancelled, "translate", pctx.Err())
			}
		},
		OnSuccess: snk.success,
		OnFailure: snk.failure,
	})
	q.Start(ctx)

	for i := 1; i <= 5; i++ {
		require.NoError(t, q.Submit(context.Background(), i))
	}
	q.CloseInput()

	// First item is blocked in Process; the rest sit queued. Cancel
	// must fail all of them without running the queued ones.
	cancel()
	q.WaitDrained()
	close(release)

	passed, failed := snk.snapshot()
	assert.Empty(t, passed)
	assert.Len(t, failed, 5)
	for _, err := range snk.errs {
		assert.Equal(t, errclass.Cancelled, errclass.Classify(err))
	}
}

func TestSubmitBlocksWhenFullAndUnblocksOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	release := make(chan struct{})
	q := New(Config[int]{
		Name:     "output",
		Workers:  1,
		Capacity: 1,
		Process: func(pctx context.Context, v int) (int, error) {
			select {
			case <-release:
			case <-pctx.Done():
			}
			return v, nil
		},
	})
	qctx, qcancel := context.WithCancel(context.Background())
	q.Start(qctx)

	// Worker holds item 1; item 2 fills the buffer.
	require.NoError(t, q.Submit(context.Background(), 1))
	require.NoError(t, q.Submit(context.Background(), 2))

	submitCtx, submitCancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- q.Submit(submitCtx, 3) }()

	select {
	case err := <-errCh:
		t.Fatalf("Submit returned early: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	submitCancel()
	select {
	case err := <-errCh:
		require.Error(t, err)
		assert.Equal(t, errclass.Cancelled, errclass.Classify(err))
	case <-time.After(time.Second):
		t.Fatal("Submit did not unblock after cancel")
	}

	close(release)
	q.CloseInput()
	q.WaitDrained()
	qcancel()
}

func TestQueueDefaults(t *testing.T) {
	q := New(Config[string]{
		Name:    "x",
		Process: func(_ context.Context, s string) (string, error) { return s, nil },
	})
	assert.Equal(t, 1, q.workers)
	assert.Equal(t, 2, cap(q.items))
}
