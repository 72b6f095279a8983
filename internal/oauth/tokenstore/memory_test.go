package tokenstore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemoryTakeOnce(t *testing.T) {
	s := NewMemory(time.Minute)
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "tok", Entry{TokenSecret: "sec", State: "st"}))

	e, ok, err := s.TakeOnce(ctx, "tok")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "sec", e.TokenSecret)
	require.Equal(t, "st", e.State)
	require.False(t, e.CreatedAt.IsZero(), "Put must stamp CreatedAt")

	// Consumed: the second take must miss.
	_, ok, err = s.TakeOnce(ctx, "tok")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMemoryTakeOnceUnknownToken(t *testing.T) {
	s := NewMemory(time.Minute)
	defer s.Close()

	_, ok, err := s.TakeOnce(context.Background(), "never-stored")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMemoryTakeOnceConcurrent(t *testing.T) {
	s := NewMemory(time.Minute)
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "tok", Entry{TokenSecret: "sec"}))

	const n = 32
	var wg sync.WaitGroup
	wins := make(chan struct{}, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok, _ := s.TakeOnce(ctx, "tok"); ok {
				wins <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(wins)

	require.Len(t, wins, 1, "exactly one goroutine may consume the token")
}

func TestMemorySweepExpired(t *testing.T) {
	s := NewMemory(20 * time.Millisecond)
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "old", Entry{TokenSecret: "a"}))
	time.Sleep(40 * time.Millisecond)
	require.NoError(t, s.Put(ctx, "fresh", Entry{TokenSecret: "b"}))

	removed, err := s.Sweep(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, removed)

	// The expired entry is gone, the fresh one is not.
	_, ok, err := s.TakeOnce(ctx, "old")
	require.NoError(t, err)
	require.False(t, ok)

	_, ok, err = s.TakeOnce(ctx, "fresh")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestMemoryExpiredEntryInvisibleBeforeSweep(t *testing.T) {
	s := NewMemory(10 * time.Millisecond)
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "tok", Entry{TokenSecret: "sec"}))
	time.Sleep(30 * time.Millisecond)

	// Past its TTL the entry must not be claimable even if no sweep ran.
	_, ok, err := s.TakeOnce(ctx, "tok")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRunSweeperStopsOnContextCancel(t *testing.T) {
	s := NewMemory(time.Minute)
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- RunSweeper(ctx, s, 5*time.Millisecond) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}
