package conversation

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateTransitions(t *testing.T) {
	ctx := context.Background()
	s := NewState("U1")
	assert.Equal(t, StageIdle, s.Stage)

	require.NoError(t, s.Fire(ctx, EventColorSelected))
	assert.True(t, s.AwaitingBudget())

	// Re-selecting a color while already waiting for the budget is harmless.
	require.NoError(t, s.Fire(ctx, EventColorSelected))
	assert.True(t, s.AwaitingBudget())

	require.NoError(t, s.Fire(ctx, EventBudgetEntered))
	assert.True(t, s.AwaitingName())
	assert.False(t, s.AwaitingBudget())

	require.NoError(t, s.Fire(ctx, EventNameEntered))
	assert.True(t, s.AwaitingPhoneNumber())

	require.NoError(t, s.Fire(ctx, EventPhoneEntered))
	assert.Equal(t, StageIdle, s.Stage)
}

func TestStateRejectsOutOfOrderEvents(t *testing.T) {
	s := NewState("U1")
	assert.Error(t, s.Fire(context.Background(), EventNameEntered))
	assert.Equal(t, StageIdle, s.Stage)
}

func TestStateResetFromAnyStage(t *testing.T) {
	ctx := context.Background()
	for _, stage := range []Stage{StageIdle, StageAwaitingBudget, StageAwaitingName, StageAwaitingPhoneNumber} {
		s := &State{UserID: "U1", Stage: stage}
		require.NoError(t, s.Fire(ctx, EventReset), stage)
		assert.Equal(t, StageIdle, s.Stage)
	}
}

func TestAtMostOneFlag(t *testing.T) {
	for _, stage := range []Stage{StageIdle, StageAwaitingBudget, StageAwaitingName, StageAwaitingPhoneNumber} {
		s := &State{Stage: stage}
		n := 0
		for _, f := range []bool{s.AwaitingBudget(), s.AwaitingName(), s.AwaitingPhoneNumber()} {
			if f {
				n++
			}
		}
		assert.LessOrEqual(t, n, 1, stage)
	}
}

func TestMemoryStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(time.Hour)

	_, ok, err := store.Get(ctx, "U1")
	require.NoError(t, err)
	assert.False(t, ok)

	s, err := store.Ensure(ctx, "U1")
	require.NoError(t, err)
	assert.Equal(t, StageIdle, s.Stage)
	assert.Equal(t, 1, store.Len())

	// Mutating the returned state does not change the store until Save.
	s.Stage = StageAwaitingName
	got, _, _ := store.Get(ctx, "U1")
	assert.Equal(t, StageIdle, got.Stage)

	require.NoError(t, store.Save(ctx, s))
	got, _, _ = store.Get(ctx, "U1")
	assert.Equal(t, StageAwaitingName, got.Stage)

	again, err := store.Ensure(ctx, "U1")
	require.NoError(t, err)
	assert.Equal(t, StageAwaitingName, again.Stage)

	require.NoError(t, store.Delete(ctx, "U1"))
	_, ok, _ = store.Get(ctx, "U1")
	assert.False(t, ok)
	assert.Equal(t, 0, store.Len())

	assert.Error(t, store.Save(ctx, &State{}))
}

func TestMemoryStoreExpires(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(20 * time.Millisecond)

	_, err := store.Ensure(ctx, "U1")
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		_, ok, _ := store.Get(ctx, "U1")
		return !ok
	}, time.Second, 10*time.Millisecond)
}

func TestLockerSerializesPerUser(t *testing.T) {
	l := NewLocker()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		active  int
		maxSeen int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := l.Lock("U1")
			defer unlock()

			mu.Lock()
			active++
			if active > maxSeen {
				maxSeen = active
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			active--
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxSeen)
	assert.Equal(t, 0, l.Len())
}

func TestLockerIndependentUsers(t *testing.T) {
	l := NewLocker()
	unlockA := l.Lock("A")

	done := make(chan struct{})
	go func() {
		unlockB := l.Lock("B")
		unlockB()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock for B blocked on A")
	}

	unlockA()
	unlockA() // second call is a no-op
	assert.Equal(t, 0, l.Len())
}
