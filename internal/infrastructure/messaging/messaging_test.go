package messaging

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/progress-engine/internal/application/command"
	"github.com/alem-hub/progress-engine/internal/domain/shared"
	"github.com/alem-hub/progress-engine/pkg/logger"
)

func syncBus() *InMemoryEventBus {
	return NewInMemoryEventBus(InMemoryEventBusConfig{AsyncMode: false, Logger: logger.Nop()})
}

func TestInMemoryEventBus_SyncDelivery(t *testing.T) {
	bus := syncBus()
	var got []string

	require.NoError(t, bus.Subscribe(shared.EventPointsAwarded, func(e shared.Event) error {
		got = append(got, "typed:"+e.AggregateID())
		return nil
	}))
	require.NoError(t, bus.SubscribeAll(func(e shared.Event) error {
		got = append(got, "all:"+string(e.EventType()))
		return errors.New("ignored")
	}))
	require.NoError(t, bus.Subscribe(shared.EventLevelUp, func(shared.Event) error {
		panic("boom")
	}))

	require.NoError(t, bus.Publish(shared.NewPointsAwardedEvent("u1", 10, "task", "t1", 10, 10, 1)))
	require.NoError(t, bus.Publish(shared.NewLevelUpEvent("u1", 2, 20)))

	assert.Equal(t, []string{
		"typed:u1",
		"all:" + string(shared.EventPointsAwarded),
		"all:" + string(shared.EventLevelUp),
	}, got)

	require.NoError(t, bus.Close())
	assert.ErrorIs(t, bus.Publish(shared.NewLevelUpEvent("u1", 3, 30)), ErrEventBusClosed)
	assert.ErrorIs(t, bus.Subscribe(shared.EventLevelUp, func(shared.Event) error { return nil }), ErrEventBusClosed)
}

func TestInMemoryEventBus_AsyncDelivery(t *testing.T) {
	bus := NewInMemoryEventBus(InMemoryEventBusConfig{AsyncMode: true, WorkerPoolSize: 2, Logger: logger.Nop()})
	var n atomic.Int64

	require.NoError(t, bus.SubscribeAll(func(shared.Event) error {
		n.Add(1)
		return nil
	}))
	for i := 0; i < 20; i++ {
		require.NoError(t, bus.Publish(shared.NewStreakUpdatedEvent("u1", i, i+1)))
	}

	bus.Wait()
	assert.Equal(t, int64(20), n.Load())
	require.NoError(t, bus.Close())
}

func TestDispatcher_RetriesAndDeadLetters(t *testing.T) {
	bus := syncBus()
	d := NewDispatcher(DispatcherConfig{
		Bus:                 bus,
		Retry:               RetryConfig{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond},
		DeadLetterQueueSize: 10,
		Logger:              logger.Nop(),
	})

	var flaky, broken int
	require.NoError(t, d.Subscribe(shared.EventGoalAchieved, func(shared.Event) error {
		flaky++
		if flaky < 2 {
			return errors.New("transient")
		}
		return nil
	}))
	require.NoError(t, d.Subscribe(shared.EventGoalAchieved, func(shared.Event) error {
		broken++
		panic("always")
	}))

	require.NoError(t, bus.Publish(shared.NewGoalAchievedEvent("u1", 1, 1, "October", 100, 10, "badge", "Finisher")))

	assert.Equal(t, 2, flaky)
	assert.Equal(t, 3, broken)

	dead := d.DeadLetterQueue().Drain()
	require.Len(t, dead, 1)
	assert.Equal(t, string(shared.EventGoalAchieved), dead[0].Subscription)
	assert.ErrorIs(t, dead[0].Error, ErrHandlerPanic)
	assert.Equal(t, 3, dead[0].Attempts)
	assert.Zero(t, d.DeadLetterQueue().Size())
}

func TestDeadLetterQueue_DropsOldest(t *testing.T) {
	q := NewDeadLetterQueue(2)
	for i := 1; i <= 3; i++ {
		q.Add(DeadLetterEntry{Attempts: i})
	}
	entries := q.Drain()
	require.Len(t, entries, 2)
	assert.Equal(t, 2, entries[0].Attempts)
	assert.Equal(t, 3, entries[1].Attempts)
}

func TestEnvelope_RoundTrip(t *testing.T) {
	event := shared.NewPointsAwardedEvent("u1", 15, "task", "t1", 115, 115, 1)

	env, err := NewEnvelope(event)
	require.NoError(t, err)
	assert.NotEmpty(t, env.ID)
	assert.Equal(t, shared.EventPointsAwarded, env.Type)

	decoded, err := DecodeEnvelope(env)
	require.NoError(t, err)
	assert.Equal(t, "u1", decoded.AggregateID())
	assert.Equal(t, shared.EventPointsAwarded, decoded.EventType())
	assert.Equal(t, float64(15), decoded.Payload()["points"])
}

// ─────────────────────────────────────────────────────────────────────────────
// Action consumer
// ─────────────────────────────────────────────────────────────────────────────

type fakeRecorder struct {
	mu   sync.Mutex
	cmds []command.RecordCompletionCommand
	err  error
}

func (f *fakeRecorder) Handle(_ context.Context, cmd command.RecordCompletionCommand) (*command.RecordCompletionResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cmds = append(f.cmds, cmd)
	if f.err != nil {
		return nil, f.err
	}
	return &command.RecordCompletionResult{ActionID: cmd.ActionID}, nil
}

type fakeRevoker struct {
	cmds []command.RevokeCompletionCommand
	err  error
}

func (f *fakeRevoker) Handle(_ context.Context, cmd command.RevokeCompletionCommand) (*command.RevokeCompletionResult, error) {
	f.cmds = append(f.cmds, cmd)
	if f.err != nil {
		return nil, f.err
	}
	return &command.RevokeCompletionResult{NotCompleted: true}, nil
}

func TestActionConsumer_Process(t *testing.T) {
	ctx := context.Background()
	rec := &fakeRecorder{}
	rev := &fakeRevoker{}
	c := NewActionConsumer(rec, rev, time.Second, logger.Nop())

	out := c.Process(ctx, []byte(`{"type":"action.completed","user_id":"u1","action_id":"t1","points":15,"completed_on":"2025-10-15"}`))
	assert.Equal(t, Ack, out)
	require.Len(t, rec.cmds, 1)
	assert.Equal(t, 15, rec.cmds[0].Points)
	assert.Equal(t, time.Date(2025, 10, 15, 0, 0, 0, 0, time.UTC), rec.cmds[0].CompletedOn)

	out = c.Process(ctx, []byte(`{"type":"action.uncompleted","user_id":"u1","action_id":"t1"}`))
	assert.Equal(t, Ack, out)
	require.Len(t, rev.cmds, 1)
	assert.Equal(t, "t1", rev.cmds[0].ActionID)

	for name, body := range map[string]string{
		"malformed":    `{"type":`,
		"missing user": `{"type":"action.completed","action_id":"t1"}`,
		"bad date":     `{"type":"action.completed","user_id":"u1","action_id":"t1","completed_on":"15/10/2025"}`,
		"unknown type": `{"type":"action.deleted","user_id":"u1","action_id":"t1"}`,
	} {
		assert.Equal(t, Reject, c.Process(ctx, []byte(body)), name)
	}
}

func TestActionConsumer_ErrorOutcomes(t *testing.T) {
	ctx := context.Background()
	body := []byte(`{"type":"action.completed","user_id":"u1","action_id":"t1","points":5}`)

	tests := []struct {
		name string
		err  error
		want Outcome
	}{
		{"invalid points", shared.ErrInvalidPoints, Reject},
		{"contention", shared.ConcurrencyExhausted("Award", 5, shared.ErrVersionConflict), Requeue},
		{"infrastructure", errors.New("connection reset"), Requeue},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewActionConsumer(&fakeRecorder{err: tt.err}, &fakeRevoker{}, time.Second, logger.Nop())
			assert.Equal(t, tt.want, c.Process(ctx, body))
		})
	}
}

func TestIsRemote(t *testing.T) {
	local := shared.NewLevelUpEvent("u1", 2, 20)
	assert.False(t, IsRemote(local))

	env, err := NewEnvelope(local)
	require.NoError(t, err)
	remote, err := DecodeEnvelope(env)
	require.NoError(t, err)
	assert.True(t, IsRemote(remote))
}
