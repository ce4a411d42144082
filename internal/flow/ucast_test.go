package flow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestUcast_BufferedDeliveryOnFirstSubscribe(t *testing.T) {
	loop := newLoop(t)
	u := NewUcast[int](loop)

	u.Push(1)
	u.Push(2)
	assert.Equal(t, 2, u.Buffered())

	p := NewProbe[int](ProbeAuto)
	sub := u.Subscribe(p)
	require.False(t, sub.Disposed())
	assert.Empty(t, p.Items, "delivery waits for the coordinator")

	loop.Drain()
	assert.Equal(t, []int{1, 2}, p.Items)
	assert.Equal(t, ProbeSubscribed, p.State())
	assert.Equal(t, 0, u.Buffered())
}

func TestUcast_ItemsBeforeCloseArriveThenTerminal(t *testing.T) {
	loop := newLoop(t)
	u := NewUcast[int](loop)

	u.Push(1)
	u.Push(2)
	u.Push(3)
	u.Close()
	assert.True(t, u.Finished())

	p := NewProbe[int](ProbeAuto)
	sub := u.Subscribe(p)
	loop.Drain()

	assert.Equal(t, []int{1, 2, 3}, p.Items)
	assert.Equal(t, ProbeCompleted, p.State())
	assert.Equal(t, 1, p.Terminals)
	assert.True(t, sub.Disposed())
	assert.False(t, u.HasObserver())
}

func TestUcast_AbortDeliversBufferFirst(t *testing.T) {
	loop := newLoop(t)
	u := NewUcast[int](loop)

	p := NewProbe[int](ProbeAuto)
	u.Subscribe(p)
	loop.Drain()

	u.Push(1)
	u.Abort(ErrRuntime)
	u.Push(2)

	assert.Equal(t, []int{1}, p.Items)
	assert.ErrorIs(t, p.Err, ErrRuntime)
	assert.Equal(t, ProbeAborted, p.State())
	assert.Equal(t, 0, p.Late)
}

func TestUcast_PushDeliversImmediatelyWithDemand(t *testing.T) {
	loop := newLoop(t)
	u := NewUcast[string](loop)

	p := NewProbe[string](ProbeAuto)
	u.Subscribe(p)
	loop.Drain()

	u.Push("a")
	assert.Equal(t, []string{"a"}, p.Items, "no coordinator turn needed")
	assert.Equal(t, 0, loop.Pending())
}

func TestUcast_SecondSubscriberRejected(t *testing.T) {
	loop := newLoop(t)
	u := NewUcast[int](loop)

	p1 := NewProbe[int](ProbeAuto)
	sub1 := u.Subscribe(p1)

	p2 := NewProbe[int](ProbeAuto)
	sub2 := u.Subscribe(p2)

	assert.True(t, sub2.Disposed())
	assert.True(t, IsAlreadySubscribed(p2.Err))
	assert.Equal(t, ProbeAborted, p2.State())
	assert.Equal(t, 0, p2.Subscribes)

	assert.False(t, sub1.Disposed(), "first subscriber is unaffected")
	assert.Equal(t, ProbeSubscribed, p1.State())

	u.Push(7)
	loop.Drain()
	assert.Equal(t, []int{7}, p1.Items)
	assert.Empty(t, p2.Items)
}

func TestUcast_SubscribeAfterDetachRejected(t *testing.T) {
	loop := newLoop(t)
	u := NewUcast[int](loop)

	sub := u.Subscribe(NewProbe[int](ProbeAuto))
	sub.Dispose()

	p := NewProbe[int](ProbeAuto)
	u.Subscribe(p)
	assert.True(t, IsAlreadySubscribed(p.Err))
}

func TestUcast_SubscribeAfterFinishDeliversTerminal(t *testing.T) {
	loop := newLoop(t)

	t.Run("completed", func(t *testing.T) {
		u := NewUcast[int](loop)
		u.Close()

		p := NewProbe[int](ProbeAuto)
		sub := u.Subscribe(p)

		assert.True(t, sub.Disposed())
		assert.Equal(t, ProbeCompleted, p.State(), "delivered synchronously")
		assert.Equal(t, 0, p.Subscribes)
	})

	t.Run("aborted", func(t *testing.T) {
		u := NewUcast[int](loop)
		u.Abort(ErrRuntime)

		p := NewProbe[int](ProbeAuto)
		sub := u.Subscribe(p)

		assert.True(t, sub.Disposed())
		assert.ErrorIs(t, p.Err, ErrRuntime)
	})
}

func TestUcast_DisposeInsideOnNextStopsDelivery(t *testing.T) {
	loop := newLoop(t)
	u := NewUcast[int](loop)

	u.Push(1)
	u.Push(2)
	u.Push(3)

	p := NewProbe[int](ProbeCancel)
	sub := u.Subscribe(p)
	loop.Drain()

	assert.Equal(t, []int{1}, p.Items)
	assert.Equal(t, ProbeDisposed, p.State())
	assert.True(t, sub.Disposed())
	assert.Equal(t, 0, u.Buffered(), "buffer discarded on detach")
	assert.Equal(t, 0, p.Late)

	u.Push(4)
	u.Close()
	loop.Drain()
	assert.Equal(t, 0, u.Buffered(), "pushes after detach are dropped")
	assert.Equal(t, 0, p.Terminals)
}

func TestUcast_DemandLimitsDelivery(t *testing.T) {
	loop := newLoop(t)
	u := NewUcast[int](loop)

	for i := 1; i <= 4; i++ {
		u.Push(i)
	}

	p := NewProbe[int](ProbePassive)
	u.Subscribe(p)
	loop.Drain()
	assert.Empty(t, p.Items)

	p.Request(2)
	assert.Empty(t, p.Items, "request schedules the drain")
	assert.Equal(t, 2, u.Demand())
	loop.Drain()
	assert.Equal(t, []int{1, 2}, p.Items)
	assert.Equal(t, 0, u.Demand())
	assert.Equal(t, 2, u.Buffered())

	u.Push(5)
	assert.Equal(t, 3, u.Buffered())

	p.Request(Unbounded)
	loop.Drain()
	assert.Equal(t, []int{1, 2, 3, 4, 5}, p.Items)
	assert.Equal(t, Unbounded, u.Demand())
}

func TestUcast_RequestAfterDisposeIsNoop(t *testing.T) {
	loop := newLoop(t)
	u := NewUcast[int](loop)
	u.Push(1)

	p := NewProbe[int](ProbePassive)
	sub := u.Subscribe(p)
	sub.Dispose()

	sub.Request(1)
	assert.Equal(t, 0, loop.Pending())
	loop.Drain()
	assert.Empty(t, p.Items)
}

func TestUcast_DisposeIdempotent(t *testing.T) {
	loop := newLoop(t)
	u := NewUcast[int](loop)

	sub := u.Subscribe(NewProbe[int](ProbeAuto))
	for range 3 {
		sub.Dispose()
	}
	assert.True(t, sub.Disposed())
	assert.False(t, u.HasObserver())
}

func TestUcast_ExactlyOnceTerminal(t *testing.T) {
	loop := newLoop(t)
	u := NewUcast[int](loop)

	p := NewProbe[int](ProbeAuto)
	u.Subscribe(p)
	loop.Drain()

	u.Close()
	u.Close()
	u.Abort(ErrRuntime)

	assert.Equal(t, 1, p.Terminals)
	assert.NoError(t, p.Err)
	assert.Equal(t, ProbeCompleted, p.State())
}

func TestUcast_PushFromOnNextIsDeliveredInOrder(t *testing.T) {
	loop := newLoop(t)
	u := NewUcast[int](loop)

	var got []int
	u.Subscribe(Callbacks[int]{
		Subscribe: func(sub Subscription) { sub.Request(Unbounded) },
		Next: func(v int) {
			got = append(got, v)
			if v < 3 {
				u.Push(v + 1)
			}
		},
	})
	loop.Drain()

	u.Push(1)
	assert.Equal(t, []int{1, 2, 3}, got)
}

func TestUcast_CoordinatorTeardownDisposesSubscription(t *testing.T) {
	loop := NewRunLoop()
	u := NewUcast[int](loop)

	u.Push(1)
	p := NewProbe[int](ProbeAuto)
	sub := u.Subscribe(p)

	loop.Dispose()
	assert.True(t, sub.Disposed())
	assert.Empty(t, p.Items, "queued drain dropped")
	assert.Equal(t, 0, p.Terminals)
}

func TestUcast_MockObserver(t *testing.T) {
	loop := newLoop(t)
	u := NewUcast[int](loop)

	obs := &MockObserver[int]{}
	requestOnSubscribe(obs, Unbounded)
	obs.On("OnNext", 1).Once()
	obs.On("OnNext", 2).Once()
	obs.On("OnComplete").Once()

	u.Push(1)
	u.Push(2)
	u.Close()
	u.Subscribe(obs)
	loop.Drain()

	obs.AssertExpectations(t)
	obs.AssertNotCalled(t, "OnError", mock.Anything)
}
