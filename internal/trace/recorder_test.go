package trace

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/flowrt/internal/flow"
)

func TestRecorder_RecordsAndForwards(t *testing.T) {
	loop := flow.NewRunLoop()
	t.Cleanup(loop.Dispose)
	log := NewLog()

	u := flow.NewUcast[int](loop)
	probe := flow.NewProbe[int](flow.ProbeAuto)
	u.Subscribe(NewRecorder[int](log, "o1", probe, nil))

	u.Push(1)
	u.Push(2)
	u.Close()
	loop.Drain()

	assert.Equal(t, []int{1, 2}, probe.Items)
	assert.Equal(t, flow.ProbeCompleted, probe.State())

	events := log.Events()
	require.Len(t, events, 4)
	assert.Equal(t, Event{Seq: 1, Observer: "o1", Kind: KindSubscribe}, events[0])
	assert.Equal(t, Event{Seq: 2, Observer: "o1", Kind: KindNext, Payload: "1"}, events[1])
	assert.Equal(t, []string{"on_next(1)", "on_next(2)", "on_complete()"}, log.Signals("o1"))
}

func TestRecorder_RejectedSubscriber(t *testing.T) {
	loop := flow.NewRunLoop()
	t.Cleanup(loop.Dispose)
	log := NewLog()

	u := flow.NewUcast[string](loop)
	u.Subscribe(NewRecorder[string](log, "first", flow.NewProbe[string](flow.ProbeAuto), nil))
	u.Subscribe(NewRecorder[string](log, "second", flow.NewProbe[string](flow.ProbeAuto), nil))

	assert.Equal(t, []string{"on_error(flow:already-subscribed)"}, log.Signals("second"))
	assert.Empty(t, log.Signals("first"))
	assert.NotNil(t, log.Signals("nobody"))
}

func TestRecorder_CustomFormat(t *testing.T) {
	loop := flow.NewRunLoop()
	t.Cleanup(loop.Dispose)
	log := NewLog()

	m := flow.NewMulticaster[string](loop)
	rec := NewRecorder[string](log, "o", flow.NewProbe[string](flow.ProbeAuto), func(s string) string { return "<" + s + ">" })
	assert.Equal(t, "o", rec.Name())
	m.Subscribe(rec)
	m.Push("x")

	assert.Equal(t, []string{"on_next(<x>)"}, log.Signals("o"))
}

func TestLog_ForAndLen(t *testing.T) {
	log := NewLogWithClock(NewClockAt(10))
	log.Append("a", KindNext, "1")
	log.Append("b", KindNext, "2")
	log.Append("a", KindComplete, "")

	assert.Equal(t, 3, log.Len())
	a := log.For("a")
	require.Len(t, a, 2)
	assert.Equal(t, int64(11), a[0].Seq)
	assert.Equal(t, int64(13), a[1].Seq)
}

func TestEvent_String(t *testing.T) {
	assert.Equal(t, "on_subscribe()", Event{Kind: KindSubscribe}.String())
	assert.Equal(t, `on_next("hi")`, Event{Kind: KindNext, Payload: `"hi"`}.String())
	assert.Equal(t, "on_error(test:boom)", Event{Kind: KindError, Payload: "test:boom"}.String())
	assert.True(t, KindComplete.IsTerminal())
	assert.False(t, KindNext.IsTerminal())
}
