package event

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTarget is a minimal Target used to build ancestor chains in tests.
type fakeTarget struct {
	*EventTarget
}

func newFakeTarget(parent Target) *fakeTarget {
	return &fakeTarget{EventTarget: NewTarget(parent)}
}

func TestDispatchThreePhaseOrder(t *testing.T) {
	db := newFakeTarget(nil)
	txn := newFakeTarget(db)
	req := newFakeTarget(txn)

	var order []string
	phaseNames := map[Phase]string{PhaseCapture: "capture", PhaseTarget: "target", PhaseBubble: "bubble"}
	record := func(name string) Listener {
		return func(evt *Event) error {
			order = append(order, name+"-"+phaseNames[evt.Phase])
			return nil
		}
	}
	// An ancestor's listeners run in both the capture and the bubble
	// phase, so each target gets one listener that records the phase.
	db.AddEventListener(TypeSuccess, record("db"))
	txn.AddEventListener(TypeSuccess, record("txn"))
	req.AddEventListener(TypeSuccess, record("req"))

	evt := NewEvent(TypeSuccess, true, false)
	threw := Dispatch(req, evt, nil, nil)

	require.False(t, threw)
	assert.Equal(t, []string{
		"db-capture", "txn-capture",
		"req-target",
		"txn-bubble", "db-bubble",
	}, order)
}

func TestDispatchNonBubblingSkipsBubblePhase(t *testing.T) {
	db := newFakeTarget(nil)
	txn := newFakeTarget(db)
	req := newFakeTarget(txn)

	var bubbled bool
	txn.AddEventListener(TypeSuccess, func(evt *Event) error {
		if evt.Phase == PhaseBubble {
			bubbled = true
		}
		return nil
	})

	evt := NewEvent(TypeSuccess, false, false)
	Dispatch(req, evt, nil, nil)
	assert.False(t, bubbled)
}

func TestDispatchOnHandlerActsAsOnceListener(t *testing.T) {
	req := newFakeTarget(nil)
	var calls int
	onSuccess := func(evt *Event) error {
		calls++
		return nil
	}

	Dispatch(req, NewEvent(TypeSuccess, false, false), onSuccess, nil)
	Dispatch(req, NewEvent(TypeSuccess, false, false), onSuccess, nil)

	// Each dispatch call merges the handler in fresh, so the same
	// handler passed twice runs twice; neither Dispatch nor
	// Request.DispatchSuccess/DispatchError clears it afterwards.
	assert.Equal(t, 2, calls)
}

func TestDispatchListenerErrorReportedAndDoesNotStopOthers(t *testing.T) {
	req := newFakeTarget(nil)
	boom := errors.New("boom")
	var ran []string
	var reported []error

	req.AddEventListener(TypeError, func(evt *Event) error {
		ran = append(ran, "first")
		return boom
	})
	req.AddEventListener(TypeError, func(evt *Event) error {
		ran = append(ran, "second")
		return nil
	})

	threw := Dispatch(req, NewEvent(TypeError, true, true), nil, func(err error) {
		reported = append(reported, err)
	})

	assert.True(t, threw)
	assert.Equal(t, []string{"first", "second"}, ran)
	require.Len(t, reported, 1)
	assert.ErrorIs(t, reported[0], boom)
}

func TestStopPropagationHaltsRemainingPhases(t *testing.T) {
	db := newFakeTarget(nil)
	txn := newFakeTarget(db)
	req := newFakeTarget(txn)

	req.AddEventListener(TypeSuccess, func(evt *Event) error {
		evt.StopPropagation()
		return nil
	})
	var bubbleRan bool
	txn.AddEventListener(TypeSuccess, func(evt *Event) error {
		if evt.Phase == PhaseBubble {
			bubbleRan = true
		}
		return nil
	})

	Dispatch(req, NewEvent(TypeSuccess, true, false), nil, nil)
	assert.False(t, bubbleRan)
}

func TestPreventDefaultRequiresCancelable(t *testing.T) {
	evt := NewEvent(TypeError, true, false)
	evt.PreventDefault()
	assert.False(t, evt.DefaultPrevented())

	evt = NewEvent(TypeError, true, true)
	evt.PreventDefault()
	assert.True(t, evt.DefaultPrevented())
}

func TestRequestSucceedAndDispatch(t *testing.T) {
	txn := newFakeTarget(nil)
	req := NewRequest(txn)
	req.Succeed(42)

	var got any
	req.OnSuccess = func(evt *Event) error {
		got = req.Result
		return nil
	}
	threw := req.DispatchSuccess(nil)
	assert.False(t, threw)
	assert.Equal(t, 42, got)
	assert.True(t, req.Done)
}

func TestRequestFailAndDispatchError(t *testing.T) {
	txn := newFakeTarget(nil)
	req := NewRequest(txn)
	failure := errors.New("not found")
	req.Fail(failure)

	evt, threw := req.DispatchError(nil)
	assert.False(t, threw)
	assert.False(t, evt.DefaultPrevented())
	assert.Equal(t, TypeError, evt.Type)
	assert.True(t, evt.Bubbles)
}

func TestSchedulerRunsMacrotaskThenDrainsItsMicrotasks(t *testing.T) {
	s := NewScheduler()
	var order []string
	s.PostTask(func() {
		order = append(order, "macro1")
		s.QueueMicrotask(func() { order = append(order, "micro1a") })
		s.QueueMicrotask(func() { order = append(order, "micro1b") })
	})
	s.PostTask(func() {
		order = append(order, "macro2")
	})

	ran := s.RunOne()
	require.True(t, ran)
	assert.Equal(t, []string{"macro1", "micro1a", "micro1b"}, order)

	ran = s.RunOne()
	require.True(t, ran)
	assert.Equal(t, []string{"macro1", "micro1a", "micro1b", "macro2"}, order)

	assert.False(t, s.RunOne())
}

func TestSchedulerMicrotaskQueuedDuringMicrotaskRunsBeforeNextMacrotask(t *testing.T) {
	s := NewScheduler()
	var order []string
	s.PostTask(func() {
		order = append(order, "macro1")
		s.QueueMicrotask(func() {
			order = append(order, "micro1")
			s.QueueMicrotask(func() { order = append(order, "micro1-nested") })
		})
	})
	s.PostTask(func() { order = append(order, "macro2") })

	s.RunAll()
	assert.Equal(t, []string{"macro1", "micro1", "micro1-nested", "macro2"}, order)
}
