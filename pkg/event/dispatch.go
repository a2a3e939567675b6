package event

// Dispatch fires evt at target through the three propagation phases:
// capture from the outermost ancestor down to target's immediate
// parent, target listeners (plus onHandler, the target's "on*"
// attribute, merged in as a once-listener for this dispatch only), then
// bubble from target's immediate parent back out to the outermost
// ancestor if evt.Bubbles and nothing called StopPropagation.
//
// onError, if non-nil, is invoked once per listener that returned a
// non-nil error (spec's "reported out-of-band"). The bool result
// reports whether any listener threw; it carries no other meaning here
// — it is up to the caller (the transaction machinery) to decide
// whether a thrown exception or an unprevented error event aborts
// anything.
func Dispatch(target Target, evt *Event, onHandler Listener, onError func(error)) (threw bool) {
	evt.Target = target
	ancestors := chain(target)

	for i := len(ancestors) - 1; i >= 0; i-- {
		evt.Phase = PhaseCapture
		evt.CurrentTarget = ancestors[i]
		if runAll(ancestors[i].listenersFor(evt.Type), evt, onError) {
			threw = true
		}
		if evt.stopped {
			return threw
		}
	}

	evt.Phase = PhaseTarget
	evt.CurrentTarget = target
	targetListeners := target.listenersFor(evt.Type)
	if onHandler != nil {
		targetListeners = append(targetListeners, onHandler)
	}
	if runAll(targetListeners, evt, onError) {
		threw = true
	}
	if evt.stopped {
		return threw
	}

	if evt.Bubbles {
		for _, a := range ancestors {
			evt.Phase = PhaseBubble
			evt.CurrentTarget = a
			if runAll(a.listenersFor(evt.Type), evt, onError) {
				threw = true
			}
			if evt.stopped {
				break
			}
		}
	}
	return threw
}

// chain returns target's ancestors, immediate parent first and the
// outermost ancestor last.
func chain(target Target) []Target {
	var out []Target
	for p := target.Parent(); p != nil; p = p.Parent() {
		out = append(out, p)
	}
	return out
}

func runAll(listeners []Listener, evt *Event, onError func(error)) (threw bool) {
	for _, l := range listeners {
		if err := l(evt); err != nil {
			threw = true
			if onError != nil {
				onError(err)
			}
		}
	}
	return threw
}
