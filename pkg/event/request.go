package event

// Request is the single-shot object a transaction produces for each
// queued operation: Result/Err are set synchronously by the operation
// closure, then observed asynchronously when the corresponding event
// fires and propagates through the request's transaction and database.
type Request struct {
	*EventTarget

	Result any
	Err    error
	Done   bool

	// Source names where the request originated (store, index, or
	// cursor name), mirroring the readyState/source exposed to
	// listeners in the host model.
	Source string

	OnSuccess Listener
	OnError   Listener
}

// NewRequest creates a request whose propagation parent is parent (the
// transaction that produced it).
func NewRequest(parent Target) *Request {
	return &Request{EventTarget: NewTarget(parent)}
}

// Succeed records a successful result computed by the operation
// closure. It does not dispatch the success event; the transaction
// scheduler enqueues that as a deferred task.
func (r *Request) Succeed(result any) {
	r.Result = result
	r.Err = nil
	r.Done = true
}

// Fail records a failed result.
func (r *Request) Fail(err error) {
	r.Err = err
	r.Done = true
}

// DispatchSuccess fires a non-bubbling "success" event at the request,
// merging OnSuccess in as the once-listener for this dispatch.
func (r *Request) DispatchSuccess(onError func(error)) bool {
	evt := NewEvent(TypeSuccess, false, false)
	return Dispatch(r, evt, r.OnSuccess, onError)
}

// DispatchError fires a bubbling, cancelable "error" event at the
// request, merging OnError in as the once-listener for this dispatch.
// The caller inspects evt.DefaultPrevented to decide whether the owning
// transaction should abort with the request's error.
func (r *Request) DispatchError(onError func(error)) (evt *Event, threw bool) {
	evt = NewEvent(TypeError, true, true)
	threw = Dispatch(r, evt, r.OnError, onError)
	return evt, threw
}
