// Package event implements the request/event kernel: a minimal
// DOM-style event target with three-phase (capture/target/bubble)
// dispatch, and the deferred-task/microtask scheduling abstraction that
// the transaction machinery in pkg/txn and pkg/engine build on to turn
// synchronous storage work into the asynchronous request-event model.
//
// The kernel is deliberately pure: Dispatch reports whether a listener
// threw but never decides what that means for a transaction. Callers
// (pkg/txn) own that policy.
package event
