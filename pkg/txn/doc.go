// Package txn implements the transaction scheduler and transaction core
// (spec.md §4.4–§4.6): per-database creation-order scheduling with
// scope-overlap rules, the active/inactive/committing/finished state
// machine, lazy savepoint acquisition, operation/event closure
// queueing, auto-commit, abort, and the metadata-revert journal for
// version-change transactions.
//
// A Transaction is an event.Target whose parent is the database handle
// that created it (supplied by pkg/engine); its children are the
// requests it produces.
package txn
