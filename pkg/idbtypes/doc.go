/*
Package idbtypes holds the shared data-model types described in spec §3:
databases, object stores, indexes, records, transactions, requests, and
cursors. It is a leaf package — every other engine package imports it, it
imports none of them — so that storage, event, txn, and engine can all
refer to the same vocabulary without import cycles.
*/
package idbtypes
