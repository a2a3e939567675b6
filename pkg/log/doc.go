/*
Package log provides structured logging for the storage engine using zerolog.

Engine code logs through this package rather than fmt or the standard
library's log package. WithComponent, WithDatabase, WithTransaction and
WithRequest build child loggers tagged with a component, database name,
transaction id or request id; the engine packages themselves log only
event-listener exceptions (pkg/txn, through Errorf), without those tags.

Call Init once at process start (the idbctl CLI does this from config);
packages that run under go test get a usable stdout default without it.
*/
package log
