/*
Package idberrors implements the DOM-exception-like error taxonomy that the
storage engine reports across its synchronous and asynchronous surfaces.

Every error the engine returns or attaches to a request carries a stable
Name (VersionError, ConstraintError, DataError, ...) so callers can branch
on error identity the way IndexedDB clients branch on DOMException.name,
without string-matching messages. Use errors.As (or Of) to recover an
*Error or its Name from a wrapped chain, and Is(err, name) — or
errors.Is(err, New(name, "")), which matches by name alone — to check for
a specific kind.
*/
package idberrors
