/*
Package keypath implements the key-path engine from spec §4.2: parsing a
dotted identifier chain or a sequence of chains, evaluating a path against
a value with the three-outcome rule (resolved / unresolved / invalid), and
injecting an auto-generated key back into a cloned value.

Records are represented the way the engine's structured-clone boundary
hands them over: as a tree of map[string]any / []any / scalars, the same
shape encoding/json produces — see pkg/engine's doc comment for why JSON
was picked as the canonical clone format (spec's Open Question on this).
*/
package keypath
