package keypath

import (
	"unicode/utf16"

	"github.com/cuemby/idbstore/pkg/idbkey"
)

// Outcome is the three-way result of evaluating a key path against a
// value (spec §4.2).
type Outcome int

const (
	Resolved Outcome = iota
	Unresolved
	Invalid
)

// Result is the outcome of Evaluate.
type Result struct {
	Outcome Outcome
	Key     idbkey.Key
}

// Evaluate resolves path against value, producing a Resolved key, an
// Unresolved outcome (missing/non-object intermediate, or undefined
// terminal), or an Invalid outcome (terminal value is not a valid key).
func Evaluate(path Path, value any) Result {
	if !path.sequence {
		return evaluateChain(path.chains[0], value)
	}

	components := make([]idbkey.Key, 0, len(path.chains))
	sawUnresolved := false
	for _, c := range path.chains {
		r := evaluateChain(c, value)
		switch r.Outcome {
		case Invalid:
			return Result{Outcome: Invalid}
		case Unresolved:
			sawUnresolved = true
		default:
			components = append(components, r.Key)
		}
	}
	if sawUnresolved {
		return Result{Outcome: Unresolved}
	}
	return Result{Outcome: Resolved, Key: idbkey.Array(components)}
}

func evaluateChain(chain []string, value any) Result {
	if len(chain) == 0 {
		k, err := idbkey.ValueOf(value)
		if err != nil {
			return Result{Outcome: Invalid}
		}
		return Result{Outcome: Resolved, Key: k}
	}

	cur := value
	for _, seg := range chain {
		next, ok := navigate(cur, seg)
		if !ok {
			return Result{Outcome: Unresolved}
		}
		cur = next
	}
	if cur == nil {
		return Result{Outcome: Unresolved}
	}
	k, err := idbkey.ValueOf(cur)
	if err != nil {
		return Result{Outcome: Invalid}
	}
	return Result{Outcome: Resolved, Key: k}
}

// EvaluateRaw resolves a non-sequence path against value without
// validating the terminal value as a key, for multi-entry index
// extraction (spec §4.7: "Extraction evaluates the path raw").
func EvaluateRaw(path Path, value any) (raw any, ok bool) {
	chain := path.chains[0]
	cur := value
	for _, seg := range chain {
		next, navOK := navigate(cur, seg)
		if !navOK {
			return nil, false
		}
		cur = next
	}
	if cur == nil {
		return nil, false
	}
	return cur, true
}

// navigate resolves one key-path segment against cur. Maps are
// traversed by key; strings special-case "length" (JS semantics: a
// string's UTF-16 code unit count) and have no other navigable
// properties.
func navigate(cur any, segment string) (any, bool) {
	switch v := cur.(type) {
	case string:
		if segment == "length" {
			return float64(len(utf16.Encode([]rune(v)))), true
		}
		return nil, false
	case map[string]any:
		next, exists := v[segment]
		if !exists {
			return nil, false
		}
		return next, true
	default:
		return nil, false
	}
}
