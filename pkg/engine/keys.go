package engine

import (
	"math"

	"github.com/cuemby/idbstore/pkg/idberrors"
	"github.com/cuemby/idbstore/pkg/idbkey"
	"github.com/cuemby/idbstore/pkg/idbtypes"
	"github.com/cuemby/idbstore/pkg/keypath"
)

// keyGeneratorCeiling is the 2^53 ceiling spec.md §3/§4.7 pins the key
// generator to.
const keyGeneratorCeiling = 9007199254740992

func buildKeyPath(segments []string, isSequence bool) (keypath.Path, error) {
	if len(segments) == 0 && !isSequence {
		return keypath.None, nil
	}
	if isSequence {
		return keypath.ParseSequence(segments)
	}
	return keypath.Parse(segments[0])
}

// keyToValue renders an idbkey.Key back to the plain Go shape a
// Deserialize call would have produced for it, for use as a request
// result or as a nested array element.
func keyToValue(k idbkey.Key) any {
	switch k.Kind() {
	case idbkey.KindNumber, idbkey.KindDate:
		return k.NumberValue()
	case idbkey.KindString:
		return k.StringValue()
	case idbkey.KindBinary:
		return k.BinaryValue()
	case idbkey.KindArray:
		elems := k.ArrayValue()
		out := make([]any, len(elems))
		for i, e := range elems {
			out[i] = keyToValue(e)
		}
		return out
	default:
		return nil
	}
}

// resolveKey implements spec.md §4.2/§4.7's key-determination step:
// explicit out-of-line key, else key-path extraction with the
// three-outcome rule, else (auto-increment + unresolved) a generated
// key injected back into the value. Returns the effective key and the
// (possibly rewritten, if injection occurred) value to store.
func resolveKey(meta idbtypes.StoreMeta, value any, explicit *idbkey.Key) (idbkey.Key, any, error) {
	outOfLine := len(meta.KeyPath) == 0 && !meta.KeyPathIsArray

	if outOfLine {
		if explicit == nil {
			if !meta.AutoIncrement {
				return idbkey.Key{}, nil, idberrors.New(idberrors.DataError, "a key must be supplied for an out-of-line store without autoIncrement")
			}
			return generatedKey(meta), value, nil
		}
		return *explicit, value, nil
	}

	if explicit != nil {
		return idbkey.Key{}, nil, idberrors.New(idberrors.DataError, "an explicit key must not be supplied for an in-line store")
	}

	path, err := buildKeyPath(meta.KeyPath, meta.KeyPathIsArray)
	if err != nil {
		return idbkey.Key{}, nil, err
	}
	result := keypath.Evaluate(path, value)
	switch result.Outcome {
	case keypath.Resolved:
		return result.Key, value, nil
	case keypath.Invalid:
		return idbkey.Key{}, nil, idberrors.New(idberrors.DataError, "key path does not resolve to a valid key")
	default: // Unresolved
		if !meta.AutoIncrement {
			return idbkey.Key{}, nil, idberrors.New(idberrors.DataError, "key path did not resolve and store is not autoIncrement")
		}
		gen := generatedKey(meta)
		injected, err := keypath.Inject(value, path, gen)
		if err != nil {
			return idbkey.Key{}, nil, err
		}
		return gen, injected, nil
	}
}

// verifyUpdateKey implements spec.md §4.8's key check for a cursor's
// update(value): an in-line-keyed store extracts a key from value via
// its key path, and that key must equal the cursor's current primary
// key — update() replaces a record's value in place, it does not move
// it to a different key. An out-of-line store has no key path to check
// value against, so update() is free there.
func verifyUpdateKey(meta idbtypes.StoreMeta, value any, primaryKey idbkey.Key) error {
	outOfLine := len(meta.KeyPath) == 0 && !meta.KeyPathIsArray
	if outOfLine {
		return nil
	}
	path, err := buildKeyPath(meta.KeyPath, meta.KeyPathIsArray)
	if err != nil {
		return err
	}
	result := keypath.Evaluate(path, value)
	if result.Outcome != keypath.Resolved {
		return idberrors.New(idberrors.DataError, "updated value does not resolve a key via the store's key path")
	}
	if idbkey.Compare(result.Key, primaryKey) != 0 {
		return idberrors.New(idberrors.DataError, "updated value's key path must match the cursor's current primary key")
	}
	return nil
}

func generatedKey(meta idbtypes.StoreMeta) idbkey.Key {
	v := meta.CurrentKey
	if v < 1 {
		v = 1
	}
	k, _ := idbkey.Number(v)
	return k
}

// advanceKeyGeneratorIfNeeded implements spec.md §4.7 step 6: the
// generator only advances past an integer key ≥ its current value, and
// only for autoIncrement stores; non-integer, negative, or (except for
// pinning to the ceiling) infinite keys are silently ignored.
func advanceKeyGeneratorIfNeeded(advance func(float64) error, meta idbtypes.StoreMeta, key idbkey.Key) error {
	if !meta.AutoIncrement || key.Kind() != idbkey.KindNumber {
		return nil
	}
	v := key.NumberValue()
	if math.IsInf(v, 1) {
		if meta.CurrentKey >= keyGeneratorCeiling {
			return nil
		}
		return advance(keyGeneratorCeiling)
	}
	if v != math.Trunc(v) || v < 1 {
		return nil
	}
	next := v + 1
	if next > keyGeneratorCeiling {
		next = keyGeneratorCeiling
	}
	if next <= meta.CurrentKey {
		return nil
	}
	return advance(next)
}

// extractIndexKeys computes the zero-or-more index keys value produces
// for idx, implementing spec.md §4.7's multi-entry rule: a multi-entry,
// non-sequence index evaluates its path raw; if that raw value is an
// array, each element is individually validated as a key, invalid
// elements are skipped (not fatal), and duplicates within the one
// record collapse to a single entry. A non-array raw value, or a
// non-multi-entry index, falls back to regular single-entry evaluation.
func extractIndexKeys(idx idbtypes.IndexMeta, value any) ([]idbkey.Key, error) {
	path, err := buildKeyPath(idx.KeyPath, idx.IsArray)
	if err != nil {
		return nil, err
	}

	if idx.MultiEntry && !idx.IsArray {
		raw, ok := keypath.EvaluateRaw(path, value)
		if !ok {
			return nil, nil
		}
		if arr, isArr := raw.([]any); isArr {
			seen := make(map[string]bool, len(arr))
			var out []idbkey.Key
			for _, elem := range arr {
				k, err := idbkey.ValueOf(elem)
				if err != nil {
					continue
				}
				enc := string(idbkey.Encode(k))
				if seen[enc] {
					continue
				}
				seen[enc] = true
				out = append(out, k)
			}
			return out, nil
		}
	}

	result := keypath.Evaluate(path, value)
	if result.Outcome != keypath.Resolved {
		return nil, nil
	}
	return []idbkey.Key{result.Key}, nil
}
