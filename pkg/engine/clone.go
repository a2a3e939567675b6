package engine

import (
	"encoding/json"

	"github.com/cuemby/idbstore/pkg/idberrors"
)

// Clone performs a pure in-memory structural clone of v, the black-box
// "clone(value)→value" collaborator spec.md §1 names. See DESIGN.md for
// why JSON marshal-then-unmarshal is this module's canonical format:
// every value that reaches the engine already came from decoding a
// serialized record or from caller-supplied Go data meant to round-trip
// through the same codec, so a JSON round trip is both sufficient and
// the one self-describing format already in reach without adding a
// dependency.
func Clone(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, idberrors.Wrap(idberrors.DataCloneError, "value is not structured-cloneable", err)
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, idberrors.Wrap(idberrors.DataCloneError, "value is not structured-cloneable", err)
	}
	return out, nil
}

// Serialize is the black-box "serialize(value)→bytes" collaborator: the
// form a record's value takes at rest in the storage driver.
func Serialize(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, idberrors.Wrap(idberrors.DataCloneError, "value is not structured-cloneable", err)
	}
	return data, nil
}

// Deserialize is the black-box "deserialize(bytes)→value" collaborator,
// the inverse of Serialize.
func Deserialize(data []byte) (any, error) {
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, idberrors.Wrap(idberrors.DataCloneError, "stored record value is corrupt", err)
	}
	return out, nil
}
