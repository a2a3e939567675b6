package keypath

import (
	"github.com/cuemby/idbstore/pkg/idberrors"
	"github.com/cuemby/idbstore/pkg/idbkey"
)

// Inject mutates (or rebuilds) value so that the last segment of path's
// single dotted chain holds key, creating intermediate maps where
// missing. Only valid for non-sequence paths (auto-increment key paths
// are always single dotted chains, never sequences — spec forbids
// autoIncrement with an array key path). Returns the (possibly new) top
// level value the caller must use in place of the original.
func Inject(value any, path Path, key idbkey.Key) (any, error) {
	if path.sequence {
		return nil, idberrors.New(idberrors.DataError, "cannot inject a generated key through a sequence key path")
	}
	chain := path.chains[0]
	if len(chain) == 0 {
		return nil, idberrors.New(idberrors.DataError, "cannot inject a generated key through an identity key path")
	}
	kv, err := keyToPlainValue(key)
	if err != nil {
		return nil, err
	}
	return injectChain(value, chain, kv)
}

func injectChain(cur any, chain []string, kv any) (any, error) {
	m, err := ensureMap(cur)
	if err != nil {
		return nil, err
	}
	if len(chain) == 1 {
		m[chain[0]] = kv
		return m, nil
	}
	child := m[chain[0]]
	newChild, err := injectChain(child, chain[1:], kv)
	if err != nil {
		return nil, err
	}
	m[chain[0]] = newChild
	return m, nil
}

func ensureMap(cur any) (map[string]any, error) {
	if cur == nil {
		return map[string]any{}, nil
	}
	if m, ok := cur.(map[string]any); ok {
		return m, nil
	}
	return nil, idberrors.New(idberrors.DataError, "cannot inject a generated key through a non-object intermediate")
}

func keyToPlainValue(key idbkey.Key) (any, error) {
	if key.Kind() != idbkey.KindNumber {
		return nil, idberrors.New(idberrors.DataError, "generated key must be numeric")
	}
	return key.NumberValue(), nil
}
