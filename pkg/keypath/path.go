package keypath

import (
	"strings"
	"unicode"

	"github.com/cuemby/idbstore/pkg/idberrors"
)

// Path is a parsed key path: either absent (out-of-line store), a single
// dotted chain (possibly empty, meaning "the value itself is the key"),
// or a non-empty sequence of dotted chains.
type Path struct {
	present  bool
	sequence bool
	chains   [][]string
}

// None is the absent key path of an out-of-line store.
var None = Path{}

// IsZero reports whether the path is absent (out-of-line).
func (p Path) IsZero() bool { return !p.present }

// Sequence reports whether the path is a multi-component sequence.
func (p Path) Sequence() bool { return p.sequence }

// Chains returns the parsed segment chains, one per sequence component
// (or exactly one for a non-sequence path).
func (p Path) Chains() [][]string { return p.chains }

// Strings renders the path back to its string form(s), for metadata
// persistence.
func (p Path) Strings() []string {
	out := make([]string, len(p.chains))
	for i, c := range p.chains {
		out[i] = strings.Join(c, ".")
	}
	return out
}

// Parse parses a single dotted key path. An empty string is the valid
// "identity" path (the whole value is the key).
func Parse(s string) (Path, error) {
	chain, err := parseChain(s)
	if err != nil {
		return Path{}, err
	}
	return Path{present: true, sequence: false, chains: [][]string{chain}}, nil
}

// ParseSequence parses a non-empty ordered sequence of dotted key paths.
func ParseSequence(strs []string) (Path, error) {
	if len(strs) == 0 {
		return Path{}, idberrors.New(idberrors.SyntaxError, "key path sequence must not be empty")
	}
	chains := make([][]string, len(strs))
	for i, s := range strs {
		c, err := parseChain(s)
		if err != nil {
			return Path{}, err
		}
		chains[i] = c
	}
	return Path{present: true, sequence: true, chains: chains}, nil
}

func parseChain(s string) ([]string, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ".")
	for _, p := range parts {
		if !validIdentifier(p) {
			return nil, idberrors.Newf(idberrors.SyntaxError, "invalid key path component %q", p)
		}
	}
	return parts, nil
}

func validIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		if i == 0 {
			if !isIDStart(r) {
				return false
			}
			continue
		}
		if !isIDContinue(r) {
			return false
		}
	}
	return true
}

func isIDStart(r rune) bool {
	return r == '_' || r == '$' || unicode.IsLetter(r)
}

func isIDContinue(r rune) bool {
	return isIDStart(r) || unicode.IsDigit(r)
}
