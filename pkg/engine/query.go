package engine

import (
	"github.com/cuemby/idbstore/pkg/idberrors"
	"github.com/cuemby/idbstore/pkg/idbkey"
	"github.com/cuemby/idbstore/pkg/storage"
)

// Query is the optional key-or-range argument every read/delete
// operation in spec.md §4.7 accepts: either a single key (encoded to
// the exact key) or a bounded/half-bounded, open/closed range. The zero
// value is the unbounded query ("every record").
type Query struct {
	single bool
	key    idbkey.Key

	lower, upper         *idbkey.Key
	lowerOpen, upperOpen bool
}

// All is the unbounded query.
var All = Query{}

// KeyQuery builds a Query matching exactly one key, validating v as a
// key per spec.md §4.1.
func KeyQuery(v any) (Query, error) {
	k, err := idbkey.ValueOf(v)
	if err != nil {
		return Query{}, err
	}
	return Query{single: true, key: k}, nil
}

// RangeQuery builds a bounded or half-bounded Query. Either bound may be
// nil for an unbounded side.
func RangeQuery(lower, upper any, lowerOpen, upperOpen bool) (Query, error) {
	q := Query{lowerOpen: lowerOpen, upperOpen: upperOpen}
	if lower != nil {
		k, err := idbkey.ValueOf(lower)
		if err != nil {
			return Query{}, err
		}
		q.lower = &k
	}
	if upper != nil {
		k, err := idbkey.ValueOf(upper)
		if err != nil {
			return Query{}, err
		}
		q.upper = &k
	}
	if q.lower != nil && q.upper != nil {
		c := idbkey.Compare(*q.lower, *q.upper)
		if c > 0 {
			return Query{}, idberrors.New(idberrors.DataError, "range lower bound must not exceed upper bound")
		}
	}
	return q, nil
}

func (q Query) toRange() storage.Range {
	if q.single {
		enc := idbkey.Encode(q.key)
		return storage.Single(enc)
	}
	r := storage.Range{LowerOpen: q.lowerOpen, UpperOpen: q.upperOpen}
	if q.lower != nil {
		r.Lower = idbkey.Encode(*q.lower)
	}
	if q.upper != nil {
		r.Upper = idbkey.Encode(*q.upper)
	}
	return r
}
