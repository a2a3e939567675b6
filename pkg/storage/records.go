package storage

// PutRecord writes (or overwrites) a record.
func (s *Savepoint) PutRecord(storeID uint64, key, value []byte) error {
	return s.tx.Bucket(recordsBucketName(storeID)).Put(key, value)
}

// GetRecord reads a record by exact primary key.
func (s *Savepoint) GetRecord(storeID uint64, key []byte) ([]byte, bool, error) {
	v := s.tx.Bucket(recordsBucketName(storeID)).Get(key)
	if v == nil {
		return nil, false, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, true, nil
}

// DeleteRecord removes a record by exact primary key. Idempotent.
func (s *Savepoint) DeleteRecord(storeID uint64, key []byte) error {
	return s.tx.Bucket(recordsBucketName(storeID)).Delete(key)
}

// ClearRecords removes every record in the store.
func (s *Savepoint) ClearRecords(storeID uint64) error {
	b := s.tx.Bucket(recordsBucketName(storeID))
	c := b.Cursor()
	for k, _ := c.First(); k != nil; k, _ = c.First() {
		if err := b.Delete(k); err != nil {
			return err
		}
	}
	return nil
}

// CountInRange counts records whose key falls within r.
func (s *Savepoint) CountInRange(storeID uint64, r Range) (int, error) {
	n := 0
	c := s.tx.Bucket(recordsBucketName(storeID)).Cursor()
	for k, _, ok := seekRange(c, r, true); ok; k, _, ok = stepRange(c, r, true) {
		_ = k
		n++
	}
	return n, nil
}

// GetInRange returns every record whose key falls within r, in ascending
// order, up to limit records (limit<=0 means unbounded).
func (s *Savepoint) GetInRange(storeID uint64, r Range, limit int) ([]Record, error) {
	var out []Record
	c := s.tx.Bucket(recordsBucketName(storeID)).Cursor()
	for k, v, ok := seekRange(c, r, true); ok; k, v, ok = stepRange(c, r, true) {
		out = append(out, Record{Key: cloneBytes(k), Value: cloneBytes(v)})
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// DeleteInRange removes every record whose key falls within r and
// reports how many were removed.
func (s *Savepoint) DeleteInRange(storeID uint64, r Range) (int, error) {
	keys, err := s.keysInRange(storeID, r)
	if err != nil {
		return 0, err
	}
	b := s.tx.Bucket(recordsBucketName(storeID))
	for _, k := range keys {
		if err := b.Delete(k); err != nil {
			return 0, err
		}
	}
	return len(keys), nil
}

func (s *Savepoint) keysInRange(storeID uint64, r Range) ([][]byte, error) {
	var out [][]byte
	c := s.tx.Bucket(recordsBucketName(storeID)).Cursor()
	for k, _, ok := seekRange(c, r, true); ok; k, _, ok = stepRange(c, r, true) {
		out = append(out, cloneBytes(k))
	}
	return out, nil
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
