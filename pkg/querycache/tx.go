package querycache

import "fmt"

type undoRecord struct {
	key     Key
	data    []byte
	present bool
}

// Tx is a view of the store held under its lock. It is only valid inside
// the function passed to Atomically.
type Tx struct {
	s      *Store
	undo   map[string]undoRecord
	order  []string
	events []Event
	done   bool
}

func (tx *Tx) check() {
	if tx.done {
		panic("querycache: Tx used outside Atomically")
	}
}

func (tx *Tx) remember(key Key) {
	id := key.id()
	if _, ok := tx.undo[id]; ok {
		return
	}
	data, ok := tx.s.rawLocked(key)
	tx.undo[id] = undoRecord{key: key.Clone(), data: data, present: ok}
	tx.order = append(tx.order, id)
}

func (tx *Tx) rollback() {
	for i := len(tx.order) - 1; i >= 0; i-- {
		rec := tx.undo[tx.order[i]]
		if rec.present {
			tx.s.setRawLocked(rec.key, rec.data)
		} else {
			delete(tx.s.entries, rec.key.id())
		}
	}
}

// Get decodes the value at key into out.
func (tx *Tx) Get(key Key, out interface{}) (bool, error) {
	tx.check()
	raw, ok := tx.s.rawLocked(key)
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return true, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

// Raw returns a copy of the encoded value at key.
func (tx *Tx) Raw(key Key) ([]byte, bool) {
	tx.check()
	return tx.s.rawLocked(key)
}

// Keys lists every cached key under prefix.
func (tx *Tx) Keys(prefix Key) []Key {
	tx.check()
	return tx.s.keysLocked(prefix)
}

// Set encodes v and stores it at key.
func (tx *Tx) Set(key Key, v interface{}) error {
	tx.check()
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	tx.SetRaw(key, data)
	return nil
}

// SetRaw stores already encoded bytes at key.
func (tx *Tx) SetRaw(key Key, data []byte) {
	tx.check()
	tx.remember(key)
	tx.events = append(tx.events, tx.s.setRawLocked(key, data))
}

// Restore puts key back to a previously captured state. present=false
// deletes the exact key.
func (tx *Tx) Restore(key Key, data []byte, present bool) {
	tx.check()
	if present {
		tx.SetRaw(key, data)
		return
	}
	id := key.id()
	if _, ok := tx.s.entries[id]; !ok {
		return
	}
	tx.remember(key)
	delete(tx.s.entries, id)
	tx.events = append(tx.events, Event{Type: EventRemoved, Key: key.Clone()})
}

// Remove drops key and every key under it.
func (tx *Tx) Remove(prefix Key) {
	tx.check()
	for _, k := range tx.s.keysLocked(prefix) {
		tx.remember(k)
	}
	tx.events = append(tx.events, tx.s.removeLocked(prefix)...)
}

// CancelInFlight aborts every running fetch under prefix.
func (tx *Tx) CancelInFlight(prefix Key) {
	tx.check()
	tx.s.cancelLocked(prefix)
}

// Update decodes the value at key, applies fn and writes it back. Absent keys
// are left untouched and reported as false.
func Update[T any](tx *Tx, key Key, fn func(v *T)) (bool, error) {
	var v T
	ok, err := tx.Get(key, &v)
	if err != nil || !ok {
		return ok, err
	}
	fn(&v)
	return true, tx.Set(key, v)
}
