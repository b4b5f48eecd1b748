package memory

import (
	"sort"
	"sync"
)

// table is a map shared by every session of a factory.
type table[V any] struct {
	mu   sync.RWMutex
	rows map[string]V
}

func newTable[V any]() *table[V] {
	return &table[V]{rows: map[string]V{}}
}

func (t *table[V]) snapshot() map[string]V {
	t.mu.RLock()
	defer t.mu.RUnlock()

	copied := make(map[string]V, len(t.rows))
	for key, value := range t.rows {
		copied[key] = value
	}
	return copied
}

func (t *table[V]) replace(rows map[string]V) {
	t.mu.Lock()
	t.rows = rows
	t.mu.Unlock()
}

func (t *table[V]) clear() {
	t.replace(map[string]V{})
}

// view reads and writes a table directly, or a private copy of it while a
// transaction is active.
type view[V any] struct {
	table   *table[V]
	working map[string]V
}

func (v *view[V]) begin() {
	v.working = v.table.snapshot()
}

func (v *view[V]) commit() {
	if v.working == nil {
		return
	}
	v.table.replace(v.working)
	v.working = nil
}

func (v *view[V]) rollback() {
	v.working = nil
}

func (v *view[V]) get(key string) (V, bool) {
	if v.working != nil {
		value, ok := v.working[key]
		return value, ok
	}

	v.table.mu.RLock()
	value, ok := v.table.rows[key]
	v.table.mu.RUnlock()
	return value, ok
}

func (v *view[V]) put(key string, value V) {
	if v.working != nil {
		v.working[key] = value
		return
	}

	v.table.mu.Lock()
	v.table.rows[key] = value
	v.table.mu.Unlock()
}

func (v *view[V]) delete(key string) bool {
	if v.working != nil {
		_, ok := v.working[key]
		delete(v.working, key)
		return ok
	}

	v.table.mu.Lock()
	_, ok := v.table.rows[key]
	delete(v.table.rows, key)
	v.table.mu.Unlock()
	return ok
}

// values returns the rows matching keep, ordered by key.
func (v *view[V]) values(keep func(V) bool) []V {
	rows := v.working
	if rows == nil {
		rows = v.table.snapshot()
	}

	keys := make([]string, 0, len(rows))
	for key, value := range rows {
		if keep == nil || keep(value) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	result := make([]V, 0, len(keys))
	for _, key := range keys {
		result = append(result, rows[key])
	}
	return result
}
