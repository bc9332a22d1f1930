package vm

// Table is an open-addressed, linearly-probed hash table keyed by
// interned strings, grounded on lit_table.c. Deleted entries become
// tombstones (a nil key with a true-bool marker) so probe chains past a
// deletion stay intact.
type Table struct {
	count    int // live entries + tombstones
	entries  []tableEntry
}

type tableEntry struct {
	key   *ObjString
	value Value
}

const tableMaxLoad = 0.75

// NewTable returns an empty table with no backing array yet, matching
// lit_init_table's zero-capacity start.
func NewTable() *Table {
	return &Table{}
}

func (t *Table) Len() int {
	if len(t.entries) == 0 {
		return 0
	}
	n := 0
	for _, e := range t.entries {
		if e.key != nil {
			n++
		}
	}
	return n
}

// findEntry locates the slot a key belongs in: the first tombstone or
// empty slot encountered along its probe sequence, or the exact live
// match if the key is already present.
func findEntry(entries []tableEntry, key *ObjString) *tableEntry {
	capacity := uint32(len(entries))
	index := key.Hash % capacity
	var tombstone *tableEntry

	for {
		entry := &entries[index]
		if entry.key == nil {
			if entry.value.IsNull() {
				if tombstone != nil {
					return tombstone
				}
				return entry
			}
			// tombstone: value.IsBool()==true marks it (lit_table.c's {nil, BOOL(true)})
			if tombstone == nil {
				tombstone = entry
			}
		} else if entry.key == key || entry.key.Chars == key.Chars {
			return entry
		}
		index = (index + 1) % capacity
	}
}

func (t *Table) adjustCapacity(capacity int) {
	entries := make([]tableEntry, capacity)
	for i := range entries {
		entries[i].value = Null
	}

	newCount := 0
	for _, old := range t.entries {
		if old.key == nil {
			continue
		}
		dest := findEntry(entries, old.key)
		dest.key = old.key
		dest.value = old.value
		newCount++
	}

	t.entries = entries
	t.count = newCount
}

// Set inserts or overwrites key's value, returning true if this created a
// brand-new entry (matching lit_table_set's return value).
func (t *Table) Set(key *ObjString, value Value) bool {
	if float64(t.count+1) > float64(len(t.entries))*tableMaxLoad {
		capacity := growCapacity(len(t.entries))
		t.adjustCapacity(capacity)
	}

	entry := findEntry(t.entries, key)
	isNew := entry.key == nil
	if isNew && entry.value.IsNull() {
		t.count++
	}

	entry.key = key
	entry.value = value
	return isNew
}

// Get looks up key, returning (value, found).
func (t *Table) Get(key *ObjString) (Value, bool) {
	if len(t.entries) == 0 {
		return Value{}, false
	}
	entry := findEntry(t.entries, key)
	if entry.key == nil {
		return Value{}, false
	}
	return entry.value, true
}

// Delete tombstones key's slot, matching lit_table_delete's
// {nil, TRUE} marker scheme so later probes keep working.
func (t *Table) Delete(key *ObjString) bool {
	if len(t.entries) == 0 {
		return false
	}
	entry := findEntry(t.entries, key)
	if entry.key == nil {
		return false
	}
	entry.key = nil
	entry.value = True
	return true
}

// AddAll copies every live entry of src into t, matching lit_table_add_all
// (used for class method-table inheritance snapshots).
func (t *Table) AddAll(src *Table) {
	for _, e := range src.entries {
		if e.key != nil {
			t.Set(e.key, e.value)
		}
	}
}

// FindString looks up an interned string by raw content and hash without
// allocating an ObjString first, the way the intern table needs to when
// deciding whether a literal already exists.
func (t *Table) FindString(chars string, hash uint32) *ObjString {
	if len(t.entries) == 0 {
		return nil
	}
	capacity := uint32(len(t.entries))
	index := hash % capacity
	for {
		entry := &t.entries[index]
		if entry.key == nil {
			if entry.value.IsNull() {
				return nil
			}
		} else if entry.key.Hash == hash && entry.key.Chars == chars {
			return entry.key
		}
		index = (index + 1) % capacity
	}
}

func growCapacity(capacity int) int {
	if capacity < 8 {
		return 8
	}
	return capacity * 2
}

// Each calls fn for every live entry. Iteration order is unspecified,
// matching the table's open-addressed layout.
func (t *Table) Each(fn func(key *ObjString, value Value)) {
	for _, e := range t.entries {
		if e.key != nil {
			fn(e.key, e.value)
		}
	}
}
