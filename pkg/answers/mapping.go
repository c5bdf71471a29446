package answers

// Entry is one key/value pair of a Mapping.
type Entry struct {
	Key   string
	Value Value
}

// Mapping is an insertion-ordered string-keyed map. Overwriting an existing
// key keeps its original position; new keys are appended.
type Mapping struct {
	entries []Entry
	index   map[string]int
}

// NewMapping builds a mapping from the supplied entries in order. Later
// duplicates overwrite earlier ones in place.
func NewMapping(entries ...Entry) *Mapping {
	m := &Mapping{}
	for _, entry := range entries {
		m.Set(entry.Key, entry.Value)
	}
	return m
}

func (*Mapping) Kind() Kind { return KindMapping }
func (*Mapping) isValue()   {}

// Len returns the number of keys.
func (m *Mapping) Len() int {
	if m == nil {
		return 0
	}
	return len(m.entries)
}

// Get returns the value stored under key.
func (m *Mapping) Get(key string) (Value, bool) {
	if m == nil || m.index == nil {
		return nil, false
	}
	idx, ok := m.index[key]
	if !ok {
		return nil, false
	}
	return m.entries[idx].Value, true
}

// Has reports whether key is present.
func (m *Mapping) Has(key string) bool {
	_, ok := m.Get(key)
	return ok
}

// Set stores value under key. A nil value is stored as Null.
func (m *Mapping) Set(key string, value Value) {
	if value == nil {
		value = Null{}
	}
	if m.index == nil {
		m.index = make(map[string]int)
	}
	if idx, ok := m.index[key]; ok {
		m.entries[idx].Value = value
		return
	}
	m.index[key] = len(m.entries)
	m.entries = append(m.entries, Entry{Key: key, Value: value})
}

// Delete removes key and reports whether it was present.
func (m *Mapping) Delete(key string) bool {
	if m == nil || m.index == nil {
		return false
	}
	idx, ok := m.index[key]
	if !ok {
		return false
	}
	m.entries = append(m.entries[:idx], m.entries[idx+1:]...)
	delete(m.index, key)
	for i := idx; i < len(m.entries); i++ {
		m.index[m.entries[i].Key] = i
	}
	return true
}

// Keys returns the keys in insertion order.
func (m *Mapping) Keys() []string {
	if m == nil {
		return nil
	}
	keys := make([]string, len(m.entries))
	for i, entry := range m.entries {
		keys[i] = entry.Key
	}
	return keys
}

// Range calls fn for every entry in order until fn returns false.
func (m *Mapping) Range(fn func(key string, value Value) bool) {
	if m == nil {
		return
	}
	for _, entry := range m.entries {
		if !fn(entry.Key, entry.Value) {
			return
		}
	}
}

// Clone returns a deep copy.
func (m *Mapping) Clone() *Mapping {
	if m == nil {
		return nil
	}
	out := &Mapping{
		entries: make([]Entry, len(m.entries)),
		index:   make(map[string]int, len(m.entries)),
	}
	for i, entry := range m.entries {
		out.entries[i] = Entry{Key: entry.Key, Value: Clone(entry.Value)}
		out.index[entry.Key] = i
	}
	return out
}

// Equal reports structural, order-sensitive equality.
func (m *Mapping) Equal(other *Mapping) bool {
	if m.Len() != other.Len() {
		return false
	}
	for i := 0; i < m.Len(); i++ {
		a, b := m.entries[i], other.entries[i]
		if a.Key != b.Key || !Equal(a.Value, b.Value) {
			return false
		}
	}
	return true
}

// Mapping returns the nested mapping stored under key, if any.
func (m *Mapping) Mapping(key string) (*Mapping, bool) {
	v, ok := m.Get(key)
	if !ok {
		return nil, false
	}
	nested, ok := v.(*Mapping)
	return nested, ok && nested != nil
}
