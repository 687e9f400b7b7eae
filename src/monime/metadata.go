package monime

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Limits bounds a metadata bag to what the gateway accepts.
type Limits struct {
	MaxKeys        int
	MaxKeyLength   int
	MaxValueLength int
}

var DefaultLimits = Limits{MaxKeys: 50, MaxKeyLength: 40, MaxValueLength: 500}

// Metadata is an ordered key-value record. Values keep their Go type until
// Strings coerces them at the gateway boundary.
type Metadata struct {
	keys   []string
	values map[string]any
}

func NewMetadata() *Metadata {
	return &Metadata{values: map[string]any{}}
}

// Set stores v under key. A nil value removes the key.
func (m *Metadata) Set(key string, v any) *Metadata {
	if v == nil {
		m.Delete(key)
		return m
	}
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = v
	return m
}

func (m *Metadata) Delete(key string) {
	if _, ok := m.values[key]; !ok {
		return
	}
	delete(m.values, key)
	for i, k := range m.keys {
		if k == key {
			m.keys = append(m.keys[:i], m.keys[i+1:]...)
			break
		}
	}
}

func (m *Metadata) Get(key string) (any, bool) {
	if m == nil {
		return nil, false
	}
	v, ok := m.values[key]
	return v, ok
}

func (m *Metadata) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// Merge copies other's entries over m's.
func (m *Metadata) Merge(other *Metadata) *Metadata {
	if other == nil {
		return m
	}
	for _, k := range other.keys {
		m.Set(k, other.values[k])
	}
	return m
}

// Strings is the single coercion step: strings pass through, numbers and
// booleans are formatted, Stringers use String, everything else is JSON.
func (m *Metadata) Strings() map[string]string {
	out := make(map[string]string, m.Len())
	if m == nil {
		return out
	}
	for _, k := range m.keys {
		out[k] = coerce(m.values[k])
	}
	return out
}

func coerce(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case fmt.Stringer:
		return t.String()
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}

// Capped returns a copy within l. Keys past the limit are dropped in
// insertion order, long keys are skipped and long values truncated.
func (m *Metadata) Capped(l Limits) *Metadata {
	out := NewMetadata()
	if m == nil {
		return out
	}
	for _, k := range m.keys {
		if l.MaxKeys > 0 && out.Len() >= l.MaxKeys {
			break
		}
		if l.MaxKeyLength > 0 && len(k) > l.MaxKeyLength {
			continue
		}
		s := coerce(m.values[k])
		if l.MaxValueLength > 0 && len(s) > l.MaxValueLength {
			s = strings.ToValidUTF8(s[:l.MaxValueLength], "")
		}
		out.Set(k, s)
	}
	return out
}

func (m *Metadata) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.Strings())
}

func (m *Metadata) UnmarshalJSON(b []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	m.keys = nil
	m.values = map[string]any{}
	for k, v := range raw {
		m.Set(k, v)
	}
	return nil
}

// withSource puts the source tag first and caps the result, so the tag
// survives a full bag.
func withSource(m *Metadata) *Metadata {
	return NewMetadata().Set("source", metadataFrom).Merge(m).Capped(DefaultLimits)
}
