// Package meta holds the small string map attached to accounts (nickname,
// branch, and similar labels) with validation and stable JSON encoding.
package meta

import (
	"bytes"
	"encoding/json"
	"errors"
	"sort"
)

// Metadata is a small string map with validation and stable JSON encoding.
type Metadata map[string]string

const (
	MaxPairs     = 16
	MaxKeyLen    = 64
	MaxValLen    = 256
	MaxTotalJSON = 4096
)

func New(m map[string]string) Metadata {
	if m == nil {
		return Metadata{}
	}
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (m Metadata) Clone() Metadata { return New(m) }

func (m Metadata) Get(k string) (string, bool) { v, ok := m[k]; return v, ok }

// Set stores k=v unless it would break a limit; Validate reports what was dropped.
func (m Metadata) Set(k, v string) {
	if _, exists := m[k]; !exists && len(m) >= MaxPairs {
		return
	}
	if len(k) == 0 || len(k) > MaxKeyLen || len(v) > MaxValLen {
		return
	}
	m[k] = v
}

func (m Metadata) Del(k string) { delete(m, k) }

// Merge applies other onto m in key order. An empty value deletes the key.
func (m Metadata) Merge(other Metadata) {
	for _, k := range other.Keys() {
		if other[k] == "" {
			m.Del(k)
			continue
		}
		m.Set(k, other[k])
	}
}

// Keys returns the keys in ascending order.
func (m Metadata) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (m Metadata) Validate() error {
	if len(m) > MaxPairs {
		return errors.New("metadata too many pairs")
	}
	for k, v := range m {
		if len(k) == 0 || len(k) > MaxKeyLen {
			return errors.New("metadata key too long or empty")
		}
		if len(v) > MaxValLen {
			return errors.New("metadata value too long")
		}
	}
	b, err := m.MarshalStableJSON()
	if err != nil {
		return err
	}
	if len(b) > MaxTotalJSON {
		return errors.New("metadata exceeds max json size")
	}
	return nil
}

// MarshalStableJSON returns a deterministic JSON representation with keys sorted.
func (m Metadata) MarshalStableJSON() ([]byte, error) {
	if len(m) == 0 {
		return []byte("{}"), nil
	}
	buf := &bytes.Buffer{}
	buf.WriteByte('{')
	for i, k := range m.Keys() {
		kb, _ := json.Marshal(k)
		vb, _ := json.Marshal(m[k])
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
		if i < len(m)-1 {
			buf.WriteByte(',')
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// JSON marshal/unmarshal use stable encoding
func (m Metadata) MarshalJSON() ([]byte, error) { return m.MarshalStableJSON() }

func (m *Metadata) UnmarshalJSON(b []byte) error {
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*m = Metadata{}
		return nil
	}
	var tmp map[string]string
	if err := json.Unmarshal(b, &tmp); err != nil {
		return err
	}
	*m = New(tmp)
	return nil
}
