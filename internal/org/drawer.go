package org

import (
	"encoding/json"
	"strings"
)

// Drawer is an ordered :PROPERTIES: block. Keys are stored upper-cased.
type Drawer struct {
	entries []Property
}

// Property is one `:KEY: value` line.
type Property struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

func NewDrawer() *Drawer {
	return &Drawer{}
}

func normalizeKey(key string) string {
	return strings.ToUpper(strings.TrimSpace(key))
}

func (d *Drawer) Get(key string) (string, bool) {
	if d == nil {
		return "", false
	}
	key = normalizeKey(key)
	for _, p := range d.entries {
		if p.Key == key {
			return p.Value, true
		}
	}
	return "", false
}

// Set overwrites key in place, or appends it when absent.
func (d *Drawer) Set(key, value string) {
	key = normalizeKey(key)
	value = strings.TrimSpace(value)
	for i := range d.entries {
		if d.entries[i].Key == key {
			d.entries[i].Value = value
			return
		}
	}
	d.entries = append(d.entries, Property{Key: key, Value: value})
}

func (d *Drawer) Delete(key string) bool {
	if d == nil {
		return false
	}
	key = normalizeKey(key)
	for i := range d.entries {
		if d.entries[i].Key == key {
			d.entries = append(d.entries[:i:i], d.entries[i+1:]...)
			return true
		}
	}
	return false
}

func (d *Drawer) Len() int {
	if d == nil {
		return 0
	}
	return len(d.entries)
}

func (d *Drawer) Keys() []string {
	if d == nil {
		return nil
	}
	out := make([]string, 0, len(d.entries))
	for _, p := range d.entries {
		out = append(out, p.Key)
	}
	return out
}

// Entries returns a copy of the drawer lines in order.
func (d *Drawer) Entries() []Property {
	if d == nil {
		return nil
	}
	return append([]Property(nil), d.entries...)
}

func (d *Drawer) Clone() *Drawer {
	if d == nil {
		return nil
	}
	return &Drawer{entries: append([]Property(nil), d.entries...)}
}

// Equal treats a nil drawer and an absent drawer alike, but an empty drawer is not
// equal to a missing one: the serializer renders it.
func (d *Drawer) Equal(o *Drawer) bool {
	if d == nil || o == nil {
		return d == nil && o == nil
	}
	if len(d.entries) != len(o.entries) {
		return false
	}
	for i := range d.entries {
		if d.entries[i] != o.entries[i] {
			return false
		}
	}
	return true
}

func (d *Drawer) MarshalJSON() ([]byte, error) {
	if d == nil {
		return []byte("null"), nil
	}
	return json.Marshal(d.entries)
}

func (d *Drawer) UnmarshalJSON(b []byte) error {
	var entries []Property
	if err := json.Unmarshal(b, &entries); err != nil {
		return err
	}
	d.entries = nil
	for _, p := range entries {
		d.Set(p.Key, p.Value)
	}
	return nil
}
