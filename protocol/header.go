package protocol

import (
	"maps"
	"slices"
)

// Header maps header names to values. Names are stored exactly as given;
// no case folding takes place.
type Header map[string]string

// Get returns the value stored under name and whether it was present
func (h Header) Get(name string) (string, bool) {
	v, ok := h[name]
	return v, ok
}

// Set stores value under name, replacing any previous value
func (h Header) Set(name, value string) {
	h[name] = value
}

// Del removes name
func (h Header) Del(name string) {
	delete(h, name)
}

// Clone returns an independent copy; the clone of a nil Header is empty, not nil
func (h Header) Clone() Header {
	c := make(Header, len(h))
	maps.Copy(c, h)
	return c
}

// Names returns the header names in sorted order
func (h Header) Names() []string {
	return slices.Sorted(maps.Keys(h))
}

// Merge returns a new Header holding every entry of permanent and explicit.
// When both define a name, the explicit value wins. Neither input is modified.
func Merge(permanent, explicit Header) Header {
	merged := make(Header, len(permanent)+len(explicit))
	maps.Copy(merged, permanent)
	maps.Copy(merged, explicit)
	return merged
}
