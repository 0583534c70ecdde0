package confloader

import (
	"errors"

	"github.com/knadh/koanf/maps"
)

// errNoByteForm is returned when koanf asks a map source for raw bytes.
var errNoByteForm = errors.New("confloader: map source has no byte form")

// mapSource adapts explicit key-value overrides to koanf's provider
// interface. Keys are dotted paths ("log.level") and are expanded to a
// nested map so they merge and unmarshal exactly like file and
// environment values.
type mapSource map[string]any

// ReadBytes implements koanf.Provider. Map sources are structured, not
// serialized, so there is nothing to return here.
func (m mapSource) ReadBytes() ([]byte, error) {
	return nil, errNoByteForm
}

// Read returns the pairs as a nested map.
func (m mapSource) Read() (map[string]any, error) {
	flat := make(map[string]any, len(m))
	for k, v := range m {
		flat[k] = v
	}
	return maps.Unflatten(flat, "."), nil
}
