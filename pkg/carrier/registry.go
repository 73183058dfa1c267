package carrier

import (
	"fmt"
	"sort"

	perr "StegLab/pkg/errors"
)

// Registry is the static catalog of carriers. It is built once and never mutated,
// so concurrent reads need no locking.
type Registry struct {
	carriers map[string]*Carrier
	order    []string
}

// NewRegistry builds a registry from carrier entries; keys must be unique
func NewRegistry(carriers ...*Carrier) (*Registry, error) {
	r := &Registry{carriers: make(map[string]*Carrier, len(carriers))}
	for _, c := range carriers {
		if c == nil {
			continue
		}
		if _, dup := r.carriers[c.key]; dup {
			return nil, fmt.Errorf("duplicate carrier %q", c.key)
		}
		r.carriers[c.key] = c
		r.order = append(r.order, c.key)
	}
	return r, nil
}

// Keys returns carrier keys in registration order
func (r *Registry) Keys() []string {
	return append([]string(nil), r.order...)
}

// Lookup returns the carrier for key
func (r *Registry) Lookup(key string) (*Carrier, error) {
	c, ok := r.carriers[key]
	if !ok {
		err := perr.UnknownCarrierf("unknown carrier %q (known: %v)", key, r.sortedKeys())
		return nil, perr.WithField(err, "carrier")
	}
	return c, nil
}

// Resolve returns the method registered under carrier for role. Detectors are
// resolved by detector id.
func (r *Registry) Resolve(carrierKey, methodID string, role Role) (Method, error) {
	c, err := r.Lookup(carrierKey)
	if err != nil {
		return nil, err
	}

	var (
		m  Method
		ok bool
	)
	switch role {
	case RoleEmbed:
		m, ok = c.Embedder(methodID)
	case RoleExtract:
		m, ok = c.Extractor(methodID)
	case RoleDetect:
		for _, d := range c.detectors {
			if d.Name() == methodID {
				m, ok = d, true
				break
			}
		}
	}
	if !ok {
		err := perr.UnknownMethodf("carrier %q has no %s method %q", carrierKey, role, methodID)
		return nil, perr.WithField(err, "method")
	}
	return m, nil
}

// Detectors returns the detectors for a carrier in registration order
func (r *Registry) Detectors(carrierKey string) ([]Detector, error) {
	c, err := r.Lookup(carrierKey)
	if err != nil {
		return nil, err
	}
	return c.Detectors(), nil
}

func (r *Registry) sortedKeys() []string {
	keys := r.Keys()
	sort.Strings(keys)
	return keys
}
