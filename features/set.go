// Package features reduces an impact window to statistical and spectral
// features and estimates the kick force from them.
package features

import (
	"bytes"
	"encoding/json"
)

// Set is an ordered name-to-value mapping. Insertion order defines the
// vector the correlator multiplies with its weights.
type Set struct {
	names  []string
	values []float64
	index  map[string]int
}

// NewSet returns an empty feature set.
func NewSet() *Set {
	return &Set{index: make(map[string]int)}
}

// Add appends a feature, or replaces the value of an existing one in place.
func (s *Set) Add(name string, v float64) {
	if i, ok := s.index[name]; ok {
		s.values[i] = v
		return
	}
	s.index[name] = len(s.names)
	s.names = append(s.names, name)
	s.values = append(s.values, v)
}

// Get returns the value of a feature.
func (s *Set) Get(name string) (float64, bool) {
	i, ok := s.index[name]
	if !ok {
		return 0, false
	}
	return s.values[i], true
}

func (s *Set) Len() int { return len(s.names) }

// Names returns the feature names in insertion order.
func (s *Set) Names() []string { return append([]string(nil), s.names...) }

// Values returns the feature vector in insertion order.
func (s *Set) Values() []float64 { return append([]float64(nil), s.values...) }

// MarshalJSON encodes the set as an object whose keys keep insertion order.
func (s *Set) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range s.names {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(s.values[i])
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
