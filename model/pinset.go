package model

import (
	"fmt"
	"sort"
)

// A PinSet stores pin values for a model. Models embed it and only implement
// Evaluate.
type PinSet struct {
	infos  []PinInfo
	index  map[string]int
	values []uint64
}

// NewPinSet creates an empty pin set.
func NewPinSet() *PinSet {
	return &PinSet{
		index: make(map[string]int),
	}
}

// Declare adds a pin. Declaring the same name twice panics.
func (s *PinSet) Declare(name string, width int, dir Direction) *PinSet {
	if width < 1 || width > 64 {
		panic(fmt.Sprintf("pin %s: width %d out of range", name, width))
	}

	if _, found := s.index[name]; found {
		panic("pin " + name + " already declared")
	}

	s.index[name] = len(s.infos)
	s.infos = append(s.infos, PinInfo{
		Name:      name,
		Width:     width,
		Direction: dir,
	})
	s.values = append(s.values, 0)

	return s
}

// Get returns the value of a pin.
func (s *PinSet) Get(name string) uint64 {
	return s.values[s.mustFind(name)]
}

// Set sets the value of a pin, truncated to the pin width.
func (s *PinSet) Set(name string, value uint64) {
	i := s.mustFind(name)
	s.values[i] = value & mask(s.infos[i].Width)
}

// Pins returns the pins sorted by name.
func (s *PinSet) Pins() []PinInfo {
	pins := make([]PinInfo, len(s.infos))
	copy(pins, s.infos)

	sort.Slice(pins, func(i, j int) bool {
		return pins[i].Name < pins[j].Name
	})

	return pins
}

func (s *PinSet) mustFind(name string) int {
	i, found := s.index[name]
	if !found {
		panic("pin " + name + " not found")
	}

	return i
}

func mask(width int) uint64 {
	if width == 64 {
		return ^uint64(0)
	}

	return 1<<uint(width) - 1
}
