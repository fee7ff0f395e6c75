// Package strategy defines the Strategy interface for signal generators and
// provides a Registry for looking them up by name.
package strategy

import (
	"fmt"
	"sort"
	"strings"

	"backtester/internal/domain"
)

// Params carries the tunable strategy parameters. Strategies ignore the
// fields they do not use.
type Params struct {
	ShortWindow int `yaml:"short_window" json:"short_window"`
	LongWindow  int `yaml:"long_window" json:"long_window"`
}

// DefaultParams returns the moving-average windows used when none are given.
func DefaultParams() Params {
	return Params{ShortWindow: 20, LongWindow: 50}
}

// Strategy turns an annotated price series into a position-change signal
// series of equal length.
type Strategy interface {
	// Name returns the display name, e.g. "Buy and Hold".
	Name() string

	// ID returns the short identifier used on the command line.
	ID() string

	// Validate rejects parameter sets the strategy cannot run with.
	Validate(p Params) error

	// Annotate returns frame augmented with the indicator columns that
	// Signals reads. It must not modify frame.
	Annotate(frame domain.Frame, p Params) domain.Frame

	// Signals returns one signal per bar of frame.
	Signals(frame domain.Frame, p Params) ([]domain.Signal, error)
}

// Registry holds a named collection of strategies for lookup and enumeration.
type Registry struct {
	strategies map[string]Strategy
	ids        map[string]string // lower-cased id -> name
}

// NewRegistry creates an empty strategy Registry.
func NewRegistry() *Registry {
	return &Registry{
		strategies: make(map[string]Strategy),
		ids:        make(map[string]string),
	}
}

// Register adds a strategy to the registry, keyed by its Name() and ID().
func (r *Registry) Register(s Strategy) {
	r.strategies[s.Name()] = s
	r.ids[strings.ToLower(s.ID())] = s.Name()
}

// Get retrieves a strategy by display name or ID. The second return value
// indicates whether the strategy was found.
func (r *Registry) Get(key string) (Strategy, bool) {
	if s, ok := r.strategies[key]; ok {
		return s, true
	}
	if name, ok := r.ids[strings.ToLower(key)]; ok {
		return r.strategies[name], true
	}
	return nil, false
}

// Lookup is Get with a configuration error for unknown names.
func (r *Registry) Lookup(key string) (Strategy, error) {
	s, ok := r.Get(key)
	if !ok {
		return nil, fmt.Errorf("%w: unknown strategy %q", domain.ErrConfiguration, key)
	}
	return s, nil
}

// List returns a sorted slice of all registered strategy names.
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.strategies))
	for name := range r.strategies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Annotate adds the indicator columns the named strategy needs.
func (r *Registry) Annotate(frame domain.Frame, name string, p Params) (domain.Frame, error) {
	s, err := r.Lookup(name)
	if err != nil {
		return domain.Frame{}, err
	}
	if err := s.Validate(p); err != nil {
		return domain.Frame{}, err
	}
	return s.Annotate(frame, p), nil
}

// Signals generates the named strategy's signals for an annotated frame.
func (r *Registry) Signals(frame domain.Frame, name string, p Params) ([]domain.Signal, error) {
	s, err := r.Lookup(name)
	if err != nil {
		return nil, err
	}
	if err := s.Validate(p); err != nil {
		return nil, err
	}
	return s.Signals(frame, p)
}
