// Package metric holds the static catalogue of scoreable metrics.
//
// The registry is immutable reference data: every rating entering the
// engine must name a registered key and fall inside that key's valid
// range. Validation happens at ingestion so bad data never reaches the
// snapshot ledger.
package metric

import (
	"fmt"
	"sort"
)

// Category groups metrics for profiling and readiness composition.
type Category string

// Metric categories.
const (
	Technical   Category = "TECHNICAL"
	Physical    Category = "PHYSICAL"
	Mental      Category = "MENTAL"
	Attitude    Category = "ATTITUDE"
	Goalkeeping Category = "GOALKEEPING"
)

// Categories lists all valid categories in a stable order.
func Categories() []Category {
	return []Category{Technical, Physical, Mental, Attitude, Goalkeeping}
}

// Valid reports whether c names a known category.
func (c Category) Valid() bool {
	switch c {
	case Technical, Physical, Mental, Attitude, Goalkeeping:
		return true
	}
	return false
}

// Rating bounds shared by every metric.
const (
	MinValue = 0.0
	MaxValue = 100.0
)

// Definition describes one scoreable metric.
type Definition struct {
	Key         string   `json:"key"`
	DisplayName string   `json:"display_name"`
	Category    Category `json:"category"`
	Min         float64  `json:"min"`
	Max         float64  `json:"max"`
}

// Registry is the immutable metric catalogue.
type Registry struct {
	byKey      map[string]Definition
	byCategory map[Category][]string
	keys       []string
}

// Option applies a configuration option to the Registry.
type Option func(*Registry)

// WithDefinitions replaces the default catalogue with a custom one.
// Definitions with empty keys or unknown categories are dropped.
func WithDefinitions(defs []Definition) Option {
	return func(r *Registry) {
		r.byKey = make(map[string]Definition, len(defs))
		for _, d := range defs {
			if d.Key == "" || !d.Category.Valid() {
				continue
			}
			if d.Max <= d.Min {
				d.Min, d.Max = MinValue, MaxValue
			}
			r.byKey[d.Key] = d
		}
	}
}

// NewRegistry builds a registry from the default football catalogue,
// or from a custom one supplied via options.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		byKey: make(map[string]Definition, len(defaultCatalogue)),
	}
	for _, d := range defaultCatalogue {
		r.byKey[d.Key] = d
	}

	for _, opt := range opts {
		opt(r)
	}

	// Freeze derived indexes after options ran.
	r.byCategory = make(map[Category][]string)
	r.keys = make([]string, 0, len(r.byKey))
	for k, d := range r.byKey {
		r.keys = append(r.keys, k)
		r.byCategory[d.Category] = append(r.byCategory[d.Category], k)
	}
	sort.Strings(r.keys)
	for _, ks := range r.byCategory {
		sort.Strings(ks)
	}

	return r
}

// Lookup returns the definition for key, or ErrInvalidMetricKey.
func (r *Registry) Lookup(key string) (Definition, error) {
	d, ok := r.byKey[key]
	if !ok {
		return Definition{}, fmt.Errorf("%w: %q", ErrInvalidMetricKey, key)
	}
	return d, nil
}

// Known reports whether key names a registered metric.
func (r *Registry) Known(key string) bool {
	_, ok := r.byKey[key]
	return ok
}

// Keys returns all metric keys in lexical order.
func (r *Registry) Keys() []string {
	out := make([]string, len(r.keys))
	copy(out, r.keys)
	return out
}

// ByCategory returns the metric keys in a category, lexically ordered.
func (r *Registry) ByCategory(c Category) []string {
	ks := r.byCategory[c]
	out := make([]string, len(ks))
	copy(out, ks)
	return out
}

// CategoryOf returns the category for a metric key.
func (r *Registry) CategoryOf(key string) (Category, error) {
	d, err := r.Lookup(key)
	if err != nil {
		return "", err
	}
	return d.Category, nil
}

// ValidateValue rejects values outside the metric's valid range.
// Out-of-range values are an ingestion error, never silently clamped.
func (r *Registry) ValidateValue(key string, v float64) error {
	d, err := r.Lookup(key)
	if err != nil {
		return err
	}
	if v < d.Min || v > d.Max {
		return fmt.Errorf("%w: %s=%v outside [%v,%v]", ErrRangeViolation, key, v, d.Min, d.Max)
	}
	return nil
}

// defaultCatalogue is the built-in football academy metric set.
var defaultCatalogue = []Definition{
	{Key: "passing", DisplayName: "Passing", Category: Technical, Min: MinValue, Max: MaxValue},
	{Key: "dribbling", DisplayName: "Dribbling", Category: Technical, Min: MinValue, Max: MaxValue},
	{Key: "shooting", DisplayName: "Shooting", Category: Technical, Min: MinValue, Max: MaxValue},
	{Key: "first_touch", DisplayName: "First Touch", Category: Technical, Min: MinValue, Max: MaxValue},
	{Key: "crossing", DisplayName: "Crossing", Category: Technical, Min: MinValue, Max: MaxValue},
	{Key: "tackling", DisplayName: "Tackling", Category: Technical, Min: MinValue, Max: MaxValue},
	{Key: "heading", DisplayName: "Heading", Category: Technical, Min: MinValue, Max: MaxValue},

	{Key: "sprint_speed", DisplayName: "Sprint Speed", Category: Physical, Min: MinValue, Max: MaxValue},
	{Key: "stamina", DisplayName: "Stamina", Category: Physical, Min: MinValue, Max: MaxValue},
	{Key: "strength", DisplayName: "Strength", Category: Physical, Min: MinValue, Max: MaxValue},
	{Key: "agility", DisplayName: "Agility", Category: Physical, Min: MinValue, Max: MaxValue},
	{Key: "jumping", DisplayName: "Jumping", Category: Physical, Min: MinValue, Max: MaxValue},

	{Key: "composure", DisplayName: "Composure", Category: Mental, Min: MinValue, Max: MaxValue},
	{Key: "decision_making", DisplayName: "Decision Making", Category: Mental, Min: MinValue, Max: MaxValue},
	{Key: "positioning", DisplayName: "Positioning", Category: Mental, Min: MinValue, Max: MaxValue},
	{Key: "vision", DisplayName: "Vision", Category: Mental, Min: MinValue, Max: MaxValue},
	{Key: "concentration", DisplayName: "Concentration", Category: Mental, Min: MinValue, Max: MaxValue},

	{Key: "coachability", DisplayName: "Coachability", Category: Attitude, Min: MinValue, Max: MaxValue},
	{Key: "work_rate", DisplayName: "Work Rate", Category: Attitude, Min: MinValue, Max: MaxValue},
	{Key: "teamwork", DisplayName: "Teamwork", Category: Attitude, Min: MinValue, Max: MaxValue},
	{Key: "discipline", DisplayName: "Discipline", Category: Attitude, Min: MinValue, Max: MaxValue},

	{Key: "reflexes", DisplayName: "Reflexes", Category: Goalkeeping, Min: MinValue, Max: MaxValue},
	{Key: "handling", DisplayName: "Handling", Category: Goalkeeping, Min: MinValue, Max: MaxValue},
	{Key: "aerial_command", DisplayName: "Aerial Command", Category: Goalkeeping, Min: MinValue, Max: MaxValue},
	{Key: "distribution", DisplayName: "Distribution", Category: Goalkeeping, Min: MinValue, Max: MaxValue},
}
