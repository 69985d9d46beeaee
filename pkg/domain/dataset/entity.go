// Package dataset models the active rule inventory: the immutable rule
// collection plus where and when it was loaded.
package dataset

import (
	"time"

	"github.com/armorlens/api/pkg/domain/rule"
	"github.com/armorlens/api/pkg/domain/shared"
)

// Dataset is one loaded rule inventory. It is replaced wholesale, never
// edited: every load produces a new Dataset with a new ID.
type Dataset struct {
	id       shared.ID
	source   Source
	rules    []*rule.Rule
	loadedAt time.Time
}

// New creates a dataset from freshly parsed rules.
func New(source Source, rules []*rule.Rule) (*Dataset, error) {
	if !source.Kind.IsValid() {
		return nil, ErrInvalidSourceKind
	}
	if rules == nil {
		rules = []*rule.Rule{}
	}
	return &Dataset{
		id:       shared.NewID(),
		source:   source,
		rules:    rules,
		loadedAt: time.Now().UTC(),
	}, nil
}

// Reconstitute recreates a dataset from persistence.
func Reconstitute(id shared.ID, source Source, rules []*rule.Rule, loadedAt time.Time) *Dataset {
	if rules == nil {
		rules = []*rule.Rule{}
	}
	return &Dataset{
		id:       id,
		source:   source,
		rules:    rules,
		loadedAt: loadedAt,
	}
}

// ID returns the dataset ID.
func (d *Dataset) ID() shared.ID { return d.id }

// Source returns where the dataset was loaded from.
func (d *Dataset) Source() Source { return d.source }

// Rules returns the rule collection. Callers must not modify the slice.
func (d *Dataset) Rules() []*rule.Rule { return d.rules }

// Len returns the number of rules.
func (d *Dataset) Len() int { return len(d.rules) }

// LoadedAt returns when the dataset was loaded.
func (d *Dataset) LoadedAt() time.Time { return d.loadedAt }

// Age returns how long ago the dataset was loaded.
func (d *Dataset) Age(now time.Time) time.Duration { return now.Sub(d.loadedAt) }
