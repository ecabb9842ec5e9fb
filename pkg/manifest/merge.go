package manifest

import (
	"maps"
	"slices"
	"strings"

	"github.com/matzehuels/poet/pkg/errors"
)

// Merge combines two dependency tables without modifying either.
//
// The result holds exactly len(existing)+len(incoming) entries. Any name
// present in both tables fails the whole merge with ADD_CONFLICT wrapping an
// [*errors.ConflictError] that lists the colliding names in sorted order.
func Merge(existing, incoming Dependencies) (Dependencies, error) {
	var conflicts []string
	for name := range incoming {
		if _, ok := existing[name]; ok {
			conflicts = append(conflicts, name)
		}
	}
	if len(conflicts) > 0 {
		slices.Sort(conflicts)
		return nil, errors.Wrap(errors.ErrCodeAddConflict, &errors.ConflictError{Names: conflicts},
			"cannot add %s", strings.Join(conflicts, ", "))
	}

	merged := make(Dependencies, len(existing)+len(incoming))
	maps.Copy(merged, existing)
	maps.Copy(merged, incoming)
	return merged, nil
}

// FromEntries builds a dependency table from resolved entries. Two entries
// with the same name are an ADD_CONFLICT.
func FromEntries(entries []Entry) (Dependencies, error) {
	deps := make(Dependencies, len(entries))
	var dups []string
	for _, e := range entries {
		if _, ok := deps[e.Name]; ok {
			dups = append(dups, e.Name)
			continue
		}
		deps[e.Name] = e.Dependency
	}
	if len(dups) > 0 {
		slices.Sort(dups)
		dups = slices.Compact(dups)
		return nil, errors.Wrap(errors.ErrCodeAddConflict, &errors.ConflictError{Names: dups},
			"requested more than once: %s", strings.Join(dups, ", "))
	}
	return deps, nil
}

// Add merges entries into the table for group and returns the updated
// project. p itself is left untouched, including on error.
func (p *Project) Add(group string, entries []Entry) (*Project, error) {
	incoming, err := FromEntries(entries)
	if err != nil {
		return nil, err
	}
	merged, err := Merge(p.Table(group), incoming)
	if err != nil {
		return nil, err
	}
	out := p.Clone()
	out.SetTable(group, merged)
	return out, nil
}
