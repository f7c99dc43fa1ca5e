package registry

import (
	"fmt"
	"sort"
)

// IDRange is the inclusive range of identifiers the daemon owns. Every id
// outside it belongs to the system or to other tools.
type IDRange struct {
	Min uint32
	Max uint32
}

// Managed reports whether id falls inside the range.
func (r IDRange) Managed(id uint32) bool {
	return id >= r.Min && id <= r.Max
}

func (r IDRange) classify(id uint32) string {
	if r.Managed(id) {
		return "managed"
	}
	return "system"
}

// Entry is a registry record that can be merged.
type Entry[E any] interface {
	Key() string
	ID() uint32
	Equal(other E) bool
}

// ChangeKind is the kind of a merge change log entry.
type ChangeKind string

const (
	ChangeAdd    ChangeKind = "add"
	ChangeUpdate ChangeKind = "update"
	ChangeRemove ChangeKind = "remove"
)

// Change records one modification made by Merge.
type Change struct {
	Kind ChangeKind
	Name string
	// ID is the identifier after the change, or before it for removals.
	ID uint32
	// PreviousID is set for updates.
	PreviousID uint32
}

func (c Change) String() string {
	if c.Kind == ChangeUpdate && c.PreviousID != c.ID {
		return fmt.Sprintf("%s %s (%d -> %d)", c.Kind, c.Name, c.PreviousID, c.ID)
	}
	return fmt.Sprintf("%s %s (%d)", c.Kind, c.Name, c.ID)
}

// MergeOptions parameterize Merge.
type MergeOptions struct {
	Range IDRange

	// Bootstrap names the entry that must exist after every merge.
	Bootstrap string
}

// Merge folds desired into existing and returns the new registry content
// with a log of what changed.
//
// Entries in the system range are read-only: they are kept as found and any
// attempt to create, modify or delete one fails the whole merge. An entry
// may not move between the system and managed ranges. Managed entries that
// are no longer desired are removed. Existing order is preserved and new
// entries are appended by id, then name.
//
// Neither input is modified. On error the result is nil and nothing should
// be written.
func Merge[E Entry[E]](existing, desired []E, opts MergeOptions) ([]E, []Change, error) {
	existingByName, err := index(existing, "existing")
	if err != nil {
		return nil, nil, err
	}
	desiredByName, err := index(desired, "desired")
	if err != nil {
		return nil, nil, err
	}

	rng := opts.Range
	result := make([]E, 0, len(existing)+len(desired))
	var changes []Change

	for _, cur := range existing {
		name := cur.Key()
		want, ok := desiredByName[name]
		if !ok {
			if !rng.Managed(cur.ID()) {
				result = append(result, cur)
				continue
			}
			if name == opts.Bootstrap {
				return nil, nil, &SafetyError{Name: name, Reason: "bootstrap entry would be removed"}
			}
			changes = append(changes, Change{Kind: ChangeRemove, Name: name, ID: cur.ID()})
			continue
		}

		curClass, wantClass := rng.classify(cur.ID()), rng.classify(want.ID())
		switch {
		case curClass != wantClass:
			return nil, nil, &SafetyError{
				Name:   name,
				Reason: fmt.Sprintf("id %d (%s) cannot become %d (%s)", cur.ID(), curClass, want.ID(), wantClass),
			}
		case cur.Equal(want):
			result = append(result, cur)
		case curClass == "system":
			return nil, nil, &SafetyError{Name: name, Reason: fmt.Sprintf("system entry with id %d is read-only", cur.ID())}
		default:
			result = append(result, want)
			changes = append(changes, Change{Kind: ChangeUpdate, Name: name, ID: want.ID(), PreviousID: cur.ID()})
		}
	}

	var additions []E
	for _, want := range desired {
		if _, ok := existingByName[want.Key()]; ok {
			continue
		}
		if !rng.Managed(want.ID()) {
			return nil, nil, &SafetyError{
				Name:   want.Key(),
				Reason: fmt.Sprintf("cannot create entry with system id %d", want.ID()),
			}
		}
		additions = append(additions, want)
	}
	sort.SliceStable(additions, func(i, j int) bool {
		if additions[i].ID() != additions[j].ID() {
			return additions[i].ID() < additions[j].ID()
		}
		return additions[i].Key() < additions[j].Key()
	})
	for _, add := range additions {
		result = append(result, add)
		changes = append(changes, Change{Kind: ChangeAdd, Name: add.Key(), ID: add.ID()})
	}

	if err := checkResult(result, opts); err != nil {
		return nil, nil, err
	}
	return result, changes, nil
}

func index[E Entry[E]](entries []E, which string) (map[string]E, error) {
	byName := make(map[string]E, len(entries))
	for _, e := range entries {
		if _, dup := byName[e.Key()]; dup {
			return nil, &SafetyError{Name: e.Key(), Reason: "duplicate name in " + which + " entries"}
		}
		byName[e.Key()] = e
	}
	return byName, nil
}

// checkResult verifies the bootstrap entry survived and that no two managed
// entries share an id. Duplicate system ids already on disk are tolerated.
func checkResult[E Entry[E]](result []E, opts MergeOptions) error {
	bootstrap := opts.Bootstrap
	seen := make(map[uint32]string, len(result))
	found := bootstrap == ""
	for _, e := range result {
		if e.Key() == bootstrap {
			found = true
		}
		if !opts.Range.Managed(e.ID()) {
			continue
		}
		if other, dup := seen[e.ID()]; dup {
			return &SafetyError{Name: e.Key(), Reason: fmt.Sprintf("id %d is already used by %q", e.ID(), other)}
		}
		seen[e.ID()] = e.Key()
	}
	if !found {
		return &SafetyError{Name: bootstrap, Reason: "bootstrap entry is missing"}
	}
	return nil
}
