package migration

import (
	"fmt"
	"strings"
)

// StoreDescriptor describes one store and the chain of versions it can be
// migrated through.
type StoreDescriptor struct {
	// Name is the logical store name, used in logs and the journal
	Name string `json:"name"`

	// Path is the store file on disk
	Path string `json:"path"`

	// Family is the schema family the catalog resolves versions within
	Family string `json:"family"`

	// Versions are ordered oldest to newest
	Versions []string `json:"versions"`

	// Mappings[i] names the mapping from Versions[i] to Versions[i+1].
	// An empty or missing entry means the mapping is inferred.
	Mappings []string `json:"mappings,omitempty"`
}

// Transition is one adjacent pair of versions and the mapping between them.
// Mapping is empty when it should be inferred.
type Transition struct {
	Index       int
	Source      string
	Destination string
	Mapping     string
}

// Inferred reports whether the transition has no explicit mapping.
func (t Transition) Inferred() bool {
	return t.Mapping == ""
}

// Validate checks the descriptor's invariants.
func (d StoreDescriptor) Validate() error {
	if strings.TrimSpace(d.Path) == "" {
		return fmt.Errorf("%w: store %q has no path", ErrInvalidDescriptor, d.Name)
	}
	if len(d.Versions) == 0 {
		return fmt.Errorf("%w: store %q declares no versions", ErrInvalidDescriptor, d.Name)
	}
	if len(d.Mappings) > len(d.Versions)-1 {
		return fmt.Errorf("%w: store %q declares %d mappings for %d versions (at most %d allowed)",
			ErrInvalidDescriptor, d.Name, len(d.Mappings), len(d.Versions), len(d.Versions)-1)
	}

	seen := make(map[string]bool, len(d.Versions))
	for i, v := range d.Versions {
		if strings.TrimSpace(v) == "" {
			return fmt.Errorf("%w: store %q has an empty version at index %d", ErrInvalidDescriptor, d.Name, i)
		}
		if seen[v] {
			return fmt.Errorf("%w: store %q declares version %q twice", ErrInvalidDescriptor, d.Name, v)
		}
		seen[v] = true
	}

	return nil
}

// Latest returns the newest declared version.
func (d StoreDescriptor) Latest() string {
	if len(d.Versions) == 0 {
		return ""
	}
	return d.Versions[len(d.Versions)-1]
}

// Transitions returns every adjacent version pair with its mapping.
func (d StoreDescriptor) Transitions() []Transition {
	if len(d.Versions) < 2 {
		return nil
	}

	transitions := make([]Transition, 0, len(d.Versions)-1)
	for i := 0; i < len(d.Versions)-1; i++ {
		t := Transition{
			Index:       i,
			Source:      d.Versions[i],
			Destination: d.Versions[i+1],
		}
		if i < len(d.Mappings) {
			t.Mapping = strings.TrimSpace(d.Mappings[i])
		}
		transitions = append(transitions, t)
	}
	return transitions
}

// WithMaxVersion returns a copy of the descriptor whose chain ends at
// Versions[maxVersion].
func (d StoreDescriptor) WithMaxVersion(maxVersion int) (StoreDescriptor, error) {
	if maxVersion < 0 || maxVersion >= len(d.Versions) {
		return StoreDescriptor{}, fmt.Errorf("%w: max version %d out of range for %d versions",
			ErrInvalidDescriptor, maxVersion, len(d.Versions))
	}

	out := d
	out.Versions = append([]string(nil), d.Versions[:maxVersion+1]...)
	if len(d.Mappings) > maxVersion {
		out.Mappings = append([]string(nil), d.Mappings[:maxVersion]...)
	} else {
		out.Mappings = append([]string(nil), d.Mappings...)
	}
	return out, nil
}
