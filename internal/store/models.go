package store

import (
	"fmt"
	"time"

	"github.com/driftwatch-project/driftwatch/pkg/structdiff"
)

type RevisionID uint64

func (id RevisionID) String() string {
	return fmt.Sprintf("%08x", uint64(id))
}

// Snapshot is one observed state of a watch target. Data holds the
// canonical JSON encoding of the extracted value, so mapping key order
// survives the round trip through the store.
type Snapshot struct {
	// ID of the revision, assigned by the store on save.
	ID RevisionID `msgpack:"i" json:"id"`
	// PreviousID chains revisions; zero on the baseline revision.
	PreviousID RevisionID `msgpack:"p,omitempty" json:"previousID,omitempty"`
	// Taken is when the snapshot was extracted.
	Taken time.Time `msgpack:"t" json:"taken"`
	// Data is the canonical JSON form of the snapshot value.
	Data []byte `msgpack:"d" json:"data"`
}

// Value decodes the snapshot back into a comparable value.
func (s *Snapshot) Value() (structdiff.Value, error) {
	return structdiff.Parse(s.Data)
}

// ChangeSet is the persisted projection of the differences between a
// revision and its predecessor.
type ChangeSet struct {
	Revision RevisionID `msgpack:"i" json:"revision"`
	Taken    time.Time  `msgpack:"t" json:"taken"`
	Records  []Record   `msgpack:"r" json:"records"`
}

// Record mirrors one change record on disk. Before and After carry the
// canonical JSON of the raw values; either may be empty depending on the
// kind.
type Record struct {
	Path        string `msgpack:"p" json:"path"`
	Kind        string `msgpack:"k" json:"type"`
	Before      []byte `msgpack:"b,omitempty" json:"before,omitempty"`
	After       []byte `msgpack:"a,omitempty" json:"after,omitempty"`
	Summary     string `msgpack:"s" json:"summary"`
	Description string `msgpack:"d" json:"description"`
}

// NewChangeSet converts a freshly computed change list into its stored
// form. The revision must already be claimed (via SaveSnapshot).
func NewChangeSet(rev RevisionID, taken time.Time, changes []*structdiff.Change) (*ChangeSet, error) {
	cs := &ChangeSet{
		Revision: rev,
		Taken:    taken,
		Records:  make([]Record, 0, len(changes)),
	}
	for _, c := range changes {
		rec := Record{
			Path:        c.Path,
			Kind:        string(c.Kind),
			Summary:     c.Summary,
			Description: c.Description,
		}
		if c.Before != nil {
			data, err := structdiff.Encode(c.Before)
			if err != nil {
				return nil, fmt.Errorf("encode before value at %q: %w", c.Path, err)
			}
			rec.Before = data
		}
		if c.After != nil {
			data, err := structdiff.Encode(c.After)
			if err != nil {
				return nil, fmt.Errorf("encode after value at %q: %w", c.Path, err)
			}
			rec.After = data
		}
		cs.Records = append(cs.Records, rec)
	}
	return cs, nil
}
