package migrate

import (
	"github.com/xaenox/keep-migrate/internal/models"
)

// keyIndex maps match keys to notes. The first note seen for a key wins;
// later ones are reported as duplicates.
type keyIndex struct {
	notes map[models.Key]*models.Note
}

func newKeyIndex(m *Migrator, phase Phase, account string, notes []*models.Note) *keyIndex {
	idx := &keyIndex{notes: make(map[models.Key]*models.Note, len(notes))}
	for _, n := range notes {
		if n.Trashed {
			continue
		}
		key := n.Key()
		if _, dup := idx.notes[key]; dup {
			m.report(Event{Phase: phase, Kind: EventDuplicateKey, Title: n.Title, Account: account})
			continue
		}
		idx.notes[key] = n
	}
	return idx
}

func (idx *keyIndex) get(key models.Key) (*models.Note, bool) {
	n, ok := idx.notes[key]
	return n, ok
}

func (idx *keyIndex) add(n *models.Note) {
	if _, ok := idx.notes[n.Key()]; !ok {
		idx.notes[n.Key()] = n
	}
}
