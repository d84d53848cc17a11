package migrate

import (
	"context"
	"fmt"

	"github.com/xaenox/keep-migrate/internal/session"
)

// Inventory counts the non-trashed notes of an account.
type Inventory struct {
	Total    int
	Archived int
	Active   int
}

// CountInventory reads every note of s. It has no side effects.
func CountInventory(ctx context.Context, s session.Session) (Inventory, error) {
	notes, err := s.Notes(ctx)
	if err != nil {
		return Inventory{}, fmt.Errorf("counting notes of %s: %w", s.Account(), err)
	}

	var inv Inventory
	for _, n := range notes {
		// Backends may return trashed notes; they never count.
		if n.Trashed {
			continue
		}
		inv.Total++
		if n.Archived {
			inv.Archived++
		}
	}
	inv.Active = inv.Total - inv.Archived
	return inv, nil
}
