// Package buffer holds history entries written while the record store is
// unavailable.
package buffer

import (
	"sync"

	"github.com/dmitrijs2005/pilosopo/internal/server/models"
)

// DegradedBuffer is an in-process, insertion-ordered list of buffered
// history entries. Drain takes a snapshot and clears the list in one step
// under the same lock Add uses, so an entry is either drained or kept, never
// lost between the two.
type DegradedBuffer struct {
	mu      sync.Mutex
	entries []*models.HistoryEntry
}

func New() *DegradedBuffer {
	return &DegradedBuffer{}
}

// Add appends a copy of e marked as buffered.
func (b *DegradedBuffer) Add(e *models.HistoryEntry) *models.HistoryEntry {
	c := *e
	c.Buffered = true

	b.mu.Lock()
	b.entries = append(b.entries, &c)
	b.mu.Unlock()

	out := c
	return &out
}

// ForOwner returns copies of the owner's buffered entries, newest first.
func (b *DegradedBuffer) ForOwner(ownerID string) []*models.HistoryEntry {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []*models.HistoryEntry
	for i := len(b.entries) - 1; i >= 0; i-- {
		if b.entries[i].OwnerID == ownerID {
			c := *b.entries[i]
			out = append(out, &c)
		}
	}
	return out
}

// Drain removes and returns every buffered entry in insertion order.
func (b *DegradedBuffer) Drain() []*models.HistoryEntry {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := b.entries
	b.entries = nil
	return out
}

func (b *DegradedBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}
