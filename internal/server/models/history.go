package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"gorm.io/gorm"
)

// LocalIDPrefix marks ids synthesized without a backing authority.
const LocalIDPrefix = "local-"

// NewLocalID returns "local-<unix millis>-<ulid entropy>". The ULID suffix
// keeps ids distinct within the same millisecond.
func NewLocalID(now time.Time) string {
	id := ulid.Make().String()
	return fmt.Sprintf("%s%d-%s", LocalIDPrefix, now.UnixMilli(), strings.ToLower(id[10:]))
}

// IsLocalID reports whether id was synthesized by NewLocalID.
func IsLocalID(id string) bool {
	return strings.HasPrefix(id, LocalIDPrefix)
}

// HistoryEntry is one recorded lookup. JSON names follow the public API.
type HistoryEntry struct {
	ID            string    `gorm:"primaryKey;type:text" json:"id"`
	OwnerID       string    `gorm:"column:owner_id;type:text;not null;index" json:"userId"`
	Term          string    `gorm:"type:text;not null" json:"word"`
	ResultText    string    `gorm:"column:result_text;type:text;not null" json:"pilosopoAnswer"`
	SecondaryText string    `gorm:"column:secondary_text;type:text" json:"realMeaning"`
	CreatedAt     time.Time `json:"createdAt"`
	Buffered      bool      `gorm:"-" json:"buffered"`
}

func (HistoryEntry) TableName() string {
	return "history"
}

// BeforeCreate assigns the store id. Locally synthesized ids never reach the
// record store.
func (h *HistoryEntry) BeforeCreate(_ *gorm.DB) error {
	if h.ID == "" || IsLocalID(h.ID) {
		h.ID = uuid.NewString()
	}
	return nil
}
