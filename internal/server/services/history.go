package services

import (
	"context"
	"time"

	"github.com/dmitrijs2005/pilosopo/internal/common"
	"github.com/dmitrijs2005/pilosopo/internal/logging"
	"github.com/dmitrijs2005/pilosopo/internal/server/buffer"
	"github.com/dmitrijs2005/pilosopo/internal/server/models"
	"github.com/dmitrijs2005/pilosopo/internal/server/repositories/history"
)

// HistoryStore is the live record-store side of the history feature.
type HistoryStore interface {
	Connected() bool
	// History returns nil while the store is not connected.
	History() history.Repository
	// MarkLost reports whether err means the connection itself failed,
	// taking the store offline if so.
	MarkLost(ctx context.Context, err error) bool
}

// Archiver keeps entries dropped during a flush for later reconciliation.
type Archiver interface {
	Archive(ctx context.Context, e *models.HistoryEntry, reason error) error
}

// HistoryService records lookups durably when the record store is
// connected and in the degraded buffer otherwise.
type HistoryService struct {
	records HistoryStore
	buf     *buffer.DegradedBuffer
	archive Archiver
	log     logging.Logger
	now     func() time.Time
}

// NewHistoryService constructs a HistoryService. archive may be nil.
func NewHistoryService(records HistoryStore, buf *buffer.DegradedBuffer, archive Archiver, l logging.Logger) *HistoryService {
	return &HistoryService{
		records: records,
		buf:     buf,
		archive: archive,
		log:     l.With("module", "history"),
		now:     time.Now,
	}
}

type AppendRequest struct {
	OwnerID       string
	Term          string
	ResultText    string
	SecondaryText string
}

// Append never fails because the record store is down: the entry is
// buffered and returned with Buffered set.
func (s *HistoryService) Append(ctx context.Context, req AppendRequest) (*models.HistoryEntry, error) {
	if req.OwnerID == "" || req.Term == "" || req.ResultText == "" {
		return nil, common.Validation("userId, word and pilosopoAnswer are required")
	}

	now := s.now().UTC()
	e := &models.HistoryEntry{
		OwnerID:       req.OwnerID,
		Term:          req.Term,
		ResultText:    req.ResultText,
		SecondaryText: req.SecondaryText,
		CreatedAt:     now,
	}

	if repo := s.records.History(); repo != nil {
		err := repo.Create(ctx, e)
		if err == nil {
			return e, nil
		}
		if !s.records.MarkLost(ctx, err) {
			s.log.Error(ctx, "history write failed", "owner", req.OwnerID, "error", err)
			return nil, common.Backend("Failed to save history", err)
		}
		s.log.Warn(ctx, "record store dropped during history write", "owner", req.OwnerID, "error", err)
	}

	e.ID = models.NewLocalID(now)
	stored := s.buf.Add(e)
	s.log.Warn(ctx, "record store unavailable, history entry buffered", "owner", req.OwnerID, "id", stored.ID)
	return stored, nil
}

// List returns the owner's buffered entries followed by durable ones, each
// group newest first. An empty owner yields an empty list.
func (s *HistoryService) List(ctx context.Context, ownerID string) ([]*models.HistoryEntry, error) {
	if ownerID == "" {
		return []*models.HistoryEntry{}, nil
	}

	out := s.buf.ForOwner(ownerID)
	if out == nil {
		out = []*models.HistoryEntry{}
	}

	repo := s.records.History()
	if repo == nil {
		return out, nil
	}
	durable, err := repo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, common.Backend("Failed to fetch history", err)
	}
	return append(out, durable...), nil
}

// FlushReport summarizes one flush.
type FlushReport struct {
	Attempted int
	Stored    int
	Dropped   int
}

// Flush moves buffered entries into the record store in insertion order.
// The buffer is cleared before the first write, so an entry that fails to
// store (or is pending when the process dies) is lost from the buffer; a
// failed entry is archived when an archive is configured.
func (s *HistoryService) Flush(ctx context.Context) FlushReport {
	var rep FlushReport
	if !s.records.Connected() {
		return rep
	}
	repo := s.records.History()
	if repo == nil {
		return rep
	}

	pending := s.buf.Drain()
	rep.Attempted = len(pending)
	for _, e := range pending {
		localID := e.ID
		e.Buffered = false
		if err := repo.Create(ctx, e); err != nil {
			e.ID = localID
			rep.Dropped++
			s.log.Warn(ctx, "buffered history entry dropped", "owner", e.OwnerID, "id", e.ID, "error", err)
			s.deadLetter(ctx, e, err)
			continue
		}
		rep.Stored++
	}

	if rep.Attempted > 0 {
		s.log.Info(ctx, "history buffer flushed", "attempted", rep.Attempted, "stored", rep.Stored, "dropped", rep.Dropped)
	}
	return rep
}

func (s *HistoryService) deadLetter(ctx context.Context, e *models.HistoryEntry, reason error) {
	if s.archive == nil {
		return
	}
	if err := s.archive.Archive(ctx, e, reason); err != nil {
		s.log.Error(ctx, "dead-letter archive failed", "owner", e.OwnerID, "id", e.ID, "error", err)
	}
}

// OnRecordStoreConnected is registered as a connection listener.
func (s *HistoryService) OnRecordStoreConnected(ctx context.Context) {
	s.Flush(ctx)
}

// Buffered reports the number of entries waiting for the record store.
func (s *HistoryService) Buffered() int {
	return s.buf.Len()
}
