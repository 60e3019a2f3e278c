// Package records owns the live connection to the record store. It retries
// the initial connect on a fixed delay, detects drops and restorations with a
// periodic ping, and notifies listeners on every transition into the
// connected state.
package records

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/pilosopo/internal/dbx"
	"github.com/dmitrijs2005/pilosopo/internal/logging"
	"github.com/dmitrijs2005/pilosopo/internal/server/repositories/history"
	"github.com/dmitrijs2005/pilosopo/internal/server/repositories/profiles"
	"github.com/dmitrijs2005/pilosopo/internal/server/repositories/repomanager"
	"gorm.io/gorm"
)

type State int

const (
	StateConnecting State = iota
	StateConnected
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	default:
		return "connecting"
	}
}

// Listener is invoked after the connection becomes usable.
type Listener func(ctx context.Context)

type Connection struct {
	open    func(ctx context.Context) (*gorm.DB, error)
	ping    func(ctx context.Context, db *gorm.DB) error
	close   func(db *gorm.DB)
	manager repomanager.RepositoryManager
	log     logging.Logger

	retryDelay    time.Duration
	checkInterval time.Duration

	mu        sync.RWMutex
	db        *gorm.DB
	state     State
	listeners []Listener
}

func NewConnection(dsn string, manager repomanager.RepositoryManager, retryDelay, checkInterval time.Duration, l logging.Logger) *Connection {
	return &Connection{
		open:          func(ctx context.Context) (*gorm.DB, error) { return dbx.Open(ctx, dsn) },
		ping:          dbx.Ping,
		close:         dbx.Close,
		manager:       manager,
		log:           l.With("module", "record_store"),
		retryDelay:    retryDelay,
		checkInterval: checkInterval,
	}
}

// OnConnected registers fn for every transition into StateConnected.
// Listeners run sequentially on the monitor goroutine.
func (c *Connection) OnConnected(fn Listener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

func (c *Connection) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

func (c *Connection) Connected() bool {
	return c.State() == StateConnected
}

// Profiles returns the record-store profile repository, or nil when the
// store is not connected.
func (c *Connection) Profiles() profiles.Repository {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.state != StateConnected {
		return nil
	}
	return c.manager.Profiles(c.db)
}

// History returns the record-store history repository, or nil when the
// store is not connected.
func (c *Connection) History() history.Repository {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.state != StateConnected {
		return nil
	}
	return c.manager.History(c.db)
}

// Run connects, retrying every retryDelay until success, then monitors the
// connection until ctx is cancelled. The pool is closed on return.
func (c *Connection) Run(ctx context.Context) {
	attempt := 0
	for {
		attempt++
		err := c.connect(ctx)
		if err == nil {
			break
		}
		c.log.Warn(ctx, "record store connection failed", "attempt", attempt, "retry_in", c.retryDelay.String(), "error", err)
		select {
		case <-ctx.Done():
			return
		case <-time.After(c.retryDelay):
		}
	}
	c.log.Info(ctx, "record store connected", "attempt", attempt)
	c.notify(ctx)

	ticker := time.NewTicker(c.checkInterval)
	defer ticker.Stop()
	defer c.shutdown()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.check(ctx)
		}
	}
}

func (c *Connection) connect(ctx context.Context) error {
	db, err := c.open(ctx)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	var version int64
	if err == nil {
		version, err = c.manager.Migrate(ctx, sqlDB)
	}
	if err != nil {
		c.close(db)
		return err
	}
	c.log.Info(ctx, "record store schema ready", "version", version)

	c.mu.Lock()
	c.db = db
	c.state = StateConnected
	c.mu.Unlock()
	return nil
}

func (c *Connection) check(ctx context.Context) {
	c.mu.RLock()
	db, state := c.db, c.state
	c.mu.RUnlock()

	err := c.ping(ctx, db)
	switch {
	case err != nil && state == StateConnected:
		c.setState(StateDisconnected)
		c.log.Warn(ctx, "record store connection lost", "error", err)
	case err == nil && state == StateDisconnected:
		c.setState(StateConnected)
		c.log.Info(ctx, "record store connection restored")
		c.notify(ctx)
	}
}

// MarkLost moves a connected store to StateDisconnected when err shows the
// connection failed, without waiting for the next ping. It reports whether
// err was connection-class. The monitor restores the state and notifies
// listeners once a ping succeeds again.
func (c *Connection) MarkLost(ctx context.Context, err error) bool {
	if !dbx.IsConnectionError(err) {
		return false
	}
	c.mu.Lock()
	wasConnected := c.state == StateConnected
	if wasConnected {
		c.state = StateDisconnected
	}
	c.mu.Unlock()
	if wasConnected {
		c.log.Warn(ctx, "record store connection lost", "error", err)
	}
	return true
}

func (c *Connection) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *Connection) notify(ctx context.Context) {
	c.mu.RLock()
	listeners := append([]Listener(nil), c.listeners...)
	c.mu.RUnlock()
	for _, fn := range listeners {
		fn(ctx)
	}
}

func (c *Connection) shutdown() {
	c.mu.Lock()
	db := c.db
	c.db = nil
	c.state = StateDisconnected
	c.mu.Unlock()
	if db != nil {
		c.close(db)
	}
}
