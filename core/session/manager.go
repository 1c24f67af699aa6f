package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"

	"github.com/placementcell/portal/core"
)

// Store persists sessions; Get returns core.ErrNotFound for unknown ids.
type Store interface {
	Get(ctx context.Context, id string) (*Session, error)
	Put(ctx context.Context, s *Session) error
	Delete(ctx context.Context, id string) error
	// Sweep deletes the sessions expired at `now` and returns their ids.
	Sweep(ctx context.Context, now time.Time) ([]string, error)
	Close() error
}

type EventKind string

// Events
const (
	Saved     EventKind = "saved"
	Cleared   EventKind = "cleared"
	LoggedIn  EventKind = "logged-in"
	LoggedOut EventKind = "logged-out"
	Rotated   EventKind = "rotated"
)

type Event struct {
	Kind      EventKind
	SessionID string
	// PreviousID is the id a Rotated session had before.
	PreviousID string
	User       core.LogUser
}

// Manager is the single entry point to session state: every read and write of the auth keys goes through it,
// and subscribers are told about every change.
type Manager struct {
	store  Store
	ttl    time.Duration
	logger core.Logger
	now    func() time.Time // mockable

	mu     sync.RWMutex
	subs   map[int]func(Event)
	nextID int
}

func NewManager(store Store, conf *core.Config, logger core.Logger) *Manager {
	return &Manager{
		store:  store,
		ttl:    conf.Session.TTL,
		logger: logger,
		now:    time.Now,
		subs:   make(map[int]func(Event)),
	}
}

// SetClock replaces the manager's clock.
func (m *Manager) SetClock(now func() time.Time) {
	m.now = now
}

func (m *Manager) Now() time.Time {
	return m.now()
}

// New returns a fresh, unsaved session.
func (m *Manager) New() *Session {
	return newSession(m.now())
}

// Load returns the stored session, or a fresh one when the id is unknown or expired.
func (m *Manager) Load(ctx context.Context, id string) (*Session, error) {
	if id == "" {
		return m.New(), nil
	}
	s, err := m.store.Get(ctx, id)
	switch {
	case errors.Cause(err) == core.ErrNotFound:
		return m.New(), nil
	case err != nil:
		return nil, errors.Wrap(err, "loading session")
	case s.Expired(m.now()):
		return m.New(), nil
	}
	return s, nil
}

// Save persists the session and extends its expiry.
func (m *Manager) Save(ctx context.Context, s *Session) error {
	s.ExpiresAt = m.now().Add(m.ttl)
	if err := m.store.Put(ctx, s); err != nil {
		return errors.Wrap(err, "saving session")
	}
	m.publish(Event{Kind: Saved, SessionID: s.ID, User: s.LogUser()})
	return nil
}

// Clear wipes every key of the session (auth, preferences, drafts, flows). Clearing twice is a no-op.
func (m *Manager) Clear(ctx context.Context, s *Session) error {
	s.reset(m.now())
	if err := m.store.Delete(ctx, s.ID); err != nil && errors.Cause(err) != core.ErrNotFound {
		return errors.Wrap(err, "clearing session")
	}
	m.publish(Event{Kind: Cleared, SessionID: s.ID})
	return nil
}

// Rotate gives the session a new id and deletes the copy stored under the old one.
func (m *Manager) Rotate(ctx context.Context, s *Session) error {
	prev := s.ID
	s.ID = uuid.NewString()
	if err := m.store.Delete(ctx, prev); err != nil && errors.Cause(err) != core.ErrNotFound {
		return errors.Wrap(err, "rotating session")
	}
	m.publish(Event{Kind: Rotated, SessionID: s.ID, PreviousID: prev, User: s.LogUser()})
	return nil
}

// Logout drops the auth keys and announces it, so the flows held by the user can be released.
func (m *Manager) Logout(s *Session) {
	user := s.LogUser()
	s.Logout()
	m.publish(Event{Kind: LoggedOut, SessionID: s.ID, User: user})
}

// LoggedIn announces a successful login of the session.
func (m *Manager) LoggedIn(s *Session) {
	m.publish(Event{Kind: LoggedIn, SessionID: s.ID, User: s.LogUser()})
}

// Subscribe registers fn for every session event; call the returned func to unsubscribe.
func (m *Manager) Subscribe(fn func(Event)) (unsubscribe func()) {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.subs[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	}
}

func (m *Manager) publish(e Event) {
	m.mu.RLock()
	fns := make([]func(Event), 0, len(m.subs))
	for i := 0; i < m.nextID; i++ {
		if fn, ok := m.subs[i]; ok {
			fns = append(fns, fn)
		}
	}
	m.mu.RUnlock()

	for _, fn := range fns {
		fn(e)
	}
}

// Sweep deletes the expired sessions; each one is announced as Cleared.
func (m *Manager) Sweep(ctx context.Context) (int, error) {
	ids, err := m.store.Sweep(ctx, m.now())
	for _, id := range ids {
		m.publish(Event{Kind: Cleared, SessionID: id})
	}
	return len(ids), errors.Wrap(err, "sweeping sessions")
}

// StartSweeper schedules Sweep with a cron spec (eg. "@every 1h"); stop waits for a running sweep.
func (m *Manager) StartSweeper(spec string) (stop func(), err error) {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(spec, func() {
		n, err := m.Sweep(context.Background())
		if err != nil {
			m.logger.Error(fmt.Sprintf("session sweep: %v", err), err)
			return
		}
		if n > 0 {
			m.logger.Info(fmt.Sprintf("session sweep: %d expired sessions deleted", n))
		}
	}); err != nil {
		return nil, errors.Wrapf(err, "scheduling session sweeper %q", spec)
	}
	c.Start()
	return func() { <-c.Stop().Done() }, nil
}

func (m *Manager) Close() error {
	return m.store.Close()
}
