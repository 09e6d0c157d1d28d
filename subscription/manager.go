// Copyright 2026 The GSMS Authors
// SPDX-License-Identifier: Apache-2.0

package subscription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jtrinklein/gsms/chat"
	"github.com/jtrinklein/gsms/record"
)

// deliverTimeout bounds the record lookup and gateway send for one
// forwarded event.
const deliverTimeout = 30 * time.Second

var (
	// ErrNotRegistered is returned when an action targets a phone with
	// no user record.
	ErrNotRegistered = errors.New("subscription: user not registered")

	// ErrAlreadyRegistered is returned by RegisterUser when a record
	// for the phone already exists.
	ErrAlreadyRegistered = errors.New("subscription: user already registered")
)

// Store is the record persistence the manager needs. *store.Store
// satisfies it.
type Store interface {
	Get(ctx context.Context, phone string) (*record.User, error)
	Put(ctx context.Context, user *record.User) error
	Remove(ctx context.Context, phone string) error
	ListAll(ctx context.Context) ([]*record.User, error)
}

// Forwarder receives chat events that passed the listener's operation
// filter. *router.Router satisfies it.
type Forwarder interface {
	RouteOutbound(ctx context.Context, user *record.User, event chat.Event)
}

// Config holds configuration for creating a Manager.
type Config struct {
	// Store persists user records. Required.
	Store Store

	// Chat locates rooms and opens event streams. Required.
	Chat chat.Gateway

	// Forwarder routes create events toward SMS. Required.
	Forwarder Forwarder

	// Logger receives structured log output. If nil, slog.Default()
	// is used.
	Logger *slog.Logger
}

// Manager tracks each user's active room and the live listener on it.
type Manager struct {
	store     Store
	chat      chat.Gateway
	forwarder Forwarder
	logger    *slog.Logger

	mu         sync.Mutex
	listeners  map[string]*listener
	phoneLocks map[string]*sync.Mutex
	closed     bool
	wg         sync.WaitGroup
}

// listener is one goroutine draining one room's event stream for one
// phone. cancel stops the stream; done closes when the goroutine has
// exited.
type listener struct {
	id     string
	phone  string
	roomID string
	cancel context.CancelFunc
	done   chan struct{}
}

// NewManager creates a Manager from cfg.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("subscription: Store is required")
	}
	if cfg.Chat == nil {
		return nil, fmt.Errorf("subscription: Chat is required")
	}
	if cfg.Forwarder == nil {
		return nil, fmt.Errorf("subscription: Forwarder is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Manager{
		store:      cfg.Store,
		chat:       cfg.Chat,
		forwarder:  cfg.Forwarder,
		logger:     logger,
		listeners:  make(map[string]*listener),
		phoneLocks: make(map[string]*sync.Mutex),
	}, nil
}

// phoneLock returns the mutex serializing state changes for phone.
func (m *Manager) phoneLock(phone string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	lock, ok := m.phoneLocks[phone]
	if !ok {
		lock = &sync.Mutex{}
		m.phoneLocks[phone] = lock
	}
	return lock
}

// RegisterUser creates a record for a new phone with no keywords and
// no active room.
func (m *Manager) RegisterUser(ctx context.Context, phone, username, token string) error {
	if !record.ValidPhone(phone) {
		return fmt.Errorf("subscription: invalid phone %q", phone)
	}
	lock := m.phoneLock(phone)
	lock.Lock()
	defer lock.Unlock()

	existing, err := m.store.Get(ctx, phone)
	if err != nil {
		return fmt.Errorf("subscription: checking %s: %w", phone, err)
	}
	if existing != nil {
		return ErrAlreadyRegistered
	}

	user := record.New(phone, username, token)
	if err := m.store.Put(ctx, user); err != nil {
		return fmt.Errorf("subscription: saving %s: %w", phone, err)
	}
	m.logger.Info("registered user", "phone", phone, "username", username)
	return nil
}

// SetKeywords replaces the user's keyword filter. Keywords are
// trimmed; blank entries are dropped. An empty list means forward
// everything.
func (m *Manager) SetKeywords(ctx context.Context, phone string, keywords []string) error {
	lock := m.phoneLock(phone)
	lock.Lock()
	defer lock.Unlock()

	user, err := m.store.Get(ctx, phone)
	if err != nil {
		return fmt.Errorf("subscription: looking up %s: %w", phone, err)
	}
	if user == nil {
		return ErrNotRegistered
	}

	cleaned := make([]string, 0, len(keywords))
	for _, keyword := range keywords {
		keyword = strings.TrimSpace(keyword)
		if keyword != "" {
			cleaned = append(cleaned, keyword)
		}
	}
	user.Keywords = cleaned

	if err := m.store.Put(ctx, user); err != nil {
		return fmt.Errorf("subscription: saving %s: %w", phone, err)
	}
	return nil
}

// SubscribeRoom makes roomID the user's active room and starts
// listening on it. The new listener attaches before the old one is
// torn down. Keywords reset to the user's own mention. Resubscribing
// to the current room is idempotent and does not duplicate the
// listener.
func (m *Manager) SubscribeRoom(ctx context.Context, phone, roomID string) error {
	lock := m.phoneLock(phone)
	lock.Lock()
	defer lock.Unlock()

	user, err := m.store.Get(ctx, phone)
	if err != nil {
		return fmt.Errorf("subscription: looking up %s: %w", phone, err)
	}
	if user == nil {
		return ErrNotRegistered
	}

	room, err := m.chat.FindRoom(ctx, user.Token, roomID)
	if err != nil {
		return fmt.Errorf("subscription: finding room %s: %w", roomID, err)
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return fmt.Errorf("subscription: manager is closed")
	}
	old := m.listeners[phone]
	m.mu.Unlock()

	var fresh *listener
	if old == nil || old.roomID != roomID {
		fresh, err = m.listen(phone, roomID, room)
		if err != nil {
			return err
		}
	}

	user.ActiveRoom = &record.Room{ID: room.ID(), Name: room.Name()}
	user.Keywords = []string{"@" + user.Username}
	if err := m.store.Put(ctx, user); err != nil {
		if fresh != nil {
			m.stop(fresh)
		}
		return fmt.Errorf("subscription: saving %s: %w", phone, err)
	}

	if fresh != nil {
		m.register(fresh)
		if old != nil {
			m.stop(old)
		}
	}

	m.logger.Info("subscribed to room",
		"phone", phone,
		"room", roomID,
		"room_name", room.Name())
	return nil
}

// UnsubscribeRoom clears the user's active room and tears down the
// listener. Unsubscribing a user with no active room is a no-op.
func (m *Manager) UnsubscribeRoom(ctx context.Context, phone string) error {
	lock := m.phoneLock(phone)
	lock.Lock()
	defer lock.Unlock()

	user, err := m.store.Get(ctx, phone)
	if err != nil {
		return fmt.Errorf("subscription: looking up %s: %w", phone, err)
	}
	if user == nil {
		return ErrNotRegistered
	}

	if user.ActiveRoom != nil {
		user.ActiveRoom = nil
		if err := m.store.Put(ctx, user); err != nil {
			return fmt.Errorf("subscription: saving %s: %w", phone, err)
		}
	}

	m.mu.Lock()
	old := m.listeners[phone]
	m.mu.Unlock()
	if old != nil {
		m.stop(old)
	}

	m.logger.Info("unsubscribed from room", "phone", phone)
	return nil
}

// DeleteUser tears down the user's listener and removes the record.
// Deleting an unknown phone is a no-op.
func (m *Manager) DeleteUser(ctx context.Context, phone string) error {
	lock := m.phoneLock(phone)
	lock.Lock()
	defer lock.Unlock()

	m.mu.Lock()
	old := m.listeners[phone]
	m.mu.Unlock()
	if old != nil {
		m.stop(old)
	}

	if err := m.store.Remove(ctx, phone); err != nil {
		return fmt.Errorf("subscription: removing %s: %w", phone, err)
	}
	m.logger.Info("deleted user", "phone", phone)
	return nil
}

// Reconnect restores listeners for every stored record with an active
// room. One record failing does not abort the rest; each failure is
// logged and counted in the returned error.
func (m *Manager) Reconnect(ctx context.Context) error {
	users, err := m.store.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("subscription: listing users: %w", err)
	}

	failed := 0
	attached := 0
	for _, user := range users {
		if user.ActiveRoom == nil {
			continue
		}
		if err := m.reconnectOne(ctx, user); err != nil {
			failed++
			m.logger.Warn("reconnect failed for user",
				"phone", user.Phone,
				"room", user.ActiveRoom.ID,
				"error", err)
			continue
		}
		attached++
	}

	m.logger.Info("reconnect complete", "attached", attached, "failed", failed)
	if failed > 0 {
		return fmt.Errorf("subscription: reconnect: %d of %d listeners failed to attach", failed, attached+failed)
	}
	return nil
}

func (m *Manager) reconnectOne(ctx context.Context, user *record.User) error {
	lock := m.phoneLock(user.Phone)
	lock.Lock()
	defer lock.Unlock()

	m.mu.Lock()
	existing := m.listeners[user.Phone]
	m.mu.Unlock()
	if existing != nil && existing.roomID == user.ActiveRoom.ID {
		return nil
	}

	fresh, err := m.attach(ctx, user, user.ActiveRoom.ID)
	if err != nil {
		return err
	}
	m.register(fresh)
	if existing != nil {
		m.stop(existing)
	}
	return nil
}

// Stats reports the number of live listeners.
func (m *Manager) Stats() (activeListeners int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.listeners)
}

// Close tears down every listener and waits for their goroutines. The
// manager cannot be used afterwards.
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	stopping := make([]*listener, 0, len(m.listeners))
	for _, l := range m.listeners {
		stopping = append(stopping, l)
	}
	m.mu.Unlock()

	for _, l := range stopping {
		l.cancel()
	}
	m.wg.Wait()
}

// attach looks up the room and starts a listener on it. The listener
// is not yet registered; callers register it once the record change
// is persisted.
func (m *Manager) attach(ctx context.Context, user *record.User, roomID string) (*listener, error) {
	room, err := m.chat.FindRoom(ctx, user.Token, roomID)
	if err != nil {
		return nil, fmt.Errorf("subscription: finding room %s: %w", roomID, err)
	}
	return m.listen(user.Phone, roomID, room)
}

// listen opens the room's event stream and starts the listener
// goroutine.
func (m *Manager) listen(phone, roomID string, room chat.Room) (*listener, error) {
	streamCtx, cancel := context.WithCancel(context.Background())
	events, err := room.Stream(streamCtx)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("subscription: opening stream for room %s: %w", roomID, err)
	}

	l := &listener{
		id:     uuid.NewString(),
		phone:  phone,
		roomID: roomID,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	m.wg.Add(1)
	go m.run(streamCtx, l, events)

	m.logger.Debug("listener attached",
		"listener", l.id,
		"phone", l.phone,
		"room", l.roomID)
	return l, nil
}

// register installs l as the phone's listener, replacing any previous
// entry.
func (m *Manager) register(l *listener) {
	m.mu.Lock()
	m.listeners[l.phone] = l
	m.mu.Unlock()
}

// stop cancels l's stream and waits for its goroutine to exit.
func (m *Manager) stop(l *listener) {
	l.cancel()
	<-l.done
}

// run drains the room's event stream until it closes, forwarding
// create events. On exit it deregisters itself unless another
// listener has already replaced it.
func (m *Manager) run(ctx context.Context, l *listener, events <-chan chat.Event) {
	defer m.wg.Done()
	defer close(l.done)
	defer func() {
		m.mu.Lock()
		if m.listeners[l.phone] == l {
			delete(m.listeners, l.phone)
		}
		m.mu.Unlock()
		m.logger.Debug("listener stopped",
			"listener", l.id,
			"phone", l.phone,
			"room", l.roomID)
	}()

	for event := range events {
		if event.Operation != chat.OperationCreate {
			continue
		}
		m.deliver(ctx, l, event)
	}
}

// deliver re-reads the user's record so keyword edits apply to events
// already in flight, then hands the event to the forwarder.
func (m *Manager) deliver(ctx context.Context, l *listener, event chat.Event) {
	eventCtx, cancel := context.WithTimeout(ctx, deliverTimeout)
	defer cancel()

	user, err := m.store.Get(eventCtx, l.phone)
	if err != nil {
		m.logger.Warn("dropping event, record lookup failed",
			"listener", l.id,
			"phone", l.phone,
			"error", err)
		return
	}
	if user == nil || user.ActiveRoom == nil || user.ActiveRoom.ID != l.roomID {
		// The subscription moved or vanished while this event was in
		// flight.
		return
	}

	m.forwarder.RouteOutbound(eventCtx, user, event)
}
