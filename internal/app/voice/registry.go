/*
Package voice contains the signaling relay for the shared voice room: the participant
registry, the roster broadcaster, directed message routing and the connection lifecycle.

This file defines the Registry, the single source of truth for who is in the room.
*/
package voice

import (
	"sync"
	"time"

	"voicerelay/internal/app/user"
)

// Participant is one logical room member backed by exactly one live connection.
type Participant struct {
	ConnectionID string
	UserID       string
	DisplayName  string
	AvatarID     string
	IsMuted      bool
	JoinedAt     time.Time
}

// Public returns the roster projection of p.
func (p Participant) Public() user.User {
	return user.User{
		ID:       p.UserID,
		Username: p.DisplayName,
		Avatar:   p.AvatarID,
		IsMuted:  p.IsMuted,
	}
}

// Registry maps connection ids to participants and preserves insertion order.
// It is safe for concurrent use; Snapshot never exposes internal state.
type Registry struct {
	mu      sync.RWMutex
	records map[string]*Participant
	order   []string

	now func() time.Time
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		records: make(map[string]*Participant),
		now:     time.Now,
	}
}

// Upsert inserts or overwrites the participant bound to connectionID. An overwritten record
// keeps its position in the listing order.
func (r *Registry) Upsert(connectionID, userID, displayName, avatarID string) Participant {
	p := Participant{
		ConnectionID: connectionID,
		UserID:       userID,
		DisplayName:  user.DisplayName(userID, displayName),
		AvatarID:     user.NormalizeAvatar(avatarID),
		JoinedAt:     r.now(),
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.records[connectionID]; !exists {
		r.order = append(r.order, connectionID)
	}
	r.records[connectionID] = &p

	return p
}

// Remove deletes the participant bound to connectionID. It returns false when there was none,
// so leave and disconnect may both call it.
func (r *Registry) Remove(connectionID string) (Participant, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.records[connectionID]
	if !ok {
		return Participant{}, false
	}

	delete(r.records, connectionID)
	for i, id := range r.order {
		if id == connectionID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}

	return *p, true
}

// SetMuted updates the mute flag in place. Unknown connections are ignored and false is returned.
func (r *Registry) SetMuted(connectionID string, muted bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.records[connectionID]
	if !ok {
		return false
	}
	p.IsMuted = muted
	return true
}

// Get returns a copy of the participant bound to connectionID.
func (r *Registry) Get(connectionID string) (Participant, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.records[connectionID]
	if !ok {
		return Participant{}, false
	}
	return *p, true
}

// FindByUserID returns the first participant, in listing order, claiming userID.
func (r *Registry) FindByUserID(userID string) (Participant, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, id := range r.order {
		if p := r.records[id]; p.UserID == userID {
			return *p, true
		}
	}
	return Participant{}, false
}

// Snapshot returns a point-in-time copy of all participants in listing order.
func (r *Registry) Snapshot() []Participant {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Participant, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, *r.records[id])
	}
	return out
}

// Len returns the number of participants.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.records)
}

// Roster projects a snapshot to the public user list.
func Roster(snapshot []Participant) []user.User {
	users := make([]user.User, 0, len(snapshot))
	for _, p := range snapshot {
		users = append(users, p.Public())
	}
	return users
}
