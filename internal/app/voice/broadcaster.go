/*
Package voice contains the signaling relay for the shared voice room.

This file holds the presence broadcaster: roster pushes, join and leave announcements and
the non-blocking fan-out they share. Everything here runs on the coordinator goroutine.
*/
package voice

import (
	"encoding/json"
)

// publishRoster sends the current roster to every open connection, joined or not.
func (r *Room) publishRoster() {
	msg, err := NewMessage(TypeUsersList, Roster(r.registry.Snapshot()))
	if err != nil {
		r.logger.Error().Err(err).Msg("Failed to build users-list message.")
		return
	}

	r.broadcast(msg, "")
}

// announceJoin tells everyone but the joiner that p arrived.
func (r *Room) announceJoin(p Participant) {
	msg, err := NewMessage(TypeUserJoined, UserEventPayload{
		UserID:   p.UserID,
		Username: p.DisplayName,
		Avatar:   p.AvatarID,
	})
	if err != nil {
		r.logger.Error().Err(err).Str("user_id", p.UserID).Msg("Failed to build user-joined message.")
		return
	}

	r.broadcast(msg, p.ConnectionID)
}

// announceLeave tells everyone but the leaver that p is gone.
func (r *Room) announceLeave(p Participant) {
	msg, err := NewMessage(TypeUserLeft, UserEventPayload{UserID: p.UserID})
	if err != nil {
		r.logger.Error().Err(err).Str("user_id", p.UserID).Msg("Failed to build user-left message.")
		return
	}

	r.broadcast(msg, p.ConnectionID)
}

// broadcast sends msg to every open connection except the one with id except.
func (r *Room) broadcast(msg Message, except string) {
	data, err := json.Marshal(msg)
	if err != nil {
		r.logger.Error().Err(err).Str("msg_type", string(msg.Type)).Msg("Error marshaling message for broadcast.")
		return
	}

	for id, c := range r.clients {
		if id == except {
			continue
		}
		r.enqueue(c, data)
	}
}

// sendTo sends msg to a single connection.
func (r *Room) sendTo(c *Client, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		r.logger.Error().Err(err).Str("msg_type", string(msg.Type)).Msg("Error marshaling message.")
		return
	}

	r.enqueue(c, data)
}

// enqueue never blocks. A full queue schedules the client for eviction once the current
// event has been handled.
func (r *Room) enqueue(c *Client, data []byte) {
	if c.evicting {
		return
	}

	select {
	case c.send <- data:
	default:
		c.evicting = true
		r.evictions = append(r.evictions, c)

		r.logger.Warn().
			Str("conn_id", c.id).
			Int("queue_len", len(c.send)).
			Msg("Client send channel full, scheduling eviction.")
	}
}
