/*
Package voice contains the signaling relay for the shared voice room.

This file routes directed negotiation messages to a single participant and relays chat and
typing notifications to everyone else.
*/
package voice

import (
	"time"

	"voicerelay/internal/pkg/errs"
)

// routeDirected delivers an offer, answer or ICE candidate to the first participant whose
// userId matches msg.To. The payload is forwarded untouched, and a legacy key used by the
// sender is mirrored in the output.
func (r *Room) routeDirected(sender *Client, msg Inbound) {
	from := msg.From
	if from == "" {
		if p, ok := r.registry.Get(sender.id); ok {
			from = p.UserID
		}
	}

	var target *Client
	if p, ok := r.registry.FindByUserID(msg.To); ok {
		target = r.clients[p.ConnectionID]
	}

	if target == nil {
		r.logger.Debug().
			Str("conn_id", sender.id).
			Str("msg_type", string(msg.Type)).
			Str("to", msg.To).
			Msg("Directed message target not found.")

		r.sendError(sender, errs.NewError(errs.ErrTargetNotFound, msg.To), msg.To)
		return
	}

	out, err := NewMessage(msg.Type, NewRelayedPayload(msg, from))
	if err != nil {
		r.logger.Error().Err(err).Str("msg_type", string(msg.Type)).Msg("Failed to build directed message.")
		return
	}

	r.sendTo(target, out)
}

// relayRoomWide forwards chat and typing payloads verbatim to every connection but the sender.
func (r *Room) relayRoomWide(sender *Client, msg Inbound) {
	r.broadcast(Message{
		Type:      msg.Type,
		Payload:   msg.Verbatim,
		Timestamp: time.Now().UnixMilli(),
	}, sender.id)
}

// sendError reports err to c alone. Errors outside the code table are sent as ErrUnknown.
func (r *Room) sendError(c *Client, err error, to string) {
	customErr := errs.As(err)
	if customErr == nil {
		customErr = errs.NewError(errs.ErrUnknown)
	}

	msg, buildErr := NewMessage(TypeError, ErrorPayload{
		Code:    customErr.Code,
		Message: customErr.Message,
		To:      to,
	})
	if buildErr != nil {
		r.logger.Error().Err(buildErr).Msg("Failed to build error message.")
		return
	}

	r.sendTo(c, msg)
}
