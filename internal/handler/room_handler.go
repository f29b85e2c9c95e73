/*
Package handler provides HTTP handler functions for health checks, room statistics and ICE
server discovery.
*/
package handler

import (
	"net/http"

	"github.com/pion/webrtc/v4"

	"voicerelay/internal/pkg/resp"
)

// ICEServersResponse lists the rendezvous servers clients should use. The relay never
// contacts them itself.
type ICEServersResponse struct {
	ICEServers []webrtc.ICEServer `json:"iceServers"`
}

// HandleHealth reports liveness.
func HandleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data := map[string]string{
			"status":  "ok",
			"service": "Voice Relay",
		}
		resp.RespondSuccess(w, r, data)
	}
}

// HandleGetStats returns connection and participant counts and the current roster.
func HandleGetStats(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp.RespondSuccess(w, r, deps.Manager.Stats())
	}
}

// HandleGetICEServers returns the configured STUN/TURN servers.
func HandleGetICEServers(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		servers := deps.Config.ICEServers
		if servers == nil {
			servers = []webrtc.ICEServer{}
		}

		resp.RespondSuccess(w, r, ICEServersResponse{ICEServers: servers})
	}
}
