/*
Package voice contains the signaling relay for the shared voice room.

This file defines the Manager, which wires the configuration to the registry and the room,
starts the coordinator and the periodic diagnostics log, and shuts both down.
*/
package voice

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"voicerelay/internal/app/user"
	"voicerelay/internal/configs"
	"voicerelay/internal/pkg/logx"
	"voicerelay/internal/pkg/randx"
)

// RoomName is the name of the single shared room.
const RoomName = "voice"

// Stats is a point-in-time view of the room.
type Stats struct {
	Connections  int         `json:"connections"`
	Participants int         `json:"participants"`
	Users        []user.User `json:"users"`
}

// Manager owns the shared room and its background loops.
type Manager struct {
	config   *configs.AppConfig
	registry *Registry
	room     *Room

	// stopDiagnostics ends the diagnostics loop.
	stopDiagnostics chan struct{}
	shutdownOnce    sync.Once

	// wg waits for the coordinator and the diagnostics loop during shutdown.
	wg sync.WaitGroup

	logger zerolog.Logger
}

// NewManager constructs the room from cfg and starts it.
func NewManager(cfg *configs.AppConfig) *Manager {
	registry := NewRegistry()

	m := &Manager{
		config:   cfg,
		registry: registry,
		room: NewRoom(RoomName, registry, RoomOptions{
			UniqueUserIDs: cfg.UniqueUserIDs,
		}),
		stopDiagnostics: make(chan struct{}),
		logger:          logx.Component("manager"),
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.room.Run()
	}()

	if cfg.DiagnosticsInterval > 0 {
		m.wg.Add(1)
		go m.runDiagnosticsLoop(cfg.DiagnosticsInterval)
	}

	m.logger.Info().
		Bool("unique_user_ids", cfg.UniqueUserIDs).
		Dur("diagnostics_interval", cfg.DiagnosticsInterval).
		Msg("Voice room started.")

	return m
}

// Room returns the shared room.
func (m *Manager) Room() *Room {
	return m.room
}

// NewClient creates a client for conn with a fresh connection id and the configured limits.
func (m *Manager) NewClient(conn *websocket.Conn) *Client {
	return NewClient(m.room, conn, randx.ConnectionID(), ClientOptions{
		SendQueueSize:  m.config.SendQueueSize,
		MaxMessageSize: m.config.MaxMessageSize,
		MessageRate:    m.config.MessageRate,
		MessageBurst:   m.config.MessageBurst,
	})
}

// Stats reports connection and participant counts along with the roster.
func (m *Manager) Stats() Stats {
	return m.room.Stats()
}

// runDiagnosticsLoop logs who is in the room on every tick while the room is not empty.
func (m *Manager) runDiagnosticsLoop(interval time.Duration) {
	defer m.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.logDiagnostics()

		case <-m.stopDiagnostics:
			return
		}
	}
}

func (m *Manager) logDiagnostics() {
	snapshot := m.registry.Snapshot()
	if len(snapshot) == 0 {
		return
	}

	names := make([]string, 0, len(snapshot))
	for _, p := range snapshot {
		names = append(names, p.DisplayName)
	}

	m.logger.Info().
		Int("participants", len(snapshot)).
		Strs("usernames", names).
		Msg("Voice room diagnostics.")
}

// Shutdown stops the diagnostics loop and the room, closing every connection, and waits
// for both to exit.
func (m *Manager) Shutdown() {
	m.shutdownOnce.Do(func() {
		m.logger.Info().Msg("Shutting down voice room...")

		close(m.stopDiagnostics)
		m.room.Stop()
		m.wg.Wait()

		m.logger.Info().Msg("Manager shutdown complete.")
	})
}
