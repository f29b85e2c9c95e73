/*
Package randx provides identifiers for relay connections.

Connection IDs are opaque to clients and never leave the server; they key the
participant registry and the coordinator's connection set.
*/
package randx

import (
	"github.com/google/uuid"
)

// ConnectionID generates a UUID v4 string identifying one live transport connection.
func ConnectionID() string {
	return uuid.NewString()
}
