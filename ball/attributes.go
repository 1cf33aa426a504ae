// Package ball drives the kick-ball over a single-request-at-a-time
// attribute transport.
package ball

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// idTemplate is the Bluetooth base UUID; the 4-digit code replaces XXXX.
const idTemplate = "0000XXXX-0000-1000-8000-00805F9B34FB"

// Attribute codes of the ball.
const (
	ServiceCode = "FFF0"
	CommandCode = "FFF1"
	DataCode    = "FFF2"
	KickCode    = "FFF3"
	BatteryCode = "2A19"
)

var (
	ServiceID = MustDeriveID(ServiceCode)
	CommandID = MustDeriveID(CommandCode)
	DataID    = MustDeriveID(DataCode)
	KickID    = MustDeriveID(KickCode)
	BatteryID = MustDeriveID(BatteryCode)
)

// Attributes lists the characteristics a session expects to discover.
var Attributes = []uuid.UUID{CommandID, DataID, KickID, BatteryID}

// streamed lists the attributes the ball pushes without being asked.
var streamed = []uuid.UUID{KickID, DataID}

// DeriveID substitutes a 4-hex-digit code into the base identifier.
func DeriveID(code string) (uuid.UUID, error) {
	if len(code) != 4 {
		return uuid.Nil, fmt.Errorf("attribute code %q: want 4 hex digits", code)
	}
	id, err := uuid.Parse(strings.Replace(idTemplate, "XXXX", code, 1))
	if err != nil {
		return uuid.Nil, fmt.Errorf("attribute code %q: %w", code, err)
	}
	return id, nil
}

// MustDeriveID is like DeriveID but panics on an invalid code.
func MustDeriveID(code string) uuid.UUID {
	id, err := DeriveID(code)
	if err != nil {
		panic(err)
	}
	return id
}

// IsAttribute reports whether id is one of the ball's characteristics.
func IsAttribute(id uuid.UUID) bool {
	for _, a := range Attributes {
		if a == id {
			return true
		}
	}
	return false
}

// AttributeName returns a short label for logging.
func AttributeName(id uuid.UUID) string {
	switch id {
	case CommandID:
		return "command"
	case DataID:
		return "data"
	case KickID:
		return "kick"
	case BatteryID:
		return "battery"
	case ServiceID:
		return "service"
	}
	return id.String()
}
