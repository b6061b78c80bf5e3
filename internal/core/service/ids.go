package service

import (
	"strings"

	"github.com/google/uuid"
)

const (
	partSerialPrefix     = "P"
	aircraftSerialPrefix = "A"

	// Serial numbers carry 32 random bits, so collisions are rare but real.
	maxSerialAttempts = 5
)

func newID() string {
	return uuid.NewString()
}

// newSerial returns "<prefix>-" followed by eight upper-case hex characters.
func newSerial(prefix string) string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return prefix + "-" + strings.ToUpper(raw[:8])
}
