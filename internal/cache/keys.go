package cache

import (
	"fmt"

	"github.com/google/uuid"
)

func RunStatusKey(runID uuid.UUID) string {
	return fmt.Sprintf("run:%s", runID)
}

func RateLimitKey(keyPrefix string) string {
	return fmt.Sprintf("ratelimit:%s", keyPrefix)
}

// LastTickKey holds the JSON summary of the most recent scheduler tick.
const LastTickKey = "scheduler:last_tick"
