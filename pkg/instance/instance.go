package instance

import (
	"os"

	"github.com/jemi-ng/pickup-backend/pkg/env"
)

const fallbackID = "local"

// GetID identifies this process in logs: JEMI_INSTANCE_ID, then the platform
// dyno name, then the hostname.
func GetID() string {
	if id := env.First("JEMI_INSTANCE_ID", "DYNO"); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return fallbackID
}
