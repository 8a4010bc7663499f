package instance

import "github.com/angelmondragon/tourbook-backend/pkg/env"

// GetID identifies the running process in logs. It prefers an explicit
// TOURBOOK_INSTANCE_ID, then the platform's dyno or host name.
func GetID(fallback string) string {
	if id, ok := env.First("TOURBOOK_INSTANCE_ID", "DYNO", "HOSTNAME"); ok {
		return id
	}
	return fallback
}
