package common

import (
	"github.com/google/uuid"
)

// NewEpisodeID generates a unique episode ID with the "ep_" prefix
// Format: ep_<uuid>
func NewEpisodeID() string {
	return "ep_" + uuid.New().String()
}

// NewInsightID generates a unique insight ID with the "ins_" prefix
func NewInsightID() string {
	return "ins_" + uuid.New().String()
}

// NewSessionID generates a unique listening session ID with the "ls_" prefix
func NewSessionID() string {
	return "ls_" + uuid.New().String()
}
