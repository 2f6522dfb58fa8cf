package core

import "github.com/google/uuid"

// ID identifies a GPU resource across its lifetime, including recreations.
type ID = uuid.UUID

// NewID returns a random identifier.
func NewID() ID {
	return uuid.New()
}

// ShortID is the first block of an ID, handy in log lines.
func ShortID(id ID) string {
	return id.String()[:8]
}
