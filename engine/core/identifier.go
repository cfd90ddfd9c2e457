package core

import (
	"github.com/google/uuid"
)

// ResourceID identifies a GPU resource for the lifetime of the process.
type ResourceID uuid.UUID

var NilResourceID = ResourceID(uuid.Nil)

func NewResourceID() ResourceID {
	return ResourceID(uuid.New())
}

func (id ResourceID) String() string {
	return uuid.UUID(id).String()
}

// Short returns the first 8 hex digits, enough to tell resources apart in logs.
func (id ResourceID) Short() string {
	return id.String()[:8]
}
