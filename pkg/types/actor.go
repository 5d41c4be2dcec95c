package types

import (
	"github.com/google/uuid"

	"github.com/balcaopos/balcao-backend/pkg/enums"
)

// Actor identifies who performs a mutation, with the network provenance the
// transport layer captured.
type Actor struct {
	ID          uuid.UUID
	Role        enums.UserRole
	SourceAddr  string
	ClientAgent string
}
