package dues

import (
	"slices"

	"github.com/google/uuid"
)

// Capabilities understood by the ledger
const (
	CapabilitySelf         = "self"
	CapabilityFinanceAdmin = "finance-admin"
)

// Actor is the already-authenticated caller of a ledger operation
type Actor struct {
	UserID       uuid.UUID
	Capabilities []string
}

// SystemActor is used by scheduled jobs
func SystemActor() Actor {
	return Actor{Capabilities: []string{CapabilityFinanceAdmin}}
}

// Has reports whether the actor carries capability
func (a Actor) Has(capability string) bool {
	return slices.Contains(a.Capabilities, capability)
}

// IsFinanceAdmin reports whether the actor may manage any owner's dues
func (a Actor) IsFinanceAdmin() bool {
	return a.Has(CapabilityFinanceAdmin)
}

// CanActFor allows an owner to act on their own dues and a finance admin
// to act on anyone's.
func (a Actor) CanActFor(ownerID uuid.UUID) bool {
	if a.IsFinanceAdmin() {
		return true
	}
	return a.UserID != uuid.Nil && a.UserID == ownerID
}

// AuthorizeFor returns ErrUnauthorized unless the actor can act for ownerID
func (a Actor) AuthorizeFor(ownerID uuid.UUID) error {
	if !a.CanActFor(ownerID) {
		return ErrUnauthorized
	}
	return nil
}

// RequireAdmin returns ErrUnauthorized unless the actor is a finance admin
func (a Actor) RequireAdmin() error {
	if !a.IsFinanceAdmin() {
		return ErrUnauthorized
	}
	return nil
}
