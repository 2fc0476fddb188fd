package scan

import (
	"context"
	"errors"
	"strings"
)

// Resolver failure modes beyond the store's not-found errors.
var (
	ErrNoOwnerLink  = errors.New("pet has no owner link")
	ErrNoOwnerEmail = errors.New("owner has no email address")
)

// Resolver maps a pet ID to its pet and owner records.
type Resolver struct {
	store Store
}

// NewResolver creates a resolver backed by the given store.
func NewResolver(store Store) *Resolver {
	return &Resolver{store: store}
}

// Resolve looks up the pet and its owner. It fails with ErrPetNotFound,
// ErrNoOwnerLink (before any owner lookup), ErrOwnerNotFound, or
// ErrNoOwnerEmail. Pure read, no side effects.
func (r *Resolver) Resolve(ctx context.Context, petID string) (Pet, Owner, error) {
	pet, err := r.store.Pet(ctx, petID)
	if err != nil {
		return Pet{}, Owner{}, err
	}

	if strings.TrimSpace(pet.OwnerID) == "" {
		return Pet{}, Owner{}, ErrNoOwnerLink
	}

	owner, err := r.store.Owner(ctx, pet.OwnerID)
	if err != nil {
		return Pet{}, Owner{}, err
	}

	if strings.TrimSpace(owner.Email) == "" {
		return Pet{}, Owner{}, ErrNoOwnerEmail
	}

	return pet, owner, nil
}
