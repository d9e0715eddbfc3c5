package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/event-admin/internal/domain"
)

// ActorDirectory resolves identities across the three actor tables.
type ActorDirectory struct {
	staff     StaffRepository
	ministers MinisterRepository
	guests    GuestRepository
}

// NewActorDirectory builds a directory over the per-kind repositories.
func NewActorDirectory(staff StaffRepository, ministers MinisterRepository, guests GuestRepository) *ActorDirectory {
	return &ActorDirectory{staff: staff, ministers: ministers, guests: guests}
}

// LoadActorByID returns the current identity of the actor, or (nil, nil) when
// no such actor exists. Ids are UUIDs; anything else cannot exist.
func (d *ActorDirectory) LoadActorByID(ctx context.Context, kind domain.ActorKind, id string) (*domain.Identity, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}

	var (
		identity *domain.Identity
		err      error
	)
	switch kind {
	case domain.ActorKindStaff:
		var staff *domain.StaffMember
		if staff, err = d.staff.GetByID(ctx, id); err == nil {
			identity = staff.Identity()
		}
	case domain.ActorKindMinister:
		var minister *domain.Minister
		if minister, err = d.ministers.GetByID(ctx, id); err == nil {
			identity = minister.Identity()
		}
	case domain.ActorKindGuest:
		var guest *domain.Guest
		if guest, err = d.guests.GetByID(ctx, id); err == nil {
			identity = guest.Identity()
		}
	default:
		return nil, fmt.Errorf("unknown actor kind %q", kind)
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return identity, nil
}
