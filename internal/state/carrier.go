package state

import (
	"github.com/bombwatch/extension/internal/entity"
	"github.com/bombwatch/extension/internal/memory"
	"github.com/bombwatch/extension/internal/schema"
	"github.com/bombwatch/extension/pkg/core"
)

// BombCarrier derives who carries the bomb. Unowned bombs (lying on the
// ground) are skipped; the first owned one determines the result.
func BombCarrier(d Deps) (core.BombCarrier, error) {
	for _, id := range d.Entities.Entities() {
		match, err := d.isClass(id, d.Layout.Classes.C4)
		if err != nil {
			return core.BombCarrier{}, err
		}
		if !match {
			continue
		}

		if id.Address == 0 {
			return core.BombCarrier{}, &ResolutionError{Hop: "c4 entity", Entity: id.Index, Err: memory.ErrNullPointer}
		}

		owner, err := schema.NewBaseEntityView(d.Memory, &d.Layout, id.Address).OwnerEntity()
		if err != nil {
			return core.BombCarrier{}, entityErr(id.Index, err)
		}
		if !owner.Valid() {
			continue
		}

		ownerID, ok := d.Entities.Resolve(owner)
		if !ok {
			// owner left between ticks
			continue
		}
		if ownerID.Address == 0 {
			return core.BombCarrier{}, &ResolutionError{Hop: "owner pawn", Entity: id.Index, Err: memory.ErrNullPointer}
		}

		pawn := schema.NewPawnView(d.Memory, &d.Layout, ownerID.Address)
		controller, err := pawn.Controller()
		if err != nil {
			return core.BombCarrier{}, entityErr(ownerID.Index, err)
		}
		team, err := pawn.TeamNum()
		if err != nil {
			return core.BombCarrier{}, entityErr(ownerID.Index, err)
		}

		entityID := owner.Index
		return core.BombCarrier{
			EntityID: &entityID,
			Name:     d.carrierName(controller),
			TeamID:   &team,
		}, nil
	}

	return core.BombCarrier{}, nil
}

// carrierName is best effort: any failure along the controller chain yields nil.
func (d Deps) carrierName(controller entity.Handle) *string {
	if !controller.Valid() {
		return nil
	}
	id, ok := d.Entities.Resolve(controller)
	if !ok || id.Address == 0 {
		return nil
	}
	buf, err := schema.NewControllerView(d.Memory, &d.Layout, id.Address).PlayerName()
	if err != nil {
		return nil
	}
	name, ok := PlayerName(buf)
	if !ok {
		return nil
	}
	return &name
}
