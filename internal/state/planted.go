package state

import (
	"errors"
	"fmt"

	"github.com/bombwatch/extension/internal/entity"
	"github.com/bombwatch/extension/internal/memory"
	"github.com/bombwatch/extension/internal/schema"
	"github.com/bombwatch/extension/pkg/core"
)

// PlantedC4 derives the planted bomb snapshot. The first activated planted
// bomb in directory order wins; with none, the NotPlanted snapshot is returned.
func PlantedC4(d Deps) (core.PlantedC4, error) {
	now, err := d.Clock.CurrentTime()
	if err != nil {
		return core.PlantedC4{}, err
	}

	for _, id := range d.Entities.Entities() {
		match, err := d.isClass(id, d.Layout.Classes.PlantedC4)
		if err != nil {
			return core.PlantedC4{}, err
		}
		if !match {
			continue
		}

		if id.Address == 0 {
			return core.PlantedC4{}, &ResolutionError{Hop: "planted c4 entity", Entity: id.Index, Err: memory.ErrNullPointer}
		}
		bomb := schema.NewPlantedC4View(d.Memory, &d.Layout, id.Address)

		activated, err := bomb.C4Activated()
		if err != nil {
			return core.PlantedC4{}, entityErr(id.Index, err)
		}
		if !activated {
			// dropped but not yet armed
			continue
		}

		return d.plantedC4(id, bomb, now)
	}

	return core.NotPlantedC4(), nil
}

func (d Deps) plantedC4(id entity.Identity, bomb schema.PlantedC4View, now float32) (core.PlantedC4, error) {
	site, err := bomb.BombSite()
	if err != nil {
		return core.PlantedC4{}, entityErr(id.Index, err)
	}

	node, err := bomb.GameSceneNode()
	if errors.Is(err, memory.ErrNullPointer) {
		return core.PlantedC4{}, &ResolutionError{Hop: "m_pGameSceneNode", Entity: id.Index, Err: err}
	} else if err != nil {
		return core.PlantedC4{}, entityErr(id.Index, err)
	}
	origin, err := node.AbsOrigin()
	if err != nil {
		return core.PlantedC4{}, entityErr(id.Index, err)
	}

	snap := core.PlantedC4{
		BombSite: core.BombSite(site),
		Position: core.Position3D{X: origin[0], Y: origin[1], Z: origin[2]},
	}

	// Order matters: a defused bomb keeps its blow time, which eventually passes.
	defused, err := bomb.BombDefused()
	if err != nil {
		return core.PlantedC4{}, entityErr(id.Index, err)
	}
	if defused {
		snap.State = core.PlantedState{Kind: core.Defused}
		return snap, nil
	}

	blow, err := bomb.C4Blow()
	if err != nil {
		return core.PlantedC4{}, entityErr(id.Index, err)
	}
	if blow <= now {
		snap.State = core.PlantedState{Kind: core.Detonated}
		return snap, nil
	}

	snap.State = core.ActiveState(blow - now)

	defusing, err := bomb.BeingDefused()
	if err != nil {
		return core.PlantedC4{}, entityErr(id.Index, err)
	}
	if !defusing {
		return snap, nil
	}

	defuser, err := d.defuser(id, bomb, now)
	if err != nil {
		return core.PlantedC4{}, err
	}
	snap.Defuser = defuser
	return snap, nil
}

// defuser follows bomb -> defuser pawn -> controller. Every hop is mandatory
// while the bomb reports it is being defused.
func (d Deps) defuser(id entity.Identity, bomb schema.PlantedC4View, now float32) (*core.BombDefuser, error) {
	countdown, err := bomb.DefuseCountDown()
	if err != nil {
		return nil, entityErr(id.Index, err)
	}

	pawnHandle, err := bomb.BombDefuser()
	if err != nil {
		return nil, entityErr(id.Index, err)
	}
	pawnID, err := d.resolve(pawnHandle, "m_hBombDefuser", id.Index)
	if err != nil {
		return nil, err
	}

	controllerHandle, err := schema.NewPawnView(d.Memory, &d.Layout, pawnID.Address).Controller()
	if err != nil {
		return nil, entityErr(pawnID.Index, err)
	}
	controllerID, err := d.resolve(controllerHandle, "m_hController", pawnID.Index)
	if err != nil {
		return nil, err
	}

	name, err := schema.NewControllerView(d.Memory, &d.Layout, controllerID.Address).PlayerName()
	if err != nil {
		return nil, entityErr(controllerID.Index, fmt.Errorf("defuser name: %w", err))
	}

	return &core.BombDefuser{
		TimeRemaining: countdown - now,
		PlayerName:    DisplayName(name),
	}, nil
}
