package state

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bombwatch/extension/internal/entity"
	"github.com/bombwatch/extension/internal/memory"
	"github.com/bombwatch/extension/pkg/core"
)

func TestPlantedC4_NoBombEntity(t *testing.T) {
	w := newWorld(t)
	w.player(1, 65, 2, "alice")
	w.addC4(10, entity.InvalidHandle())

	got, err := PlantedC4(w.deps(30))
	require.NoError(t, err)
	assert.Equal(t, core.NotPlantedC4(), got)
	assert.Equal(t, core.NotPlanted, got.State.Kind)
	assert.Equal(t, core.BombSite(0), got.BombSite)
	assert.Equal(t, core.Position3D{}, got.Position)
	assert.Nil(t, got.Defuser)
}

func TestPlantedC4_EmptyDirectory(t *testing.T) {
	w := newWorld(t)

	got, err := PlantedC4(w.deps(0))
	require.NoError(t, err)
	assert.Equal(t, core.NotPlantedC4(), got)
}

func TestPlantedC4_NotActivatedIsSkipped(t *testing.T) {
	w := newWorld(t)
	w.addPlanted(20, bombFields{activated: false, blow: 40, site: 1})

	got, err := PlantedC4(w.deps(30))
	require.NoError(t, err)
	assert.Equal(t, core.NotPlantedC4(), got)
}

func TestPlantedC4_NotActivatedDoesNotNeedSceneNode(t *testing.T) {
	w := newWorld(t)
	w.addPlanted(20, bombFields{activated: false, nullSceneNode: true})

	got, err := PlantedC4(w.deps(30))
	require.NoError(t, err)
	assert.Equal(t, core.NotPlanted, got.State.Kind)
}

func TestPlantedC4_Active(t *testing.T) {
	w := newWorld(t)
	w.addPlanted(20, bombFields{
		activated: true,
		site:      1,
		blow:      40,
		position:  [3]float32{100, 200, -5},
	})

	got, err := PlantedC4(w.deps(30))
	require.NoError(t, err)
	assert.Equal(t, core.ActiveState(10), got.State)
	assert.Equal(t, core.BombSiteB, got.BombSite)
	assert.Equal(t, core.Position3D{X: 100, Y: 200, Z: -5}, got.Position)
	assert.Nil(t, got.Defuser)
}

func TestPlantedC4_TimeToDetonation(t *testing.T) {
	tests := []struct {
		name string
		now  float32
		blow float32
	}{
		{"start of round", 0, 40},
		{"mid countdown", 12.25, 40},
		{"almost out", 39.5, 40},
		{"late session", 1812.5, 1850},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := newWorld(t)
			w.addPlanted(20, bombFields{activated: true, blow: tt.blow})

			got, err := PlantedC4(w.deps(tt.now))
			require.NoError(t, err)
			require.Equal(t, core.Active, got.State.Kind)
			assert.Equal(t, tt.blow-tt.now, got.State.TimeToDetonation)
		})
	}
}

func TestPlantedC4_Detonated(t *testing.T) {
	w := newWorld(t)
	w.addPlanted(20, bombFields{activated: true, blow: 25, site: 0})

	got, err := PlantedC4(w.deps(30))
	require.NoError(t, err)
	assert.Equal(t, core.PlantedState{Kind: core.Detonated}, got.State)
	assert.Equal(t, core.BombSiteA, got.BombSite)
	assert.Nil(t, got.Defuser)
}

func TestPlantedC4_DetonatesAtBlowTime(t *testing.T) {
	w := newWorld(t)
	w.addPlanted(20, bombFields{activated: true, blow: 30})

	got, err := PlantedC4(w.deps(30))
	require.NoError(t, err)
	assert.Equal(t, core.Detonated, got.State.Kind)
}

func TestPlantedC4_DetonatedWinsOverBeingDefused(t *testing.T) {
	w := newWorld(t)
	// defuser handle would not resolve; it must never be followed
	w.addPlanted(20, bombFields{
		activated:    true,
		blow:         25,
		beingDefused: true,
		countdown:    26,
		defuser:      entity.NewHandle(99, 1),
	})

	got, err := PlantedC4(w.deps(30))
	require.NoError(t, err)
	assert.Equal(t, core.Detonated, got.State.Kind)
	assert.Nil(t, got.Defuser)
}

func TestPlantedC4_DefusedWinsOverEverything(t *testing.T) {
	tests := []struct {
		name         string
		blow         float32
		beingDefused bool
	}{
		{"blow time in future", 40, false},
		{"blow time passed", 25, false},
		{"still flagged as defusing", 40, true},
		{"blow passed and defusing", 25, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := newWorld(t)
			w.addPlanted(20, bombFields{
				activated:    true,
				defused:      true,
				site:         1,
				blow:         tt.blow,
				beingDefused: tt.beingDefused,
				defuser:      entity.NewHandle(99, 1),
				position:     [3]float32{1, 2, 3},
			})

			got, err := PlantedC4(w.deps(30))
			require.NoError(t, err)
			assert.Equal(t, core.PlantedState{Kind: core.Defused}, got.State)
			assert.Equal(t, core.BombSiteB, got.BombSite)
			assert.Equal(t, core.Position3D{X: 1, Y: 2, Z: 3}, got.Position)
			assert.Nil(t, got.Defuser)
		})
	}
}

func TestPlantedC4_BeingDefused(t *testing.T) {
	w := newWorld(t)
	pawn := w.player(3, 67, 3, "bob")
	w.addPlanted(20, bombFields{
		activated:    true,
		blow:         40,
		beingDefused: true,
		countdown:    35,
		defuser:      pawn.Handle(),
	})

	got, err := PlantedC4(w.deps(30))
	require.NoError(t, err)
	assert.Equal(t, core.ActiveState(10), got.State)
	require.NotNil(t, got.Defuser)
	assert.Equal(t, float32(5), got.Defuser.TimeRemaining)
	assert.Equal(t, "bob", got.Defuser.PlayerName)
}

func TestPlantedC4_DefuserNamePlaceholder(t *testing.T) {
	w := newWorld(t)

	unterminated := make([]byte, w.layout.Controller.PlayerNameLen)
	for i := range unterminated {
		unterminated[i] = 'x'
	}
	controller := w.addController(67, unterminated)
	pawn := w.addPawn(3, 3, controller.Handle())
	w.addPlanted(20, bombFields{
		activated:    true,
		blow:         40,
		beingDefused: true,
		countdown:    35,
		defuser:      pawn.Handle(),
	})

	got, err := PlantedC4(w.deps(30))
	require.NoError(t, err)
	require.NotNil(t, got.Defuser)
	assert.Equal(t, NamePlaceholder, got.Defuser.PlayerName)
}

func TestPlantedC4_UnresolvedDefuserIsFatal(t *testing.T) {
	w := newWorld(t)
	w.addPlanted(20, bombFields{
		activated:    true,
		blow:         40,
		beingDefused: true,
		countdown:    35,
		defuser:      entity.NewHandle(3, 7), // nothing lives at index 3
	})

	_, err := PlantedC4(w.deps(30))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnresolved)

	var re *ResolutionError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, "m_hBombDefuser", re.Hop)
	assert.Equal(t, uint32(20), re.Entity)
}

func TestPlantedC4_StaleControllerIsFatal(t *testing.T) {
	w := newWorld(t)
	controller := w.addController(67, []byte("carol\x00"))
	pawn := w.addPawn(3, 3, entity.NewHandle(controller.Index, controller.Generation+1))
	w.addPlanted(20, bombFields{
		activated:    true,
		blow:         40,
		beingDefused: true,
		countdown:    35,
		defuser:      pawn.Handle(),
	})

	_, err := PlantedC4(w.deps(30))
	require.Error(t, err)

	var re *ResolutionError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, "m_hController", re.Hop)
	assert.Equal(t, pawn.Index, re.Entity)
}

func TestPlantedC4_NullSceneNodeIsFatal(t *testing.T) {
	w := newWorld(t)
	w.addPlanted(20, bombFields{activated: true, blow: 40, nullSceneNode: true})

	_, err := PlantedC4(w.deps(30))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnresolved)
	assert.ErrorIs(t, err, memory.ErrNullPointer)
}

func TestPlantedC4_NullEntityPointerIsFatal(t *testing.T) {
	w := newWorld(t)
	w.table.Put(entity.Identity{Index: 20, Generation: 1, ClassInfo: classPlantedC4})

	_, err := PlantedC4(w.deps(30))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnresolved)
}

func TestPlantedC4_UnreadableBombPropagates(t *testing.T) {
	w := newWorld(t)
	w.table.Put(entity.Identity{Index: 20, Generation: 1, ClassInfo: classPlantedC4, Address: 0xDEAD0000})

	_, err := PlantedC4(w.deps(30))
	require.Error(t, err)
	assert.ErrorIs(t, err, memory.ErrUnreadable)
	assert.NotErrorIs(t, err, ErrUnresolved)
	assert.ErrorContains(t, err, "entity 20: C_PlantedC4.")
}

func TestPlantedC4_UnreadableDefuserPawnNamesEntity(t *testing.T) {
	w := newWorld(t)
	pawn := entity.Identity{Index: 7, Generation: 107, ClassInfo: classPawn, Address: 0xDEAD0000}
	w.table.Put(pawn)
	w.addPlanted(20, bombFields{
		activated:    true,
		beingDefused: true,
		blow:         40,
		countdown:    35,
		defuser:      pawn.Handle(),
	})

	_, err := PlantedC4(w.deps(30))
	require.Error(t, err)
	assert.ErrorIs(t, err, memory.ErrUnreadable)
	assert.ErrorContains(t, err, "entity 7: ")
}

func TestPlantedC4_ClockFailurePropagates(t *testing.T) {
	w := newWorld(t)
	w.addPlanted(20, bombFields{activated: true, blow: 40})

	deps := w.deps(0)
	deps.Clock = GlobalsClock{Memory: w.img, Globals: 0xBAD000, Offset: w.layout.Globals.CurrentTime}

	_, err := PlantedC4(deps)
	require.Error(t, err)
	assert.ErrorIs(t, err, memory.ErrUnreadable)
}

func TestPlantedC4_ClassLookupFailurePropagates(t *testing.T) {
	w := newWorld(t)
	w.addPlanted(20, bombFields{activated: true, blow: 40})
	w.classes.err = memory.ErrUnreadable

	_, err := PlantedC4(w.deps(30))
	require.Error(t, err)
	assert.ErrorIs(t, err, memory.ErrUnreadable)
}

func TestPlantedC4_FirstActivatedMatchWins(t *testing.T) {
	w := newWorld(t)
	w.addPlanted(5, bombFields{activated: false, site: 0, blow: 90})
	w.addPlanted(20, bombFields{activated: true, site: 1, blow: 40})
	w.addPlanted(30, bombFields{activated: true, site: 0, blow: 50})

	got, err := PlantedC4(w.deps(30))
	require.NoError(t, err)
	assert.Equal(t, core.BombSiteB, got.BombSite)
	assert.Equal(t, core.ActiveState(10), got.State)
}

func TestPlantedC4_Idempotent(t *testing.T) {
	w := newWorld(t)
	pawn := w.player(3, 67, 3, "bob")
	w.addPlanted(20, bombFields{
		activated:    true,
		blow:         40,
		beingDefused: true,
		countdown:    35,
		defuser:      pawn.Handle(),
	})

	first, err := PlantedC4(w.deps(30))
	require.NoError(t, err)
	second, err := PlantedC4(w.deps(30))
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
