package state

import (
	"testing"

	"github.com/bombwatch/extension/internal/entity"
	"github.com/bombwatch/extension/internal/memory"
	"github.com/bombwatch/extension/internal/schema"
)

const (
	classPlantedC4  uint64 = 0xC100
	classC4         uint64 = 0xC200
	classPawn       uint64 = 0xC300
	classController uint64 = 0xC400

	objectSize = 0x2000
)

type fakeClasses struct {
	names map[uint64]string
	err   error
}

func (f fakeClasses) Lookup(classInfo uint64) (string, bool, error) {
	if f.err != nil {
		return "", false, f.err
	}
	name, ok := f.names[classInfo]
	return name, ok, nil
}

// world lays out fake entities in a memory image and a directory table.
type world struct {
	t       *testing.T
	layout  schema.Layout
	img     *memory.Image
	table   *entity.Table
	classes fakeClasses
	next    uint64
}

func newWorld(t *testing.T) *world {
	return &world{
		t:      t,
		layout: schema.DefaultLayout(),
		img:    memory.NewImage(),
		table:  entity.NewTable(),
		classes: fakeClasses{names: map[uint64]string{
			classPlantedC4:  "C_PlantedC4",
			classC4:         "C_C4",
			classPawn:       "C_CSPlayerPawn",
			classController: "CCSPlayerController",
		}},
		next: 0x100000,
	}
}

func (w *world) deps(now float32) Deps {
	return Deps{
		Memory:   w.img,
		Entities: w.table,
		Classes:  w.classes,
		Clock:    FixedClock(now),
		Layout:   w.layout,
	}
}

func (w *world) alloc() *memory.Builder {
	b := memory.NewBuilder(w.next, objectSize)
	w.next += 0x10000
	return b
}

func (w *world) add(index uint32, classInfo uint64, b *memory.Builder) entity.Identity {
	b.MapInto(w.img)
	id := entity.Identity{
		Index:      index,
		Generation: index + 100,
		ClassInfo:  classInfo,
		Address:    b.Base(),
	}
	w.table.Put(id)
	return id
}

func (w *world) addController(index uint32, name []byte) entity.Identity {
	b := w.alloc().Bytes(w.layout.Controller.PlayerName, name)
	return w.add(index, classController, b)
}

func (w *world) addPawn(index uint32, team uint8, controller entity.Handle) entity.Identity {
	b := w.alloc().
		U8(w.layout.BaseEntity.TeamNum, team).
		U32(w.layout.Pawn.Controller, controller.Raw())
	return w.add(index, classPawn, b)
}

type bombFields struct {
	activated     bool
	defused       bool
	beingDefused  bool
	site          int32
	blow          float32
	countdown     float32
	defuser       entity.Handle
	position      [3]float32
	nullSceneNode bool
}

func (w *world) addPlanted(index uint32, f bombFields) entity.Identity {
	b := w.alloc().
		Bool(w.layout.PlantedC4.C4Activated, f.activated).
		Bool(w.layout.PlantedC4.BombDefused, f.defused).
		Bool(w.layout.PlantedC4.BeingDefused, f.beingDefused).
		I32(w.layout.PlantedC4.BombSite, f.site).
		F32(w.layout.PlantedC4.C4Blow, f.blow).
		F32(w.layout.PlantedC4.DefuseCountDown, f.countdown).
		U32(w.layout.PlantedC4.BombDefuser, f.defuser.Raw())

	if !f.nullSceneNode {
		node := w.alloc().Vec3(w.layout.SceneNode.AbsOrigin, f.position[0], f.position[1], f.position[2])
		node.MapInto(w.img)
		b.U64(w.layout.BaseEntity.GameSceneNode, node.Base())
	}
	return w.add(index, classPlantedC4, b)
}

func (w *world) addC4(index uint32, owner entity.Handle) entity.Identity {
	b := w.alloc().U32(w.layout.BaseEntity.OwnerEntity, owner.Raw())
	return w.add(index, classC4, b)
}

// player adds a controller and its pawn and returns the pawn.
func (w *world) player(pawnIndex, controllerIndex uint32, team uint8, name string) entity.Identity {
	controller := w.addController(controllerIndex, append([]byte(name), 0))
	return w.addPawn(pawnIndex, team, controller.Handle())
}
