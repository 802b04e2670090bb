package tracker

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/bombwatch/extension/internal/cache"
	"github.com/bombwatch/extension/internal/entity"
	"github.com/bombwatch/extension/internal/memory"
	"github.com/bombwatch/extension/internal/schema"
	"github.com/bombwatch/extension/internal/state"
)

const (
	classBase   uint64 = 0x10000
	globalsBase uint64 = 0x20000
	objectBase  uint64 = 0x100000
	objectSize         = 0x2000
)

// fixture lays out a small game world whose class names resolve through real
// class-info chains, the way the live process does.
type fixture struct {
	layout  schema.Layout
	img     *memory.Image
	table   *entity.Table
	classes map[string]uint64
	globals *memory.Builder
	objects map[uint32]*memory.Builder
	next    uint64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		layout:  schema.DefaultLayout(),
		img:     memory.NewImage(),
		table:   entity.NewTable(),
		classes: map[string]uint64{},
		objects: map[uint32]*memory.Builder{},
		next:    objectBase,
	}

	base := classBase
	for _, name := range []string{"C_PlantedC4", "C_C4", "C_CSPlayerPawn", "CCSPlayerController"} {
		memory.NewBuilder(base, 0x300).
			U64(f.layout.ClassInfo.Binding, base+0x100).
			U64(0x100+f.layout.ClassInfo.Name, base+0x200).
			CString(0x200, name).
			MapInto(f.img)
		f.classes[name] = base
		base += 0x1000
	}

	f.globals = memory.NewBuilder(globalsBase, 0x100)
	f.globals.MapInto(f.img)
	return f
}

func (f *fixture) setTime(now float32) {
	f.globals.F32(f.layout.Globals.CurrentTime, now)
}

func (f *fixture) deps() state.Deps {
	return state.Deps{
		Memory:   f.img,
		Entities: f.table,
		Classes:  cache.NewClassNameCache(f.img, f.layout.ClassInfo),
		Clock:    state.GlobalsClock{Memory: f.img, Globals: globalsBase, Offset: f.layout.Globals.CurrentTime},
		Layout:   f.layout,
	}
}

func (f *fixture) source() Source {
	return Source{Memory: f.img, Entities: f.table, Globals: globalsBase}
}

func (f *fixture) add(index uint32, class string) *memory.Builder {
	b := memory.NewBuilder(f.next, objectSize)
	f.next += 0x10000
	b.MapInto(f.img)
	f.objects[index] = b
	f.table.Put(entity.Identity{
		Index:      index,
		Generation: index + 100,
		ClassInfo:  f.classes[class],
		Address:    b.Base(),
	})
	return b
}

func handleOf(index uint32) entity.Handle {
	return entity.NewHandle(index, index+100)
}

// player adds a controller and a pawn and returns the pawn handle.
func (f *fixture) player(pawn, controller uint32, team uint8, name string) entity.Handle {
	f.add(controller, "CCSPlayerController").CString(f.layout.Controller.PlayerName, name)
	f.add(pawn, "C_CSPlayerPawn").
		U8(f.layout.BaseEntity.TeamNum, team).
		U32(f.layout.Pawn.Controller, handleOf(controller).Raw())
	return handleOf(pawn)
}

func (f *fixture) c4(index uint32, owner entity.Handle) *memory.Builder {
	return f.add(index, "C_C4").U32(f.layout.BaseEntity.OwnerEntity, owner.Raw())
}

func (f *fixture) setOwner(index uint32, owner entity.Handle) {
	f.objects[index].U32(f.layout.BaseEntity.OwnerEntity, owner.Raw())
}

// planted adds an inactive planted bomb on site B at (1, 2, 3).
func (f *fixture) planted(index uint32) *memory.Builder {
	node := memory.NewBuilder(f.next, 0x100).Vec3(f.layout.SceneNode.AbsOrigin, 1, 2, 3)
	f.next += 0x10000
	node.MapInto(f.img)

	return f.add(index, "C_PlantedC4").
		I32(f.layout.PlantedC4.BombSite, 1).
		U64(f.layout.BaseEntity.GameSceneNode, node.Base()).
		U32(f.layout.PlantedC4.BombDefuser, entity.InvalidHandle().Raw())
}

func bufferLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})), &buf
}
