package schema

import (
	"fmt"

	"github.com/bombwatch/extension/internal/entity"
	"github.com/bombwatch/extension/internal/memory"
)

// view is a typed window over an object in remote memory. The caller is
// responsible for checking the object's class before building a view.
type view struct {
	mem    memory.Reader
	layout *Layout
	addr   uint64
}

func (v view) Address() uint64 { return v.addr }

func fieldErr(class, field string, err error) error {
	return fmt.Errorf("%s.%s: %w", class, field, err)
}

func (v view) handle(class, field string, off uint64) (entity.Handle, error) {
	raw, err := memory.ReadU32(v.mem, v.addr+off)
	if err != nil {
		return entity.Handle{}, fieldErr(class, field, err)
	}
	return entity.HandleFromRaw(raw), nil
}

func (v view) boolean(class, field string, off uint64) (bool, error) {
	b, err := memory.ReadBool(v.mem, v.addr+off)
	if err != nil {
		return false, fieldErr(class, field, err)
	}
	return b, nil
}

func (v view) f32(class, field string, off uint64) (float32, error) {
	f, err := memory.ReadF32(v.mem, v.addr+off)
	if err != nil {
		return 0, fieldErr(class, field, err)
	}
	return f, nil
}

// BaseEntityView reads C_BaseEntity fields.
type BaseEntityView struct{ view }

func NewBaseEntityView(mem memory.Reader, layout *Layout, addr uint64) BaseEntityView {
	return BaseEntityView{view{mem: mem, layout: layout, addr: addr}}
}

// GameSceneNode follows m_pGameSceneNode. A null pointer yields memory.ErrNullPointer.
func (v BaseEntityView) GameSceneNode() (SceneNodeView, error) {
	p, err := memory.ReadPointer(v.mem, v.addr+v.layout.BaseEntity.GameSceneNode)
	if err != nil {
		return SceneNodeView{}, fieldErr("C_BaseEntity", "m_pGameSceneNode", err)
	}
	return SceneNodeView{view{mem: v.mem, layout: v.layout, addr: p}}, nil
}

func (v BaseEntityView) TeamNum() (uint8, error) {
	n, err := memory.ReadU8(v.mem, v.addr+v.layout.BaseEntity.TeamNum)
	if err != nil {
		return 0, fieldErr("C_BaseEntity", "m_iTeamNum", err)
	}
	return n, nil
}

func (v BaseEntityView) OwnerEntity() (entity.Handle, error) {
	return v.handle("C_BaseEntity", "m_hOwnerEntity", v.layout.BaseEntity.OwnerEntity)
}

// SceneNodeView reads CGameSceneNode fields.
type SceneNodeView struct{ view }

func (v SceneNodeView) AbsOrigin() ([3]float32, error) {
	vec, err := memory.ReadVec3(v.mem, v.addr+v.layout.SceneNode.AbsOrigin)
	if err != nil {
		return vec, fieldErr("CGameSceneNode", "m_vecAbsOrigin", err)
	}
	return vec, nil
}

// PawnView reads C_BasePlayerPawn fields. It embeds the base entity view.
type PawnView struct{ BaseEntityView }

func NewPawnView(mem memory.Reader, layout *Layout, addr uint64) PawnView {
	return PawnView{NewBaseEntityView(mem, layout, addr)}
}

func (v PawnView) Controller() (entity.Handle, error) {
	return v.handle("C_BasePlayerPawn", "m_hController", v.layout.Pawn.Controller)
}

// ControllerView reads CBasePlayerController fields.
type ControllerView struct{ view }

func NewControllerView(mem memory.Reader, layout *Layout, addr uint64) ControllerView {
	return ControllerView{view{mem: mem, layout: layout, addr: addr}}
}

// PlayerName returns the raw fixed-size name buffer.
func (v ControllerView) PlayerName() ([]byte, error) {
	b, err := memory.ReadFixed(v.mem, v.addr+v.layout.Controller.PlayerName, v.layout.Controller.PlayerNameLen)
	if err != nil {
		return nil, fieldErr("CBasePlayerController", "m_iszPlayerName", err)
	}
	return b, nil
}

// PlantedC4View reads C_PlantedC4 fields. It embeds the base entity view.
type PlantedC4View struct{ BaseEntityView }

func NewPlantedC4View(mem memory.Reader, layout *Layout, addr uint64) PlantedC4View {
	return PlantedC4View{NewBaseEntityView(mem, layout, addr)}
}

func (v PlantedC4View) C4Activated() (bool, error) {
	return v.boolean("C_PlantedC4", "m_bC4Activated", v.layout.PlantedC4.C4Activated)
}

func (v PlantedC4View) BombSite() (int32, error) {
	site, err := memory.ReadI32(v.mem, v.addr+v.layout.PlantedC4.BombSite)
	if err != nil {
		return 0, fieldErr("C_PlantedC4", "m_nBombSite", err)
	}
	return site, nil
}

// C4Blow is the game time the bomb detonates at.
func (v PlantedC4View) C4Blow() (float32, error) {
	return v.f32("C_PlantedC4", "m_flC4Blow", v.layout.PlantedC4.C4Blow)
}

func (v PlantedC4View) BeingDefused() (bool, error) {
	return v.boolean("C_PlantedC4", "m_bBeingDefused", v.layout.PlantedC4.BeingDefused)
}

// DefuseCountDown is the game time the running defuse completes at.
func (v PlantedC4View) DefuseCountDown() (float32, error) {
	return v.f32("C_PlantedC4", "m_flDefuseCountDown", v.layout.PlantedC4.DefuseCountDown)
}

func (v PlantedC4View) BombDefused() (bool, error) {
	return v.boolean("C_PlantedC4", "m_bBombDefused", v.layout.PlantedC4.BombDefused)
}

func (v PlantedC4View) BombDefuser() (entity.Handle, error) {
	return v.handle("C_PlantedC4", "m_hBombDefuser", v.layout.PlantedC4.BombDefuser)
}
