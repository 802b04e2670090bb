// Package schema holds the class names and field offsets of the target
// process's entity classes and typed views that read fields through them.
//
// Offsets change with game updates; DefaultLayout reflects the last known
// build and every value can be overridden through config.
package schema

// Classes names the runtime classes the derivations look for.
type Classes struct {
	PlantedC4 string `json:"plantedC4" mapstructure:"plantedC4"`
	C4        string `json:"c4" mapstructure:"c4"`
}

// ClassInfo describes how to get from an entity's class-info pointer to its name.
// classInfo -> [+Binding] -> binding -> [+Name] -> char*
type ClassInfo struct {
	Binding    uint64 `json:"binding" mapstructure:"binding"`
	Name       uint64 `json:"name" mapstructure:"name"`
	MaxNameLen int    `json:"maxNameLen" mapstructure:"maxNameLen"`
}

// BaseEntity offsets (C_BaseEntity).
type BaseEntity struct {
	GameSceneNode uint64 `json:"gameSceneNode" mapstructure:"gameSceneNode"`
	TeamNum       uint64 `json:"teamNum" mapstructure:"teamNum"`
	OwnerEntity   uint64 `json:"ownerEntity" mapstructure:"ownerEntity"`
}

// SceneNode offsets (CGameSceneNode).
type SceneNode struct {
	AbsOrigin uint64 `json:"absOrigin" mapstructure:"absOrigin"`
}

// Pawn offsets (C_BasePlayerPawn).
type Pawn struct {
	Controller uint64 `json:"controller" mapstructure:"controller"`
}

// Controller offsets (CBasePlayerController).
type Controller struct {
	PlayerName    uint64 `json:"playerName" mapstructure:"playerName"`
	PlayerNameLen int    `json:"playerNameLen" mapstructure:"playerNameLen"`
}

// PlantedC4 offsets (C_PlantedC4). Time fields are GameTime_t whose value sits at +0.
type PlantedC4 struct {
	C4Activated     uint64 `json:"c4Activated" mapstructure:"c4Activated"`
	BombSite        uint64 `json:"bombSite" mapstructure:"bombSite"`
	C4Blow          uint64 `json:"c4Blow" mapstructure:"c4Blow"`
	BeingDefused    uint64 `json:"beingDefused" mapstructure:"beingDefused"`
	DefuseCountDown uint64 `json:"defuseCountDown" mapstructure:"defuseCountDown"`
	BombDefused     uint64 `json:"bombDefused" mapstructure:"bombDefused"`
	BombDefuser     uint64 `json:"bombDefuser" mapstructure:"bombDefuser"`
}

// Globals offsets (CGlobalVarsBase).
type Globals struct {
	CurrentTime uint64 `json:"currentTime" mapstructure:"currentTime"`
}

// Layout is the complete set of names and offsets used by the derivations.
type Layout struct {
	Classes    Classes    `json:"classes" mapstructure:"classes"`
	ClassInfo  ClassInfo  `json:"classInfo" mapstructure:"classInfo"`
	BaseEntity BaseEntity `json:"baseEntity" mapstructure:"baseEntity"`
	SceneNode  SceneNode  `json:"sceneNode" mapstructure:"sceneNode"`
	Pawn       Pawn       `json:"pawn" mapstructure:"pawn"`
	Controller Controller `json:"controller" mapstructure:"controller"`
	PlantedC4  PlantedC4  `json:"plantedC4" mapstructure:"plantedC4"`
	Globals    Globals    `json:"globals" mapstructure:"globals"`
}

// DefaultLayout returns the offsets of the last known game build.
func DefaultLayout() Layout {
	return Layout{
		Classes: Classes{
			PlantedC4: "C_PlantedC4",
			C4:        "C_C4",
		},
		ClassInfo: ClassInfo{
			Binding:    0x28,
			Name:       0x08,
			MaxNameLen: 64,
		},
		BaseEntity: BaseEntity{
			GameSceneNode: 0x328,
			TeamNum:       0x3E3,
			OwnerEntity:   0x440,
		},
		SceneNode: SceneNode{
			AbsOrigin: 0xD0,
		},
		Pawn: Pawn{
			Controller: 0x133C,
		},
		Controller: Controller{
			PlayerName:    0x660,
			PlayerNameLen: 128,
		},
		PlantedC4: PlantedC4{
			BombSite:        0xF94,
			C4Blow:          0xFC0,
			C4Activated:     0xFC4,
			BeingDefused:    0xFCC,
			DefuseCountDown: 0xFE0,
			BombDefused:     0xFE4,
			BombDefuser:     0xFE8,
		},
		Globals: Globals{
			CurrentTime: 0x30,
		},
	}
}
