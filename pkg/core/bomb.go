// pkg/core/bomb.go
package core

// PlantedStateKind enumerates the mutually exclusive planted bomb states.
type PlantedStateKind uint8

const (
	NotPlanted PlantedStateKind = iota
	Active
	Detonated
	Defused
)

func (k PlantedStateKind) String() string {
	switch k {
	case NotPlanted:
		return "not_planted"
	case Active:
		return "active"
	case Detonated:
		return "detonated"
	case Defused:
		return "defused"
	default:
		return "unknown"
	}
}

// PlantedState is the state of the planted bomb.
// TimeToDetonation is only meaningful when Kind is Active.
type PlantedState struct {
	Kind             PlantedStateKind `json:"kind"`
	TimeToDetonation float32          `json:"timeToDetonation,omitempty"`
}

// ActiveState returns an Active state with the given seconds until detonation.
func ActiveState(timeToDetonation float32) PlantedState {
	return PlantedState{Kind: Active, TimeToDetonation: timeToDetonation}
}

// BombDefuser describes the player currently defusing the bomb.
type BombDefuser struct {
	// TimeRemaining is the time left (seconds) for the defuse to complete
	TimeRemaining float32 `json:"timeRemaining"`
	PlayerName    string  `json:"playerName"`
}

// PlantedC4 is a snapshot of the planted bomb.
// Defuser is only set while State.Kind is Active.
type PlantedC4 struct {
	BombSite BombSite     `json:"bombSite"`
	State    PlantedState `json:"state"`
	Position Position3D   `json:"position"`
	Defuser  *BombDefuser `json:"defuser,omitempty"`
}

// NotPlantedC4 returns the snapshot used when no activated bomb exists.
func NotPlantedC4() PlantedC4 {
	return PlantedC4{State: PlantedState{Kind: NotPlanted}}
}

// BombCarrier is a snapshot of the player carrying the bomb.
// All fields are nil when nobody carries it. Name may be nil on its own
// if the carrier's name could not be read.
type BombCarrier struct {
	EntityID *uint32 `json:"entityId,omitempty"`
	Name     *string `json:"name,omitempty"`
	TeamID   *uint8  `json:"teamId,omitempty"`
}

// HasCarrier reports whether a carrying entity was found.
func (c BombCarrier) HasCarrier() bool {
	return c.EntityID != nil
}

// BombState aggregates the per-tick snapshots. A nil member means the
// derivation failed this tick and no information is available.
type BombState struct {
	Planted *PlantedC4   `json:"planted,omitempty"`
	Carrier *BombCarrier `json:"carrier,omitempty"`
}
