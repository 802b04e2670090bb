// pkg/core/types.go
package core

// Position3D is a world-space coordinate in game units.
type Position3D struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
	Z float32 `json:"z"`
}

// BombSite identifies the site a bomb was planted at.
type BombSite uint8

const (
	BombSiteA BombSite = 0
	BombSiteB BombSite = 1
)

func (s BombSite) String() string {
	switch s {
	case BombSiteA:
		return "A"
	case BombSiteB:
		return "B"
	default:
		return "?"
	}
}
