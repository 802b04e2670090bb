package state

import (
	"fmt"

	"github.com/bombwatch/extension/internal/memory"
)

// Clock reads the game's current time in seconds.
// Derivations read it once and use that value for every comparison.
type Clock interface {
	CurrentTime() (float32, error)
}

// GlobalsClock reads the current time out of the game's globals struct.
type GlobalsClock struct {
	Memory memory.Reader
	// Globals is the address of the globals struct.
	Globals uint64
	Offset  uint64
}

func (c GlobalsClock) CurrentTime() (float32, error) {
	t, err := memory.ReadF32(c.Memory, c.Globals+c.Offset)
	if err != nil {
		return 0, fmt.Errorf("globals current time: %w", err)
	}
	return t, nil
}

// FixedClock always returns the same time.
type FixedClock float32

func (c FixedClock) CurrentTime() (float32, error) {
	return float32(c), nil
}
