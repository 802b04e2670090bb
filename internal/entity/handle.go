// Package entity models the live entity directory of the target process and
// the generation-checked handles that point into it.
package entity

import "fmt"

const (
	// InvalidRaw is the packed value of an unset handle.
	InvalidRaw uint32 = 0xFFFFFFFF

	indexBits = 15
	indexMask = 1<<indexBits - 1

	// MaxIndex is the largest index a packed handle can address.
	MaxIndex = indexMask
)

// Handle is a weak reference to an entity: an index into the directory and the
// generation (serial) the referenced slot must carry for the handle to be valid.
type Handle struct {
	Index      uint32
	Generation uint32
	invalid    bool
}

// InvalidHandle returns the unset handle.
func InvalidHandle() Handle {
	return Handle{invalid: true}
}

// NewHandle builds a valid handle from its parts.
func NewHandle(index, generation uint32) Handle {
	return Handle{Index: index, Generation: generation}
}

// HandleFromRaw decodes the packed 32-bit form: low 15 bits index, remaining bits generation.
func HandleFromRaw(raw uint32) Handle {
	if raw == InvalidRaw {
		return InvalidHandle()
	}
	return Handle{
		Index:      raw & indexMask,
		Generation: raw >> indexBits,
	}
}

// Raw packs the handle back into its 32-bit form.
func (h Handle) Raw() uint32 {
	if h.invalid {
		return InvalidRaw
	}
	return h.Generation<<indexBits | h.Index&indexMask
}

// Valid reports whether the handle is set. A valid handle may still fail to
// resolve if its generation no longer matches.
func (h Handle) Valid() bool {
	return !h.invalid && h.Index <= MaxIndex
}

func (h Handle) String() string {
	if !h.Valid() {
		return "handle(invalid)"
	}
	return fmt.Sprintf("handle(%d:%d)", h.Index, h.Generation)
}
