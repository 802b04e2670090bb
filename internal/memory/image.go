package memory

import (
	"encoding/binary"
	"math"
	"sort"
	"sync"
)

// Region is a contiguous block of captured memory.
type Region struct {
	Base uint64
	Data []byte
}

func (r Region) end() uint64 {
	return r.Base + uint64(len(r.Data))
}

// Image is a sparse address space backed by captured regions.
// Reads must fall entirely inside a single region.
type Image struct {
	mu      sync.RWMutex
	regions []Region // sorted by Base, non-overlapping
}

// NewImage creates an empty image.
func NewImage() *Image {
	return &Image{}
}

// Map adds a region at base, replacing any region that starts at the same base.
func (m *Image) Map(base uint64, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := sort.Search(len(m.regions), func(i int) bool { return m.regions[i].Base >= base })
	if i < len(m.regions) && m.regions[i].Base == base {
		m.regions[i].Data = data
		return
	}
	m.regions = append(m.regions, Region{})
	copy(m.regions[i+1:], m.regions[i:])
	m.regions[i] = Region{Base: base, Data: data}
}

// Regions returns a copy of the mapped regions in address order.
func (m *Image) Regions() []Region {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Region, len(m.regions))
	copy(out, m.regions)
	return out
}

// ReadBytes implements Reader.
func (m *Image) ReadBytes(addr uint64, n int) ([]byte, error) {
	if n < 0 {
		return nil, &ReadError{Addr: addr, Size: n, Err: ErrUnreadable}
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	// last region starting at or before addr
	i := sort.Search(len(m.regions), func(i int) bool { return m.regions[i].Base > addr }) - 1
	if i < 0 {
		return nil, &ReadError{Addr: addr, Size: n, Err: ErrUnreadable}
	}
	reg := m.regions[i]
	if addr+uint64(n) > reg.end() || addr+uint64(n) < addr {
		return nil, &ReadError{Addr: addr, Size: n, Err: ErrUnreadable}
	}

	off := addr - reg.Base
	out := make([]byte, n)
	copy(out, reg.Data[off:off+uint64(n)])
	return out, nil
}

// Builder fills a single region with typed values at offsets.
// Used to lay out fake objects for captures and tests.
type Builder struct {
	base uint64
	data []byte
}

// NewBuilder creates a zeroed region of the given size at base.
func NewBuilder(base uint64, size int) *Builder {
	return &Builder{base: base, data: make([]byte, size)}
}

func (b *Builder) Base() uint64 { return b.base }

func (b *Builder) U8(off uint64, v uint8) *Builder {
	b.data[off] = v
	return b
}

func (b *Builder) Bool(off uint64, v bool) *Builder {
	if v {
		return b.U8(off, 1)
	}
	return b.U8(off, 0)
}

func (b *Builder) U32(off uint64, v uint32) *Builder {
	binary.LittleEndian.PutUint32(b.data[off:], v)
	return b
}

func (b *Builder) I32(off uint64, v int32) *Builder {
	return b.U32(off, uint32(v))
}

func (b *Builder) U64(off uint64, v uint64) *Builder {
	binary.LittleEndian.PutUint64(b.data[off:], v)
	return b
}

func (b *Builder) F32(off uint64, v float32) *Builder {
	return b.U32(off, math.Float32bits(v))
}

func (b *Builder) Vec3(off uint64, x, y, z float32) *Builder {
	return b.F32(off, x).F32(off+4, y).F32(off+8, z)
}

// Bytes copies raw bytes at off; no terminator is appended.
func (b *Builder) Bytes(off uint64, v []byte) *Builder {
	copy(b.data[off:], v)
	return b
}

// CString writes s followed by a NUL terminator.
func (b *Builder) CString(off uint64, s string) *Builder {
	copy(b.data[off:], s)
	b.data[off+uint64(len(s))] = 0
	return b
}

// MapInto maps the built region into img.
func (b *Builder) MapInto(img *Image) {
	img.Map(b.base, b.data)
}
