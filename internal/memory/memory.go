// Package memory provides read access to a remote address space and typed
// little-endian helpers on top of it.
package memory

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

var (
	// ErrUnreadable is returned when an address range is not mapped or could not be read.
	ErrUnreadable = errors.New("memory unreadable")

	// ErrNullPointer is returned when a pointer hop resolves to address 0.
	ErrNullPointer = errors.New("null pointer")
)

// Reader reads bytes out of another address space.
// Implementations return a fresh copy; callers may keep the slice.
type Reader interface {
	ReadBytes(addr uint64, n int) ([]byte, error)
}

// ReadError carries the address range that failed to read.
type ReadError struct {
	Addr uint64
	Size int
	Err  error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("read %d bytes at 0x%X: %v", e.Size, e.Addr, e.Err)
}

func (e *ReadError) Unwrap() error {
	return e.Err
}

func read(r Reader, addr uint64, n int) ([]byte, error) {
	b, err := r.ReadBytes(addr, n)
	if err != nil {
		return nil, err
	}
	if len(b) < n {
		return nil, &ReadError{Addr: addr, Size: n, Err: ErrUnreadable}
	}
	return b, nil
}

func ReadU8(r Reader, addr uint64) (uint8, error) {
	b, err := read(r, addr, 1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// ReadBool treats any non-zero byte as true.
func ReadBool(r Reader, addr uint64) (bool, error) {
	v, err := ReadU8(r, addr)
	return v != 0, err
}

func ReadU32(r Reader, addr uint64) (uint32, error) {
	b, err := read(r, addr, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func ReadI32(r Reader, addr uint64) (int32, error) {
	v, err := ReadU32(r, addr)
	return int32(v), err
}

func ReadU64(r Reader, addr uint64) (uint64, error) {
	b, err := read(r, addr, 8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func ReadF32(r Reader, addr uint64) (float32, error) {
	v, err := ReadU32(r, addr)
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(v), nil
}

// ReadPointer reads a 64-bit pointer and fails with ErrNullPointer if it is 0.
func ReadPointer(r Reader, addr uint64) (uint64, error) {
	p, err := ReadU64(r, addr)
	if err != nil {
		return 0, err
	}
	if p == 0 {
		return 0, fmt.Errorf("pointer at 0x%X: %w", addr, ErrNullPointer)
	}
	return p, nil
}

// ReadVec3 reads three consecutive float32 values.
func ReadVec3(r Reader, addr uint64) ([3]float32, error) {
	var v [3]float32
	b, err := read(r, addr, 12)
	if err != nil {
		return v, err
	}
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v, nil
}

// ReadFixed reads a fixed-size buffer, e.g. an inline char array.
func ReadFixed(r Reader, addr uint64, n int) ([]byte, error) {
	return read(r, addr, n)
}
