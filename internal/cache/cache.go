package cache

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/bombwatch/extension/internal/memory"
	"github.com/bombwatch/extension/internal/schema"
)

const (
	nameChunk = 32
	pageSize  = 0x1000
)

type className struct {
	name string
	ok   bool
}

// ClassNameCache memoizes runtime class names by class-info address.
// Resolving a name takes several remote reads, so every distinct class-info
// pointer is resolved at most once per cache lifetime.
type ClassNameCache struct {
	mem    memory.Reader
	layout schema.ClassInfo

	mu     sync.RWMutex
	names  map[uint64]className
	flight singleflight.Group
	Hits   SafeCounter
	Misses SafeCounter
}

func NewClassNameCache(mem memory.Reader, layout schema.ClassInfo) *ClassNameCache {
	return &ClassNameCache{
		mem:    mem,
		layout: layout,
		names:  make(map[uint64]className),
	}
}

// Lookup returns the class name for classInfo. ok is false when the class has
// no readable name (null hop or unterminated string); that result is cached too.
// Read failures are returned as errors and not cached.
func (c *ClassNameCache) Lookup(classInfo uint64) (string, bool, error) {
	c.mu.RLock()
	entry, found := c.names[classInfo]
	c.mu.RUnlock()
	if found {
		c.Hits.Inc()
		return entry.name, entry.ok, nil
	}
	c.Misses.Inc()

	v, err, _ := c.flight.Do(strconv.FormatUint(classInfo, 16), func() (any, error) {
		c.mu.RLock()
		entry, found := c.names[classInfo]
		c.mu.RUnlock()
		if found {
			return entry, nil
		}

		entry, err := c.resolve(classInfo)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.names[classInfo] = entry
		c.mu.Unlock()
		return entry, nil
	})
	if err != nil {
		return "", false, err
	}

	entry = v.(className)
	return entry.name, entry.ok, nil
}

func (c *ClassNameCache) resolve(classInfo uint64) (className, error) {
	if classInfo == 0 {
		return className{}, nil
	}

	binding, err := memory.ReadPointer(c.mem, classInfo+c.layout.Binding)
	if errors.Is(err, memory.ErrNullPointer) {
		return className{}, nil
	} else if err != nil {
		return className{}, fmt.Errorf("class info 0x%X binding: %w", classInfo, err)
	}

	namePtr, err := memory.ReadPointer(c.mem, binding+c.layout.Name)
	if errors.Is(err, memory.ErrNullPointer) {
		return className{}, nil
	} else if err != nil {
		return className{}, fmt.Errorf("class info 0x%X name: %w", classInfo, err)
	}

	name, ok, err := readCString(c.mem, namePtr, c.layout.MaxNameLen)
	if err != nil {
		return className{}, fmt.Errorf("class info 0x%X name string: %w", classInfo, err)
	}
	return className{name: name, ok: ok}, nil
}

// readCString reads up to limit bytes at addr and stops at the first NUL.
// Chunks never cross a page boundary; a chunk that still fails is retried at
// half the size so a terminated name at the end of mapped memory is readable.
func readCString(mem memory.Reader, addr uint64, limit int) (string, bool, error) {
	var buf []byte
	for len(buf) < limit {
		at := addr + uint64(len(buf))
		n := min(nameChunk, limit-len(buf), pageSize-int(at%pageSize))

		chunk, err := memory.ReadFixed(mem, at, n)
		for err != nil && n > 1 {
			n /= 2
			chunk, err = memory.ReadFixed(mem, at, n)
		}
		if err != nil {
			return "", false, err
		}
		if i := bytes.IndexByte(chunk, 0); i >= 0 {
			buf = append(buf, chunk[:i]...)
			return string(buf), true, nil
		}
		buf = append(buf, chunk...)
	}
	return "", false, nil
}

// Len returns the number of memoized class-info entries.
func (c *ClassNameCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.names)
}

// Reset drops all memoized names, e.g. after the target process restarted.
func (c *ClassNameCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.names = make(map[uint64]className)
	c.Hits.Set(0)
	c.Misses.Set(0)
}

// SafeCounter is a thread-safe counter
type SafeCounter struct {
	mu sync.Mutex
	v  int
}

func (c *SafeCounter) Value() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.v
}

func (c *SafeCounter) Set(v int) {
	c.mu.Lock()
	c.v = v
	c.mu.Unlock()
}

// Inc increments the counter and returns the new value.
func (c *SafeCounter) Inc() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.v++
	return c.v
}
