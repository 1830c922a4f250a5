// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package soft

import (
	"errors"

	"github.com/gogpu/gputypes"
)

// ErrOutOfMemory is returned when an allocation exceeds the memory budget.
var ErrOutOfMemory = errors.New("soft: out of device memory")

// Memory defines a usable memory region.
type Memory struct {
	len, offset uint
	data        []float32
}

// Len returns the length of assigned memory in bytes.
func (m *Memory) Len() uint {
	return m.len
}

// Offset returns the start location of assigned memory.
func (m *Memory) Offset() uint {
	return m.offset
}

// MemoryAllocator hands out memory regions within a fixed budget.
// A zero budget is unlimited.
type MemoryAllocator struct {
	budget uint
	used   uint
}

// NewMemoryAllocator creates an allocator limited to budget bytes.
func NewMemoryAllocator(budget uint) *MemoryAllocator {
	return &MemoryAllocator{budget: budget}
}

// Malloc returns a region holding a copy of data.
func (ma *MemoryAllocator) Malloc(data []float32) (Memory, error) {
	size := uint(len(data)) * 4
	if ma.budget != 0 && ma.used+size > ma.budget {
		return Memory{}, ErrOutOfMemory
	}
	mem := Memory{
		len:    size,
		offset: ma.used,
		data:   append([]float32(nil), data...),
	}
	ma.used += size
	return mem, nil
}

// Free returns the region to the budget.
func (ma *MemoryAllocator) Free(m Memory) {
	if m.len > ma.used {
		ma.used = 0
		return
	}
	ma.used -= m.len
}

// Used returns the number of bytes currently allocated.
func (ma *MemoryAllocator) Used() uint {
	return ma.used
}

// Buffer implements a generic buffer backed by allocator memory.
type Buffer struct {
	usage  gputypes.BufferUsage
	memory Memory
}

// Mem returns the Memory that the buffer is based on.
func (b *Buffer) Mem() *Memory {
	return &b.memory
}

// Usage returns the usage flags the buffer was created with.
func (b *Buffer) Usage() gputypes.BufferUsage {
	return b.usage
}
