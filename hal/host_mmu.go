package hal

import (
	"sync"

	"sparksched/kernel"
)

// MMU records the page contexts the kernel programs. It has no address
// spaces of its own; a page context is whatever uintptr the caller assigned.
type MMU struct {
	mu       sync.Mutex
	current  kernel.PageContext
	switches uint64
	released map[kernel.PageContext]int
}

// NewMMU returns an MMU with page context zero loaded.
func NewMMU() *MMU {
	return &MMU{released: make(map[kernel.PageContext]int)}
}

func (m *MMU) SwitchTo(pc kernel.PageContext) {
	m.mu.Lock()
	if pc != m.current {
		m.switches++
	}
	m.current = pc
	m.mu.Unlock()
}

func (m *MMU) Release(pc kernel.PageContext) {
	m.mu.Lock()
	m.released[pc]++
	m.mu.Unlock()
}

// Current returns the loaded page context.
func (m *MMU) Current() kernel.PageContext {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Switches counts loads that changed the page context.
func (m *MMU) Switches() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.switches
}

// Released reports how many times pc was released.
func (m *MMU) Released(pc kernel.PageContext) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.released[pc]
}
