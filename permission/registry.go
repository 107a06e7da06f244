package permission

import (
	"errors"
	"fmt"
	"sync"
)

const maskBits = 64

var (
	ErrRegistryFrozen  = errors.New("permission registry frozen")
	ErrPermissionLimit = errors.New("permission limit exceeded")
)

// Registry assigns permission names to bits of a [Mask64] in registration
// order. With a reserved root, the highest bit is kept for the root role.
type Registry struct {
	rootReserved bool

	mu     sync.RWMutex
	names  []string
	bits   map[string]int
	frozen bool
}

// NewRegistry creates an empty [Registry].
func NewRegistry(rootReserved bool) *Registry {
	return &Registry{
		rootReserved: rootReserved,
		bits:         make(map[string]int),
	}
}

func (r *Registry) capacity() int {
	if r.rootReserved {
		return maskBits - 1
	}
	return maskBits
}

// Register assigns the next free bit to name and returns it.
func (r *Registry) Register(name string) (int, error) {
	if name == "" {
		return -1, errors.New("permission name cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	switch {
	case r.frozen:
		return -1, ErrRegistryFrozen
	case len(r.names) >= r.capacity():
		return -1, ErrPermissionLimit
	}
	if _, dup := r.bits[name]; dup {
		return -1, fmt.Errorf("permission %q already registered", name)
	}

	bit := len(r.names)
	r.names = append(r.names, name)
	r.bits[name] = bit
	return bit, nil
}

// Bit returns the bit assigned to name.
func (r *Registry) Bit(name string) (int, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	bit, ok := r.bits[name]
	return bit, ok
}

// Name returns the permission assigned to bit.
func (r *Registry) Name(bit int) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if bit < 0 || bit >= len(r.names) {
		return "", false
	}
	return r.names[bit], true
}

// Freeze prevents further registrations.
func (r *Registry) Freeze() {
	r.mu.Lock()
	r.frozen = true
	r.mu.Unlock()
}

// Count returns the number of registered permissions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.names)
}

// RootBit returns the reserved root bit.
func (r *Registry) RootBit() (int, bool) {
	if !r.rootReserved {
		return -1, false
	}
	return maskBits - 1, true
}
