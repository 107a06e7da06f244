package permission

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

// ErrRolesFrozen is returned when a role is registered after Freeze.
var ErrRolesFrozen = errors.New("role manager frozen")

// RoleManager maps role names to permission masks. Roles are registered
// during setup, then the manager is frozen and read concurrently.
type RoleManager struct {
	registry *Registry

	mu     sync.RWMutex
	roles  map[string]Mask64
	frozen bool
}

// NewRoleManager returns an empty [RoleManager] over registry.
func NewRoleManager(registry *Registry) *RoleManager {
	return &RoleManager{
		registry: registry,
		roles:    make(map[string]Mask64),
	}
}

func normalizeRole(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// RegisterRole grants roleName the named permissions.
func (rm *RoleManager) RegisterRole(roleName string, permissionNames []string) error {
	var mask Mask64
	for _, perm := range permissionNames {
		bit, ok := rm.registry.Bit(perm)
		if !ok {
			return fmt.Errorf("permission not registered: %s", perm)
		}
		mask.Set(bit)
	}
	return rm.register(roleName, mask)
}

// RegisterRootRole grants roleName the reserved root bit, and with it every
// permission.
func (rm *RoleManager) RegisterRootRole(roleName string) error {
	rootBit, ok := rm.registry.RootBit()
	if !ok {
		return errors.New("root bit not reserved")
	}
	var mask Mask64
	mask.Set(rootBit)
	return rm.register(roleName, mask)
}

func (rm *RoleManager) register(roleName string, mask Mask64) error {
	key := normalizeRole(roleName)
	if key == "" {
		return errors.New("role name empty")
	}

	rm.mu.Lock()
	defer rm.mu.Unlock()
	if rm.frozen {
		return ErrRolesFrozen
	}
	if _, exists := rm.roles[key]; exists {
		return fmt.Errorf("role %q already registered", key)
	}
	rm.roles[key] = mask
	return nil
}

// GetMask returns the mask for roleName.
func (rm *RoleManager) GetMask(roleName string) (Mask64, bool) {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	mask, ok := rm.roles[normalizeRole(roleName)]
	return mask, ok
}

// Allows reports whether roleName holds perm. Unknown roles and unknown
// permissions are denied.
func (rm *RoleManager) Allows(roleName, perm string) bool {
	mask, ok := rm.GetMask(roleName)
	if !ok {
		return false
	}
	bit, ok := rm.registry.Bit(perm)
	if !ok {
		return false
	}
	_, rootReserved := rm.registry.RootBit()
	return mask.Has(bit, rootReserved)
}

// Freeze prevents further role registrations.
func (rm *RoleManager) Freeze() {
	rm.mu.Lock()
	rm.frozen = true
	rm.mu.Unlock()
}

// Count returns the number of registered roles.
func (rm *RoleManager) Count() int {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return len(rm.roles)
}
