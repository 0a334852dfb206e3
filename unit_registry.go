package criteria

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	once            sync.Once
	instance        *UnitRegistry
	ErrUnitNotFound = errors.New("unit not found")
)

// UnitRegistry holds the persistence units of the process by name
type UnitRegistry struct {
	mutex sync.RWMutex
	units map[string]*Unit
}

// Units returns the singleton instance of UnitRegistry
func Units() *UnitRegistry {
	once.Do(func() {
		instance = NewUnitRegistry()
	})
	return instance
}

// NewUnitRegistry creates an empty registry, separate from the process-wide one.
func NewUnitRegistry() *UnitRegistry {
	return &UnitRegistry{units: make(map[string]*Unit)}
}

// Register adds a unit under its own name, replacing any unit of that name
func (r *UnitRegistry) Register(unit *Unit) {
	r.RegisterAs(unit.Name(), unit)
}

// RegisterAs adds a unit under name
func (r *UnitRegistry) RegisterAs(name string, unit *Unit) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.units[name] = unit
	unit.logger.Debug("persistence unit registered")
}

// Get retrieves a unit by name, the default unit when no name is given
func (r *UnitRegistry) Get(name ...string) (*Unit, error) {
	n := DefaultUnitName
	if len(name) > 0 {
		n = name[0]
	}

	r.mutex.RLock()
	defer r.mutex.RUnlock()

	unit, exists := r.units[n]
	if !exists {
		return nil, fmt.Errorf("%w: '%s'", ErrUnitNotFound, n)
	}
	return unit, nil
}

// MustGet retrieves a unit by name, panics if not found
func (r *UnitRegistry) MustGet(name ...string) *Unit {
	unit, err := r.Get(name...)
	if err != nil {
		panic(err)
	}
	return unit
}

// Names returns the names of all registered units, sorted
func (r *UnitRegistry) Names() []string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	names := make([]string, 0, len(r.units))
	for name := range r.units {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Remove closes and removes a unit from the registry
func (r *UnitRegistry) Remove(name string) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	unit, exists := r.units[name]
	if !exists {
		return fmt.Errorf("%w: '%s'", ErrUnitNotFound, name)
	}
	if err := unit.Close(); err != nil {
		return fmt.Errorf("error closing unit: %w", err)
	}
	delete(r.units, name)
	return nil
}

// RemoveAll closes and removes all units from the registry
func (r *UnitRegistry) RemoveAll() error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	var errs []error
	for name, unit := range r.units {
		if err := unit.Close(); err != nil {
			errs = append(errs, fmt.Errorf("error closing unit %s: %w", name, err))
		}
	}
	r.units = make(map[string]*Unit)
	return errors.Join(errs...)
}

// Package-level functions

// RegisterUnit adds a unit to the process-wide registry
// Usage: criteria.RegisterUnit(unit)
func RegisterUnit(unit *Unit) {
	Units().Register(unit)
}

// GetUnit retrieves a unit from the process-wide registry
// Usage: unit, err := criteria.GetUnit("reporting")
func GetUnit(name ...string) (*Unit, error) {
	return Units().Get(name...)
}

// MustGetUnit retrieves a unit from the process-wide registry, panics if not found
func MustGetUnit(name ...string) *Unit {
	return Units().MustGet(name...)
}
