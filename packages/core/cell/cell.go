package cell

import (
	"errors"
	"fmt"
)

// ErrUndefinedVariable is returned when a cell is read before any take wrote to it.
var ErrUndefinedVariable = errors.New("undefined variable")

// UndefinedError names the cell that was read while still unset.
type UndefinedError struct {
	Name string
}

func (e *UndefinedError) Error() string {
	return fmt.Sprintf("%v: %q has not been set by any earlier take", ErrUndefinedVariable, e.Name)
}

func (e *UndefinedError) Unwrap() error {
	return ErrUndefinedVariable
}

// Ref identifies a cell inside its Store.
type Ref int

type entry struct {
	name  string
	value any
	bound bool
}

// Store is the suite-scoped arena of cells.
type Store struct {
	cells  []entry
	byName map[string]Ref
}

func NewStore() *Store {
	return &Store{
		byName: make(map[string]Ref),
	}
}

// Declare returns the Ref for name, allocating a new cell the first time the
// name is seen.
func (s *Store) Declare(name string) Ref {
	if ref, ok := s.byName[name]; ok {
		return ref
	}
	ref := Ref(len(s.cells))
	s.cells = append(s.cells, entry{name: name})
	s.byName[name] = ref
	return ref
}

// Lookup returns the Ref of an already declared cell.
func (s *Store) Lookup(name string) (Ref, bool) {
	ref, ok := s.byName[name]
	return ref, ok
}

func (s *Store) valid(ref Ref) bool {
	return ref >= 0 && int(ref) < len(s.cells)
}

// Name returns the declared name of ref, or "" for a foreign Ref.
func (s *Store) Name(ref Ref) string {
	if !s.valid(ref) {
		return ""
	}
	return s.cells[ref].name
}

// Set binds value to the cell, replacing whatever it held.
func (s *Store) Set(ref Ref, value any) {
	if !s.valid(ref) {
		panic(fmt.Sprintf("cell: set of unknown ref %d", ref))
	}
	c := &s.cells[ref]
	c.value = value
	c.bound = true
}

// Get returns the current value and whether the cell has been written yet.
func (s *Store) Get(ref Ref) (any, bool) {
	if !s.valid(ref) {
		return nil, false
	}
	c := s.cells[ref]
	return c.value, c.bound
}

// Value is like Get but reports an unset cell as an *UndefinedError.
func (s *Store) Value(ref Ref) (any, error) {
	v, ok := s.Get(ref)
	if !ok {
		name := s.Name(ref)
		if name == "" {
			name = fmt.Sprintf("#%d", ref)
		}
		return nil, &UndefinedError{Name: name}
	}
	return v, nil
}

func (s *Store) Len() int {
	return len(s.cells)
}

// Bound returns a copy of every cell that currently holds a value, keyed by name.
func (s *Store) Bound() map[string]any {
	out := make(map[string]any)
	for _, c := range s.cells {
		if c.bound {
			out[c.name] = c.value
		}
	}
	return out
}

// Reset unbinds every cell while keeping the declarations, so the same parsed
// suite can be executed again from a clean state.
func (s *Store) Reset() {
	for i := range s.cells {
		s.cells[i].value = nil
		s.cells[i].bound = false
	}
}

// Resolve returns a copy of v in which every Ref has been replaced by the
// cell's current value. Maps and slices are copied; other values are returned
// as they are. The first unset cell aborts resolution with an *UndefinedError.
func (s *Store) Resolve(v any) (any, error) {
	switch t := v.(type) {
	case Ref:
		return s.Value(t)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			r, err := s.Resolve(item)
			if err != nil {
				return nil, err
			}
			out[k] = r
		}
		return out, nil
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			r, err := s.Resolve(item)
			if err != nil {
				return nil, err
			}
			out[i] = r
		}
		return out, nil
	default:
		return v, nil
	}
}
