package model

import (
	"errors"
	"fmt"
	"sort"
)

// ErrNameTaken is returned when a name is bound twice. The resolver's
// membership checks make this a logic error, never an input error.
var ErrNameTaken = errors.New("name already bound")

// Store accumulates the output of one resolution run. Every name is written
// at most once, either as a declaration or as an alias.
type Store struct {
	schemas map[string]Declaration
	aliases map[string]TypeRef
}

func NewStore() *Store {
	return &Store{
		schemas: make(map[string]Declaration),
		aliases: make(map[string]TypeRef),
	}
}

func (s *Store) AddDeclaration(d Declaration) error {
	name := d.DeclName()
	if s.Has(name) {
		return fmt.Errorf("declaration %q: %w", name, ErrNameTaken)
	}
	if r, ok := d.(*Record); ok {
		r.SortFields()
	}
	s.schemas[name] = d
	return nil
}

func (s *Store) AddAlias(name string, underlying TypeRef) error {
	if s.Has(name) {
		return fmt.Errorf("alias %q: %w", name, ErrNameTaken)
	}
	s.aliases[name] = underlying
	return nil
}

// Has reports whether name is bound to a declaration or an alias.
func (s *Store) Has(name string) bool {
	if _, ok := s.schemas[name]; ok {
		return true
	}
	_, ok := s.aliases[name]
	return ok
}

func (s *Store) Declaration(name string) (Declaration, bool) {
	d, ok := s.schemas[name]
	return d, ok
}

func (s *Store) Record(name string) (*Record, bool) {
	r, ok := s.schemas[name].(*Record)
	return r, ok
}

func (s *Store) Enum(name string) (*Enum, bool) {
	e, ok := s.schemas[name].(*Enum)
	return e, ok
}

func (s *Store) Alias(name string) (TypeRef, bool) {
	t, ok := s.aliases[name]
	return t, ok
}

// SchemaNames returns the declaration names, sorted.
func (s *Store) SchemaNames() []string { return sortedKeys(s.schemas) }

// AliasNames returns the alias names, sorted.
func (s *Store) AliasNames() []string { return sortedKeys(s.aliases) }

// Names returns every bound name, sorted.
func (s *Store) Names() []string {
	out := append(s.SchemaNames(), s.AliasNames()...)
	sort.Strings(out)
	return out
}

func (s *Store) Len() int { return len(s.schemas) + len(s.aliases) }

// References returns the type refs held by name, whichever map binds it.
func (s *Store) References(name string) []TypeRef {
	if d, ok := s.schemas[name]; ok {
		return d.References()
	}
	if t, ok := s.aliases[name]; ok {
		return []TypeRef{t}
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
