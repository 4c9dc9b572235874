package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownValueKey is returned when an entry references a key the column never stored
	ErrUnknownValueKey = errors.New("unknown value key")
	// ErrTypeMismatch is returned when a value does not match the column type
	ErrTypeMismatch = errors.New("value type mismatch")
	// ErrDuplicateColumn is returned when a column name is already present
	ErrDuplicateColumn = errors.New("duplicate attribute column")
)

// ValueKey indexes a column's value table
type ValueKey int64

// EntryRef is the per-element reference into a column: either the column
// default or a key into the value table.
type EntryRef struct {
	key ValueKey
	set bool
}

// Default returns the reference meaning "use the column default"
func Default() EntryRef { return EntryRef{} }

// Ref returns a reference to value key k
func Ref(k ValueKey) EntryRef { return EntryRef{key: k, set: true} }

// IsDefault reports whether r refers to the column default
func (r EntryRef) IsDefault() bool { return !r.set }

// Key returns the referenced key; ok is false for Default
func (r EntryRef) Key() (k ValueKey, ok bool) { return r.key, r.set }

func (r EntryRef) String() string {
	if !r.set {
		return "default"
	}
	return fmt.Sprintf("value(%d)", r.key)
}

// Column is a named, typed per-element attribute
type Column struct {
	Name    string
	Type    ValueType
	Default Value

	entries []EntryRef
	values  []Value
}

// NewColumn creates a uniform column whose every element resolves to def
func NewColumn(name string, def Value) *Column {
	return &Column{Name: name, Type: def.Type(), Default: def}
}

// AddValue stores v in the value table and returns its key
func (c *Column) AddValue(v Value) (ValueKey, error) {
	if v == nil || v.Type() != c.Type {
		return 0, fmt.Errorf("column %s: %w", c.Name, ErrTypeMismatch)
	}
	c.values = append(c.values, v)
	return ValueKey(len(c.values) - 1), nil
}

// SetEntry binds element entry to ref, growing the entry list with defaults as needed
func (c *Column) SetEntry(entry int, ref EntryRef) {
	for len(c.entries) <= entry {
		c.entries = append(c.entries, Default())
	}
	c.entries[entry] = ref
}

// SetValue stores v and binds it to entry
func (c *Column) SetValue(entry int, v Value) error {
	k, err := c.AddValue(v)
	if err != nil {
		return err
	}
	c.SetEntry(entry, Ref(k))
	return nil
}

// Value returns the value stored under k
func (c *Column) Value(k ValueKey) (Value, bool) {
	if k < 0 || int(k) >= len(c.values) {
		return nil, false
	}
	return c.values[k], true
}

// ValueCount returns the size of the value table
func (c *Column) ValueCount() int { return len(c.values) }

// Uniform reports whether the column has no explicit entries
func (c *Column) Uniform() bool { return len(c.entries) == 0 }

// EntryCount returns the number of explicit entries
func (c *Column) EntryCount() int { return len(c.entries) }

// Entry returns the reference for element entry. Elements past the
// explicit entries resolve to Default.
func (c *Column) Entry(entry int) EntryRef {
	if entry < 0 || entry >= len(c.entries) {
		return Default()
	}
	return c.entries[entry]
}

// Entries returns references for elements 0..count-1
func (c *Column) Entries(count int) []EntryRef {
	refs := make([]EntryRef, count)
	for i := range refs {
		refs[i] = c.Entry(i)
	}
	return refs
}

// Resolve returns the value for element entry
func (c *Column) Resolve(entry int) (Value, error) {
	return c.ResolveRef(c.Entry(entry))
}

// ResolveRef returns the value ref points at
func (c *Column) ResolveRef(ref EntryRef) (Value, error) {
	k, ok := ref.Key()
	if !ok {
		return c.Default, nil
	}
	v, found := c.Value(k)
	if !found {
		return nil, fmt.Errorf("column %s: key %d: %w", c.Name, k, ErrUnknownValueKey)
	}
	return v, nil
}

// Attributes is an ordered set of uniquely named columns
type Attributes struct {
	columns []*Column
	index   map[string]int
}

// NewAttributes creates an empty attribute set
func NewAttributes() *Attributes {
	return &Attributes{index: make(map[string]int)}
}

// Add appends col
func (a *Attributes) Add(col *Column) error {
	if a.index == nil {
		a.index = make(map[string]int)
	}
	if _, exists := a.index[col.Name]; exists {
		return fmt.Errorf("%s: %w", col.Name, ErrDuplicateColumn)
	}
	a.index[col.Name] = len(a.columns)
	a.columns = append(a.columns, col)
	return nil
}

// Column looks up a column by name
func (a *Attributes) Column(name string) (*Column, bool) {
	if a == nil {
		return nil, false
	}
	i, ok := a.index[name]
	if !ok {
		return nil, false
	}
	return a.columns[i], true
}

// Columns returns columns in insertion order
func (a *Attributes) Columns() []*Column {
	if a == nil {
		return nil
	}
	return a.columns
}

// Len returns the number of columns
func (a *Attributes) Len() int {
	if a == nil {
		return 0
	}
	return len(a.columns)
}
