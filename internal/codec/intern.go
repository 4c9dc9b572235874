package codec

import (
	"context"
	"fmt"
	"strings"

	"geobridge/internal/domain"
	"geobridge/internal/engine"
)

// StringResolver turns engine string handles into strings.
// engine.Session satisfies it.
type StringResolver interface {
	StringValues(ctx context.Context, handles []engine.StringHandle) ([]string, error)
}

// TextOf stringifies a text-typed value
func TextOf(v domain.Value) (string, error) {
	s, ok := domain.Text(v)
	if !ok {
		return "", fmt.Errorf("%v is not text: %w", v.Type(), domain.ErrTypeMismatch)
	}
	return s, nil
}

// InternStrings renders col over count elements. Each distinct value key
// and the default are stringified at most once; elements sharing a key
// share the string. A uniform column yields a single string.
func InternStrings(col *domain.Column, count int, str func(domain.Value) (string, error)) ([]string, bool, error) {
	if col.Uniform() {
		s, err := str(col.Default)
		if err != nil {
			return nil, false, err
		}
		return []string{s}, true, nil
	}

	var (
		byKey    = make(map[domain.ValueKey]string)
		def      string
		haveDef  bool
		rendered = make([]string, count)
	)
	for i, ref := range col.Entries(count) {
		k, ok := ref.Key()
		if !ok {
			if !haveDef {
				s, err := str(col.Default)
				if err != nil {
					return nil, false, err
				}
				def, haveDef = s, true
			}
			rendered[i] = def
			continue
		}
		s, seen := byKey[k]
		if !seen {
			v, found := col.Value(k)
			if !found {
				return nil, false, fmt.Errorf("column %s: key %d: %w", col.Name, k, domain.ErrUnknownValueKey)
			}
			var err error
			if s, err = str(v); err != nil {
				return nil, false, err
			}
			byKey[k] = s
		}
		rendered[i] = s
	}
	return rendered, false, nil
}

// DecodeStrings rebuilds a text column from engine handles. Distinct
// handles are resolved in one call, in first-seen order. When the first
// distinct string is a reference path the column holds ObjectPath values,
// otherwise String values.
func DecodeStrings(ctx context.Context, r StringResolver, name string, info engine.AttributeInfo, data engine.Buffer) (*domain.Column, error) {
	n := info.Count
	if info.Unique {
		n = 1
	}
	if data == nil || data.Len() < n {
		return nil, fmt.Errorf("attribute %s: short buffer: %w", name, engine.ErrInvalidArgument)
	}

	handles := make([]engine.StringHandle, n)
	var distinct []engine.StringHandle
	slot := make(map[engine.StringHandle]int)
	for i := range handles {
		h := engine.StringHandle(data.Int(i))
		handles[i] = h
		if _, seen := slot[h]; !seen {
			slot[h] = len(distinct)
			distinct = append(distinct, h)
		}
	}

	var strs []string
	if len(distinct) > 0 {
		var err error
		strs, err = r.StringValues(ctx, distinct)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve strings of %s: %w", name, err)
		}
		if len(strs) != len(distinct) {
			return nil, fmt.Errorf("attribute %s: %d strings for %d handles: %w", name, len(strs), len(distinct), engine.ErrInvalidArgument)
		}
	}

	asPath := len(strs) > 0 && IsReference(strs[0])
	var col *domain.Column
	if asPath {
		col = domain.NewColumn(name, domain.ObjectPath(""))
	} else {
		col = domain.NewColumn(name, domain.String(""))
	}

	keys := make([]domain.ValueKey, len(strs))
	for i, s := range strs {
		var v domain.Value = domain.String(s)
		if asPath {
			v = domain.ObjectPath(StripReferenceSuffix(s))
		}
		k, err := col.AddValue(v)
		if err != nil {
			return nil, err
		}
		keys[i] = k
	}

	if info.Unique {
		if len(keys) > 0 {
			for i := 0; i < info.Count; i++ {
				col.SetEntry(i, domain.Ref(keys[0]))
			}
		}
		return col, nil
	}
	for i, h := range handles {
		col.SetEntry(i, domain.Ref(keys[slot[h]]))
	}
	return col, nil
}

// StripReferenceSuffix drops import info appended after ';'
func StripReferenceSuffix(s string) string {
	if i := strings.IndexByte(s, ';'); i >= 0 {
		return s[:i]
	}
	return s
}
