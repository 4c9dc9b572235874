package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"

	"geobridge/internal/codec"
	"geobridge/internal/domain"
	"geobridge/internal/engine"
)

// DefaultAttributePrefix marks generic attributes on the engine side
const DefaultAttributePrefix = "unreal_pcg_attribute_"

// AttributeFilter selects attribute names by glob. An empty include list
// admits every name; exclude wins over include.
type AttributeFilter struct {
	Include []string
	Exclude []string
}

// NewAttributeFilter validates the patterns
func NewAttributeFilter(include, exclude []string) (AttributeFilter, error) {
	for _, p := range append(append([]string(nil), include...), exclude...) {
		if !doublestar.ValidatePattern(p) {
			return AttributeFilter{}, fmt.Errorf("invalid attribute pattern %q", p)
		}
	}
	return AttributeFilter{Include: include, Exclude: exclude}, nil
}

// Allow reports whether name passes the filter
func (f AttributeFilter) Allow(name string) bool {
	for _, p := range f.Exclude {
		if ok, _ := doublestar.Match(p, name); ok {
			return false
		}
	}
	if len(f.Include) == 0 {
		return true
	}
	for _, p := range f.Include {
		if ok, _ := doublestar.Match(p, name); ok {
			return true
		}
	}
	return false
}

// Dispatcher moves generic attribute columns between a scene attribute
// table and prefixed engine attributes
type Dispatcher struct {
	session engine.Session
	conv    codec.Converter
	prefix  string
	filter  AttributeFilter
}

// NewDispatcher creates a dispatcher
func NewDispatcher(session engine.Session, conv codec.Converter, prefix string, filter AttributeFilter) *Dispatcher {
	return &Dispatcher{session: session, conv: conv, prefix: prefix, filter: filter}
}

// Prefix returns the engine name prefix
func (d *Dispatcher) Prefix() string { return d.prefix }

// Encode writes every admitted column of attrs onto owner. entries maps
// element i to its attribute entry; nil means element i reads entry i.
// Columns of a type with no engine layout are skipped.
func (d *Dispatcher) Encode(ctx context.Context, node engine.NodeID, part engine.PartID, owner engine.AttributeOwner, attrs *domain.Attributes, count int, entries []int64) error {
	log := logging.GetFromContext(ctx)

	for _, col := range attrs.Columns() {
		if !d.filter.Allow(col.Name) {
			continue
		}
		src := col
		if entries != nil {
			var err error
			if src, err = reindex(col, entries); err != nil {
				return err
			}
		}

		enc, err := codec.EncodeColumn(d.conv, src, count)
		if errors.Is(err, codec.ErrUnsupportedEncoding) {
			log.Debug("skipping attribute with no engine layout", "attribute", col.Name, "type", col.Type.String())
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to encode attribute %s: %w", col.Name, err)
		}

		name := d.prefix + col.Name
		info := enc.Info(owner, count)
		if err := d.session.AddAttribute(ctx, node, part, name, info); err != nil {
			return fmt.Errorf("failed to add attribute %s: %w", name, err)
		}
		if enc.Uniform {
			err = d.session.SetAttributeUniqueData(ctx, node, part, name, info, enc.Data)
		} else {
			err = d.session.SetAttributeData(ctx, node, part, name, info, enc.Data)
		}
		if err != nil {
			return fmt.Errorf("failed to write attribute %s: %w", name, err)
		}
	}
	return nil
}

// Decode reads every prefixed attribute on owner back into columns named
// without the prefix. Layouts with no scene type are skipped.
func (d *Dispatcher) Decode(ctx context.Context, node engine.NodeID, part engine.PartID, owner engine.AttributeOwner) (*domain.Attributes, error) {
	log := logging.GetFromContext(ctx)

	names, err := d.session.AttributeNames(ctx, node, part, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to list %v attributes: %w", owner, err)
	}

	attrs := domain.NewAttributes()
	for _, name := range names {
		short, ok := strings.CutPrefix(name, d.prefix)
		if !ok || short == "" || !d.filter.Allow(short) {
			continue
		}

		info, err := d.session.AttributeInfo(ctx, node, part, name, owner)
		if err != nil {
			return nil, fmt.Errorf("failed to get attribute info %s: %w", name, err)
		}
		if !info.Exists {
			continue
		}
		if info.Storage != engine.StorageString {
			if _, err := codec.DecodingFor(codec.LayoutOf(info)); err != nil {
				log.Debug("skipping attribute with unsupported layout", "attribute", name, "layout", codec.LayoutOf(info).String())
				continue
			}
		}

		data, err := d.session.AttributeData(ctx, node, part, name, info)
		if err != nil {
			return nil, fmt.Errorf("failed to read attribute %s: %w", name, err)
		}

		var col *domain.Column
		if info.Storage == engine.StorageString {
			col, err = codec.DecodeStrings(ctx, d.session, short, info, data)
		} else {
			col, err = codec.DecodeColumn(d.conv, short, info, data)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to decode attribute %s: %w", name, err)
		}
		if err := attrs.Add(col); err != nil {
			return nil, err
		}
	}
	return attrs, nil
}

// reindex returns a copy of col whose element i holds col's entry entries[i].
// Negative entries read the default.
func reindex(col *domain.Column, entries []int64) (*domain.Column, error) {
	if col.Uniform() {
		return col, nil
	}
	out := domain.NewColumn(col.Name, col.Default)
	for k := 0; k < col.ValueCount(); k++ {
		v, _ := col.Value(domain.ValueKey(k))
		if _, err := out.AddValue(v); err != nil {
			return nil, err
		}
	}
	for i, e := range entries {
		ref := domain.Default()
		if e >= 0 {
			ref = col.Entry(int(e))
		}
		out.SetEntry(i, ref)
	}
	return out, nil
}
