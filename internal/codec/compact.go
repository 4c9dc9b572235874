package codec

import (
	"fmt"

	"geobridge/internal/domain"
	"geobridge/internal/engine"
)

// Plan is a column resolved over count elements. A uniform plan holds a
// single value shared by every element.
type Plan struct {
	Uniform bool
	Values  []domain.Value
}

// Compact resolves col over count elements
func Compact(col *domain.Column, count int) (Plan, error) {
	if col.Uniform() {
		return Plan{Uniform: true, Values: []domain.Value{col.Default}}, nil
	}
	values := make([]domain.Value, count)
	for i := range values {
		v, err := col.Resolve(i)
		if err != nil {
			return Plan{}, err
		}
		values[i] = v
	}
	return Plan{Values: values}, nil
}

// Encoded is a column ready to be written to the engine
type Encoded struct {
	Layout
	Data    engine.Buffer
	Uniform bool
}

// Info returns the attribute info to add the column under
func (e Encoded) Info(owner engine.AttributeOwner, count int) engine.AttributeInfo {
	return engine.AttributeInfo{
		Exists:    true,
		Owner:     owner,
		Storage:   e.Storage,
		TupleSize: e.TupleSize,
		TypeInfo:  e.TypeInfo,
		Count:     count,
	}
}

// EncodeColumn encodes col over count elements. Text columns are interned,
// every other type is compacted.
func EncodeColumn(c Converter, col *domain.Column, count int) (Encoded, error) {
	enc, err := EncodingFor(col.Type)
	if err != nil {
		return Encoded{}, err
	}

	if col.Type.IsText() {
		strs, uniform, err := InternStrings(col, count, TextOf)
		if err != nil {
			return Encoded{}, err
		}
		return Encoded{Layout: enc.Layout, Data: engine.StringBuffer(strs), Uniform: uniform}, nil
	}

	plan, err := Compact(col, count)
	if err != nil {
		return Encoded{}, err
	}
	b := NewBuilder(enc.Storage)
	for _, v := range plan.Values {
		if err := enc.Put(c, v, b); err != nil {
			return Encoded{}, fmt.Errorf("column %s: %w", col.Name, err)
		}
	}
	return Encoded{Layout: enc.Layout, Data: b.Buffer(), Uniform: plan.Uniform}, nil
}

// DecodeColumn rebuilds a numeric column from engine data. data holds one
// tuple when info.Unique is set, count tuples otherwise.
func DecodeColumn(c Converter, name string, info engine.AttributeInfo, data engine.Buffer) (*domain.Column, error) {
	dec, err := DecodingFor(LayoutOf(info))
	if err != nil {
		return nil, err
	}
	def, err := domain.ZeroValue(dec.Type)
	if err != nil {
		return nil, err
	}
	col := domain.NewColumn(name, def)

	tuples := info.Count
	if info.Unique {
		tuples = 1
	}
	if data == nil || data.Len() < tuples*info.TupleSize {
		return nil, fmt.Errorf("attribute %s: short buffer: %w", name, engine.ErrInvalidArgument)
	}

	if info.Unique {
		if err := BindUniform(col, dec.Get(c, data, 0), info.Count); err != nil {
			return nil, err
		}
		return col, nil
	}
	values := make([]domain.Value, info.Count)
	for i := range values {
		values[i] = dec.Get(c, data, i)
	}
	if err := BindSequential(col, values); err != nil {
		return nil, err
	}
	return col, nil
}

// BindUniform stores v under a single key referenced by entries 0..count-1
func BindUniform(col *domain.Column, v domain.Value, count int) error {
	k, err := col.AddValue(v)
	if err != nil {
		return err
	}
	for i := 0; i < count; i++ {
		col.SetEntry(i, domain.Ref(k))
	}
	return nil
}

// BindSequential gives entry i its own key holding values[i]
func BindSequential(col *domain.Column, values []domain.Value) error {
	for i, v := range values {
		if err := col.SetValue(i, v); err != nil {
			return err
		}
	}
	return nil
}
