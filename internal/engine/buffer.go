package engine

import "fmt"

// StringHandle references a string held by the engine
type StringHandle int32

// Buffer is a flat attribute buffer. Float and Int read element i widened
// so decode routines need not care about storage width; string-bearing
// buffers return zero from both.
type Buffer interface {
	Len() int
	Storage() StorageType
	Float(i int) float64
	Int(i int) int64
}

type (
	Float32Buffer []float32
	Float64Buffer []float64
	Int32Buffer   []int32
	Int64Buffer   []int64
	UInt8Buffer   []uint8
	Int8Buffer    []int8
	Int16Buffer   []int16
	// StringBuffer carries strings toward the engine
	StringBuffer []string
	// HandleBuffer carries string handles back from the engine
	HandleBuffer []StringHandle
)

func (b Float32Buffer) Len() int { return len(b) }
func (b Float64Buffer) Len() int { return len(b) }
func (b Int32Buffer) Len() int   { return len(b) }
func (b Int64Buffer) Len() int   { return len(b) }
func (b UInt8Buffer) Len() int   { return len(b) }
func (b Int8Buffer) Len() int    { return len(b) }
func (b Int16Buffer) Len() int   { return len(b) }
func (b StringBuffer) Len() int  { return len(b) }
func (b HandleBuffer) Len() int  { return len(b) }

func (Float32Buffer) Storage() StorageType { return StorageFloat }
func (Float64Buffer) Storage() StorageType { return StorageFloat64 }
func (Int32Buffer) Storage() StorageType   { return StorageInt }
func (Int64Buffer) Storage() StorageType   { return StorageInt64 }
func (UInt8Buffer) Storage() StorageType   { return StorageUInt8 }
func (Int8Buffer) Storage() StorageType    { return StorageInt8 }
func (Int16Buffer) Storage() StorageType   { return StorageInt16 }
func (StringBuffer) Storage() StorageType  { return StorageString }
func (HandleBuffer) Storage() StorageType  { return StorageString }

func (b Float32Buffer) Float(i int) float64 { return float64(b[i]) }
func (b Float64Buffer) Float(i int) float64 { return b[i] }
func (b Int32Buffer) Float(i int) float64   { return float64(b[i]) }
func (b Int64Buffer) Float(i int) float64   { return float64(b[i]) }
func (b UInt8Buffer) Float(i int) float64   { return float64(b[i]) }
func (b Int8Buffer) Float(i int) float64    { return float64(b[i]) }
func (b Int16Buffer) Float(i int) float64   { return float64(b[i]) }
func (StringBuffer) Float(int) float64      { return 0 }
func (HandleBuffer) Float(int) float64      { return 0 }

func (b Float32Buffer) Int(i int) int64 { return int64(b[i]) }
func (b Float64Buffer) Int(i int) int64 { return int64(b[i]) }
func (b Int32Buffer) Int(i int) int64   { return int64(b[i]) }
func (b Int64Buffer) Int(i int) int64   { return b[i] }
func (b UInt8Buffer) Int(i int) int64   { return int64(b[i]) }
func (b Int8Buffer) Int(i int) int64    { return int64(b[i]) }
func (b Int16Buffer) Int(i int) int64   { return int64(b[i]) }
func (StringBuffer) Int(int) int64      { return 0 }
func (b HandleBuffer) Int(i int) int64  { return int64(b[i]) }

// NewBuffer allocates a zeroed numeric buffer of n elements
func NewBuffer(storage StorageType, n int) (Buffer, error) {
	switch storage {
	case StorageFloat:
		return make(Float32Buffer, n), nil
	case StorageFloat64:
		return make(Float64Buffer, n), nil
	case StorageInt:
		return make(Int32Buffer, n), nil
	case StorageInt64:
		return make(Int64Buffer, n), nil
	case StorageUInt8:
		return make(UInt8Buffer, n), nil
	case StorageInt8:
		return make(Int8Buffer, n), nil
	case StorageInt16:
		return make(Int16Buffer, n), nil
	case StorageString:
		return make(HandleBuffer, n), nil
	}
	return nil, fmt.Errorf("storage %v: %w", storage, ErrInvalidArgument)
}

// Repeat returns a buffer holding tuple n times
func Repeat(tuple Buffer, n int) Buffer {
	switch b := tuple.(type) {
	case Float32Buffer:
		return repeat(b, n)
	case Float64Buffer:
		return repeat(b, n)
	case Int32Buffer:
		return repeat(b, n)
	case Int64Buffer:
		return repeat(b, n)
	case UInt8Buffer:
		return repeat(b, n)
	case Int8Buffer:
		return repeat(b, n)
	case Int16Buffer:
		return repeat(b, n)
	case StringBuffer:
		return repeat(b, n)
	case HandleBuffer:
		return repeat(b, n)
	}
	return tuple
}

func repeat[S ~[]E, E any](tuple S, n int) S {
	out := make(S, 0, len(tuple)*n)
	for i := 0; i < n; i++ {
		out = append(out, tuple...)
	}
	return out
}
