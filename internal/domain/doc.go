// Package domain defines the scene-graph side of the geobridge bridge.
//
// The types here model tagged geometric objects and the typed per-element
// attribute tables they carry. Nothing in this package talks to the
// geometry engine; conversion to and from engine buffers lives in the
// codec, topology and service packages.
//
// # Objects
//
// Object is a closed variant: *PointSet, *Curve or *Mesh. Callers switch
// on the concrete type (or on Kind) and the compiler-visible set never
// grows outside this package.
//
// # Attributes
//
// A Column stores one named attribute. Every element entry is an EntryRef
// that is either Default (use the column default) or Value(key), where key
// indexes the column's value table. A column with no explicit entries is
// uniform: all elements resolve to the default.
//
// Attributes holds columns in insertion order so encode output is stable.
//
// # Values
//
// Value is a closed sum type with one Go type per attribute kind
// (Float32, Vector3, Quat, Transform, ObjectPath, ...). ZeroValue returns
// the zero of any ValueType.
//
// # Collections
//
// Collection is the content asset a retrieve writes into. It keeps the
// tagged data and one checksum per item.
package domain
