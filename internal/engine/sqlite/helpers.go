package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"geobridge/internal/engine"
)

// ============================================================================
// Null Type Conversion Helpers
// ============================================================================

// nodeToNull maps engine.NoNode to SQL NULL
func nodeToNull(id engine.NodeID) sql.NullInt64 {
	if !id.Valid() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(id), Valid: true}
}

// nullToNode maps SQL NULL to engine.NoNode
func nullToNode(ni sql.NullInt64) engine.NodeID {
	if !ni.Valid {
		return engine.NoNode
	}
	return engine.NodeID(ni.Int64)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// ============================================================================
// JSON Marshaling Helpers
// ============================================================================

// unmarshalJSONField unmarshals JSON from a nullable column into target
func unmarshalJSONField(ns sql.NullString, target any) error {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	return json.Unmarshal([]byte(ns.String), target)
}

// unmarshalBuffer decodes stored attribute data into the buffer type for storage
func unmarshalBuffer(storage engine.StorageType, raw []byte) (engine.Buffer, error) {
	switch storage {
	case engine.StorageFloat:
		return decodeSlice[engine.Float32Buffer](storage, raw)
	case engine.StorageFloat64:
		return decodeSlice[engine.Float64Buffer](storage, raw)
	case engine.StorageInt:
		return decodeSlice[engine.Int32Buffer](storage, raw)
	case engine.StorageInt64:
		return decodeSlice[engine.Int64Buffer](storage, raw)
	case engine.StorageUInt8:
		return decodeSlice[engine.UInt8Buffer](storage, raw)
	case engine.StorageInt8:
		return decodeSlice[engine.Int8Buffer](storage, raw)
	case engine.StorageInt16:
		return decodeSlice[engine.Int16Buffer](storage, raw)
	case engine.StorageString:
		return decodeSlice[engine.HandleBuffer](storage, raw)
	}
	return nil, fmt.Errorf("unknown storage %v", storage)
}

func decodeSlice[B engine.Buffer](storage engine.StorageType, raw []byte) (engine.Buffer, error) {
	var b B
	if err := json.Unmarshal(raw, &b); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %v buffer: %w", storage, err)
	}
	return b, nil
}

// ============================================================================
// Node Row Scanner
// ============================================================================

type rowScanner interface {
	Scan(dest ...any) error
}

// scanNode reads id, parent_id, operator, name, commits
func scanNode(row rowScanner) (engine.NodeInfo, error) {
	var (
		info   engine.NodeInfo
		parent sql.NullInt64
	)
	if err := row.Scan(&info.ID, &parent, &info.Operator, &info.Name, &info.Commits); err != nil {
		return engine.NodeInfo{}, fmt.Errorf("failed to scan node: %w", err)
	}
	info.Parent = nullToNode(parent)
	return info, nil
}
