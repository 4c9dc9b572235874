package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"geobridge/internal/engine"

	_ "modernc.org/sqlite"
)

// Session implements engine.Session on top of SQLite
type Session struct {
	db *sql.DB
}

var _ engine.Session = (*Session)(nil)

// New opens (or creates) a session store at dbPath. Use ":memory:" for an
// ephemeral store.
func New(dbPath string) (*Session, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection keeps :memory: databases shared and serializes calls
	db.SetMaxOpenConns(1)

	s := &Session{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return s, nil
}

func (s *Session) migrate() error {
	schema := `
	PRAGMA foreign_keys = ON;

	CREATE TABLE IF NOT EXISTS nodes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		parent_id INTEGER REFERENCES nodes(id) ON DELETE CASCADE,
		operator TEXT NOT NULL,
		name TEXT NOT NULL,
		commits INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		committed_at DATETIME
	);

	CREATE TABLE IF NOT EXISTS node_inputs (
		node_id INTEGER NOT NULL,
		input_index INTEGER NOT NULL,
		source_id INTEGER NOT NULL,
		PRIMARY KEY (node_id, input_index),
		FOREIGN KEY (node_id) REFERENCES nodes(id) ON DELETE CASCADE,
		FOREIGN KEY (source_id) REFERENCES nodes(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS parts (
		node_id INTEGER NOT NULL,
		part_id INTEGER NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		type INTEGER NOT NULL,
		point_count INTEGER NOT NULL,
		vertex_count INTEGER NOT NULL,
		face_count INTEGER NOT NULL,
		PRIMARY KEY (node_id, part_id),
		FOREIGN KEY (node_id) REFERENCES nodes(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS attributes (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		node_id INTEGER NOT NULL,
		part_id INTEGER NOT NULL,
		owner INTEGER NOT NULL,
		name TEXT NOT NULL,
		storage INTEGER NOT NULL,
		tuple_size INTEGER NOT NULL,
		type_info INTEGER NOT NULL,
		count INTEGER NOT NULL,
		is_unique INTEGER NOT NULL DEFAULT 0,
		data JSON,
		UNIQUE (node_id, part_id, owner, name),
		FOREIGN KEY (node_id, part_id) REFERENCES parts(node_id, part_id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS topology (
		node_id INTEGER NOT NULL,
		part_id INTEGER NOT NULL,
		vertex_list JSON,
		face_counts JSON,
		curve_info JSON,
		curve_counts JSON,
		PRIMARY KEY (node_id, part_id),
		FOREIGN KEY (node_id, part_id) REFERENCES parts(node_id, part_id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS strings (
		handle INTEGER PRIMARY KEY AUTOINCREMENT,
		value TEXT NOT NULL UNIQUE
	);

	CREATE TABLE IF NOT EXISTS inputs (
		name TEXT PRIMARY KEY,
		state JSON NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_nodes_parent ON nodes(parent_id);
	CREATE INDEX IF NOT EXISTS idx_attributes_part ON attributes(node_id, part_id, owner);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection
func (s *Session) Close() error {
	return s.db.Close()
}

// ============================================================================
// Nodes
// ============================================================================

// CreateNode creates a node under parent (engine.NoNode for a root node)
func (s *Session) CreateNode(ctx context.Context, parent engine.NodeID, operator, name string) (engine.NodeID, error) {
	if operator == "" {
		return engine.NoNode, engine.Fail("create node", parent, "", fmt.Errorf("empty operator: %w", engine.ErrInvalidArgument))
	}
	if parent.Valid() {
		if err := s.requireNode(ctx, "create node", parent); err != nil {
			return engine.NoNode, err
		}
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO nodes (parent_id, operator, name) VALUES (?, ?, ?)
	`, nodeToNull(parent), operator, name)
	if err != nil {
		return engine.NoNode, fmt.Errorf("failed to insert node: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return engine.NoNode, fmt.Errorf("failed to read node id: %w", err)
	}
	return engine.NodeID(id), nil
}

// DeleteNode deletes a node, its children and all of their geometry
func (s *Session) DeleteNode(ctx context.Context, node engine.NodeID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM nodes WHERE id = ?`, node)
	if err != nil {
		return fmt.Errorf("failed to delete node: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return engine.Fail("delete node", node, "", engine.ErrNodeNotFound)
	}
	return nil
}

// ConnectNodeInput wires source into input slot of node
func (s *Session) ConnectNodeInput(ctx context.Context, node engine.NodeID, input int, source engine.NodeID) error {
	if input < 0 {
		return engine.Fail("connect node input", node, "", engine.ErrInvalidArgument)
	}
	if err := s.requireNode(ctx, "connect node input", node); err != nil {
		return err
	}
	if err := s.requireNode(ctx, "connect node input", source); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO node_inputs (node_id, input_index, source_id) VALUES (?, ?, ?)
		ON CONFLICT(node_id, input_index) DO UPDATE SET source_id = excluded.source_id
	`, node, input, source)
	if err != nil {
		return fmt.Errorf("failed to connect node input: %w", err)
	}
	return nil
}

// NodeInputs lists the nodes connected to node, ordered by input index
func (s *Session) NodeInputs(ctx context.Context, node engine.NodeID) ([]engine.NodeID, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT source_id FROM node_inputs WHERE node_id = ? ORDER BY input_index
	`, node)
	if err != nil {
		return nil, fmt.Errorf("failed to query node inputs: %w", err)
	}
	defer rows.Close()

	var ids []engine.NodeID
	for rows.Next() {
		var id engine.NodeID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan node input: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// CommitGeo marks the node's pending geometry as committed
func (s *Session) CommitGeo(ctx context.Context, node engine.NodeID) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE nodes SET commits = commits + 1, committed_at = CURRENT_TIMESTAMP WHERE id = ?
	`, node)
	if err != nil {
		return fmt.Errorf("failed to commit geometry: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return engine.Fail("commit geo", node, "", engine.ErrNodeNotFound)
	}
	return nil
}

// GeoInfo returns the node's part count
func (s *Session) GeoInfo(ctx context.Context, node engine.NodeID) (engine.GeoInfo, error) {
	if err := s.requireNode(ctx, "get geo info", node); err != nil {
		return engine.GeoInfo{}, err
	}
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM parts WHERE node_id = ?`, node).Scan(&count); err != nil {
		return engine.GeoInfo{}, fmt.Errorf("failed to count parts: %w", err)
	}
	return engine.GeoInfo{NodeID: node, PartCount: count}, nil
}

// Node returns a node's record
func (s *Session) Node(ctx context.Context, node engine.NodeID) (engine.NodeInfo, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, parent_id, operator, name, commits FROM nodes WHERE id = ?
	`, node)
	info, err := scanNode(row)
	if errors.Is(err, sql.ErrNoRows) {
		return engine.NodeInfo{}, engine.Fail("get node", node, "", engine.ErrNodeNotFound)
	}
	return info, err
}

// ListNodes returns every node ordered by id
func (s *Session) ListNodes(ctx context.Context) ([]engine.NodeInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, parent_id, operator, name, commits FROM nodes ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query nodes: %w", err)
	}
	defer rows.Close()

	var nodes []engine.NodeInfo
	for rows.Next() {
		info, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating nodes: %w", err)
	}
	return nodes, nil
}

// ============================================================================
// Parts
// ============================================================================

// SetPartInfo stores part counts and drops any prior geometry on the part
func (s *Session) SetPartInfo(ctx context.Context, node engine.NodeID, part engine.PartID, info engine.PartInfo) error {
	if info.PointCount < 0 || info.VertexCount < 0 || info.FaceCount < 0 {
		return engine.Fail("set part info", node, "", fmt.Errorf("negative element count: %w", engine.ErrInvalidArgument))
	}
	if err := s.requireNode(ctx, "set part info", node); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range []string{
		`DELETE FROM attributes WHERE node_id = ? AND part_id = ?`,
		`DELETE FROM topology WHERE node_id = ? AND part_id = ?`,
		`DELETE FROM parts WHERE node_id = ? AND part_id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, stmt, node, part); err != nil {
			return fmt.Errorf("failed to reset part: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO parts (node_id, part_id, name, type, point_count, vertex_count, face_count)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, node, part, info.Name, info.Type, info.PointCount, info.VertexCount, info.FaceCount); err != nil {
		return fmt.Errorf("failed to insert part: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// PartInfo returns part counts including per-owner attribute counts
func (s *Session) PartInfo(ctx context.Context, node engine.NodeID, part engine.PartID) (engine.PartInfo, error) {
	info := engine.PartInfo{ID: part}
	err := s.db.QueryRowContext(ctx, `
		SELECT name, type, point_count, vertex_count, face_count
		FROM parts WHERE node_id = ? AND part_id = ?
	`, node, part).Scan(&info.Name, &info.Type, &info.PointCount, &info.VertexCount, &info.FaceCount)
	if errors.Is(err, sql.ErrNoRows) {
		return engine.PartInfo{}, engine.Fail("get part info", node, "", engine.ErrPartNotFound)
	}
	if err != nil {
		return engine.PartInfo{}, fmt.Errorf("failed to query part: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT owner, COUNT(*) FROM attributes WHERE node_id = ? AND part_id = ? GROUP BY owner
	`, node, part)
	if err != nil {
		return engine.PartInfo{}, fmt.Errorf("failed to count attributes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var owner engine.AttributeOwner
		var count int
		if err := rows.Scan(&owner, &count); err != nil {
			return engine.PartInfo{}, fmt.Errorf("failed to scan attribute count: %w", err)
		}
		if owner >= 0 && owner < engine.OwnerMax {
			info.AttributeCounts[owner] = count
		}
	}
	return info, rows.Err()
}

// ============================================================================
// Attributes
// ============================================================================

// AddAttribute declares an attribute. Re-adding an existing name clears its data.
func (s *Session) AddAttribute(ctx context.Context, node engine.NodeID, part engine.PartID, name string, info engine.AttributeInfo) error {
	const op = "add attribute"
	if name == "" {
		return engine.Fail(op, node, name, fmt.Errorf("empty name: %w", engine.ErrInvalidArgument))
	}
	if info.TupleSize <= 0 || info.Owner < 0 || info.Owner >= engine.OwnerMax {
		return engine.Fail(op, node, name, fmt.Errorf("tuple size %d owner %v: %w", info.TupleSize, info.Owner, engine.ErrInvalidArgument))
	}
	if info.Storage < engine.StorageInt || info.Storage > engine.StorageInt16 {
		return engine.Fail(op, node, name, fmt.Errorf("storage %v: %w", info.Storage, engine.ErrInvalidArgument))
	}

	partInfo, err := s.PartInfo(ctx, node, part)
	if err != nil {
		return err
	}
	if want := partInfo.ElementCount(info.Owner); info.Count != want {
		return engine.Fail(op, node, name, fmt.Errorf("count %d, %v owner spans %d: %w", info.Count, info.Owner, want, engine.ErrInvalidArgument))
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO attributes (node_id, part_id, owner, name, storage, tuple_size, type_info, count, is_unique, data)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, NULL)
		ON CONFLICT(node_id, part_id, owner, name) DO UPDATE SET
			storage = excluded.storage,
			tuple_size = excluded.tuple_size,
			type_info = excluded.type_info,
			count = excluded.count,
			is_unique = 0,
			data = NULL
	`, node, part, info.Owner, name, info.Storage, info.TupleSize, info.TypeInfo, info.Count)
	if err != nil {
		return fmt.Errorf("failed to add attribute: %w", err)
	}
	return nil
}

// AttributeInfo describes name on owner. A missing attribute reports Exists=false.
func (s *Session) AttributeInfo(ctx context.Context, node engine.NodeID, part engine.PartID, name string, owner engine.AttributeOwner) (engine.AttributeInfo, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT owner, storage, tuple_size, type_info, count, is_unique
		FROM attributes WHERE node_id = ? AND part_id = ? AND owner = ? AND name = ?
	`, node, part, owner, name)

	var info engine.AttributeInfo
	var unique int
	err := row.Scan(&info.Owner, &info.Storage, &info.TupleSize, &info.TypeInfo, &info.Count, &unique)
	if errors.Is(err, sql.ErrNoRows) {
		if _, err := s.PartInfo(ctx, node, part); err != nil {
			return engine.AttributeInfo{}, err
		}
		return engine.AttributeInfo{Owner: owner}, nil
	}
	if err != nil {
		return engine.AttributeInfo{}, fmt.Errorf("failed to query attribute: %w", err)
	}
	info.Exists = true
	info.Unique = unique != 0
	return info, nil
}

// AttributeNames lists attributes on owner in declaration order
func (s *Session) AttributeNames(ctx context.Context, node engine.NodeID, part engine.PartID, owner engine.AttributeOwner) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name FROM attributes WHERE node_id = ? AND part_id = ? AND owner = ? ORDER BY seq
	`, node, part, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to query attribute names: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan attribute name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// SetAttributeData writes count*tuple elements
func (s *Session) SetAttributeData(ctx context.Context, node engine.NodeID, part engine.PartID, name string, info engine.AttributeInfo, data engine.Buffer) error {
	return s.writeAttribute(ctx, "set attribute data", node, part, name, info, data, false)
}

// SetAttributeUniqueData writes one tuple shared by every element
func (s *Session) SetAttributeUniqueData(ctx context.Context, node engine.NodeID, part engine.PartID, name string, info engine.AttributeInfo, tuple engine.Buffer) error {
	return s.writeAttribute(ctx, "set attribute unique data", node, part, name, info, tuple, true)
}

func (s *Session) writeAttribute(ctx context.Context, op string, node engine.NodeID, part engine.PartID, name string, info engine.AttributeInfo, data engine.Buffer, unique bool) error {
	stored, err := s.AttributeInfo(ctx, node, part, name, info.Owner)
	if err != nil {
		return err
	}
	if !stored.Exists {
		return engine.Fail(op, node, name, engine.ErrAttributeNotFound)
	}
	if data.Storage() != stored.Storage {
		return engine.Fail(op, node, name, fmt.Errorf("buffer %v, attribute %v: %w", data.Storage(), stored.Storage, engine.ErrStorageMismatch))
	}

	want := stored.Count * stored.TupleSize
	if unique {
		want = stored.TupleSize
	}
	if data.Len() != want {
		return engine.Fail(op, node, name, fmt.Errorf("buffer length %d, want %d: %w", data.Len(), want, engine.ErrInvalidArgument))
	}

	if strs, ok := data.(engine.StringBuffer); ok {
		handles, err := s.internStrings(ctx, strs)
		if err != nil {
			return err
		}
		data = handles
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal attribute data: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE attributes SET data = ?, is_unique = ?
		WHERE node_id = ? AND part_id = ? AND owner = ? AND name = ?
	`, string(raw), boolToInt(unique), node, part, info.Owner, name)
	if err != nil {
		return fmt.Errorf("failed to write attribute data: %w", err)
	}
	return nil
}

// AttributeData reads an attribute's stored buffer. Unwritten attributes read as zeros.
func (s *Session) AttributeData(ctx context.Context, node engine.NodeID, part engine.PartID, name string, info engine.AttributeInfo) (engine.Buffer, error) {
	var (
		storage   engine.StorageType
		tupleSize int
		count     int
		unique    int
		data      sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT storage, tuple_size, count, is_unique, data
		FROM attributes WHERE node_id = ? AND part_id = ? AND owner = ? AND name = ?
	`, node, part, info.Owner, name).Scan(&storage, &tupleSize, &count, &unique, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, engine.Fail("get attribute data", node, name, engine.ErrAttributeNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query attribute data: %w", err)
	}
	if storage != info.Storage {
		return nil, engine.Fail("get attribute data", node, name, engine.ErrStorageMismatch)
	}

	if !data.Valid {
		return engine.NewBuffer(storage, count*tupleSize)
	}
	return unmarshalBuffer(storage, []byte(data.String))
}

// StringValues resolves handles to strings
func (s *Session) StringValues(ctx context.Context, handles []engine.StringHandle) ([]string, error) {
	out := make([]string, len(handles))
	for i, h := range handles {
		err := s.db.QueryRowContext(ctx, `SELECT value FROM strings WHERE handle = ?`, h).Scan(&out[i])
		if errors.Is(err, sql.ErrNoRows) {
			return nil, engine.Fail("get string", engine.NoNode, "", fmt.Errorf("handle %d: %w", h, engine.ErrInvalidArgument))
		}
		if err != nil {
			return nil, fmt.Errorf("failed to resolve string handle: %w", err)
		}
	}
	return out, nil
}

func (s *Session) internStrings(ctx context.Context, strs engine.StringBuffer) (engine.HandleBuffer, error) {
	handles := make(engine.HandleBuffer, len(strs))
	seen := make(map[string]engine.StringHandle)
	for i, str := range strs {
		if h, ok := seen[str]; ok {
			handles[i] = h
			continue
		}
		if _, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO strings (value) VALUES (?)`, str); err != nil {
			return nil, fmt.Errorf("failed to intern string: %w", err)
		}
		var h engine.StringHandle
		if err := s.db.QueryRowContext(ctx, `SELECT handle FROM strings WHERE value = ?`, str).Scan(&h); err != nil {
			return nil, fmt.Errorf("failed to read string handle: %w", err)
		}
		seen[str] = h
		handles[i] = h
	}
	return handles, nil
}

// ============================================================================
// Input bookkeeping
// ============================================================================

// LoadInput returns the persisted state of a named input
func (s *Session) LoadInput(ctx context.Context, name string) (engine.InputState, bool, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT state FROM inputs WHERE name = ?`, name).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return engine.InputState{GeoNode: engine.NoNode, MergeNode: engine.NoNode}, false, nil
	}
	if err != nil {
		return engine.InputState{}, false, fmt.Errorf("failed to query input: %w", err)
	}

	var state engine.InputState
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		return engine.InputState{}, false, fmt.Errorf("failed to unmarshal input state: %w", err)
	}
	return state, true, nil
}

// SaveInput persists the state of a named input
func (s *Session) SaveInput(ctx context.Context, name string, state engine.InputState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal input state: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO inputs (name, state) VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET state = excluded.state, updated_at = CURRENT_TIMESTAMP
	`, name, string(raw))
	if err != nil {
		return fmt.Errorf("failed to save input: %w", err)
	}
	return nil
}

func (s *Session) requireNode(ctx context.Context, op string, node engine.NodeID) error {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM nodes WHERE id = ?`, node).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return engine.Fail(op, node, "", engine.ErrNodeNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to query node: %w", err)
	}
	return nil
}
