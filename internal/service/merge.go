package service

import (
	"context"
	"fmt"

	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"

	"geobridge/internal/engine"
)

// Operators of the nodes an input owns
const (
	GeoOperator   = "geo"
	MergeOperator = "merge"
)

// MergeInput is the geo/merge node pair every uploaded node of an input
// is wired into
type MergeInput struct {
	session engine.Session
	name    string

	geo    engine.NodeID
	merge  engine.NodeID
	inputs int
}

// NewMergeInput creates a merge target for the named input. state restores
// nodes created by an earlier run.
func NewMergeInput(session engine.Session, name string, state engine.InputState) *MergeInput {
	return &MergeInput{
		session: session,
		name:    name,
		geo:     state.GeoNode,
		merge:   state.MergeNode,
		inputs:  state.MergeInputs,
	}
}

// Init creates the geo and merge nodes when they do not exist yet
func (m *MergeInput) Init(ctx context.Context) error {
	if m.geo.Valid() && m.merge.Valid() {
		return nil
	}

	geo, err := m.session.CreateNode(ctx, engine.NoNode, GeoOperator, m.name)
	if err != nil {
		return fmt.Errorf("failed to create geo node for %s: %w", m.name, err)
	}
	merge, err := m.session.CreateNode(ctx, geo, MergeOperator, m.name+"_merge")
	if err != nil {
		return fmt.Errorf("failed to create merge node for %s: %w", m.name, err)
	}
	m.geo, m.merge, m.inputs = geo, merge, 0

	logging.GetFromContext(ctx).Debug("created input nodes", "input", m.name, "geo", int32(geo), "merge", int32(merge))
	return nil
}

// Parent returns the geo node
func (m *MergeInput) Parent() engine.NodeID { return m.geo }

// MergeNode returns the merge node
func (m *MergeInput) MergeNode() engine.NodeID { return m.merge }

// Inputs returns the number of connected merge inputs
func (m *MergeInput) Inputs() int { return m.inputs }

// Connect wires node into the next merge input
func (m *MergeInput) Connect(ctx context.Context, node engine.NodeID) error {
	if !m.merge.Valid() {
		return fmt.Errorf("input %s is not initialized", m.name)
	}
	if err := m.session.ConnectNodeInput(ctx, m.merge, m.inputs, node); err != nil {
		return err
	}
	m.inputs++
	return nil
}

// NodeDestroyed releases the last merge input
func (m *MergeInput) NodeDestroyed(_ context.Context, _ engine.NodeID) error {
	if m.inputs > 0 {
		m.inputs--
	}
	return nil
}

// Destroy deletes the geo node and everything under it
func (m *MergeInput) Destroy(ctx context.Context) error {
	if !m.geo.Valid() {
		return nil
	}
	if err := m.session.DeleteNode(ctx, m.geo); err != nil {
		return fmt.Errorf("failed to delete geo node for %s: %w", m.name, err)
	}
	m.geo, m.merge, m.inputs = engine.NoNode, engine.NoNode, 0
	return nil
}

// State returns the persistable bookkeeping of the input with its slots
func (m *MergeInput) State(slots NodeSlots) engine.InputState {
	return engine.InputState{
		GeoNode:     m.geo,
		MergeNode:   m.merge,
		MergeInputs: m.inputs,
		Slots:       append([]engine.NodeID(nil), slots...),
	}
}
