package service

import (
	"context"
	"fmt"

	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/tracing"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"geobridge/internal/domain"
	"geobridge/internal/engine"
)

// NodeSlots is the ordered list of nodes an input owns, one per uploaded object
type NodeSlots []engine.NodeID

// Action is what a reconcile did with one input object
type Action int

const (
	ActionCreated Action = iota
	ActionReused
	ActionSkipped
)

func (a Action) String() string {
	switch a {
	case ActionCreated:
		return "created"
	case ActionReused:
		return "reused"
	case ActionSkipped:
		return "skipped"
	}
	return fmt.Sprintf("action(%d)", int(a))
}

// MergeTarget receives the nodes a pass creates and is told before any is deleted
type MergeTarget interface {
	// Parent is the node new nodes are created under
	Parent() engine.NodeID
	Connect(ctx context.Context, node engine.NodeID) error
	NodeDestroyed(ctx context.Context, node engine.NodeID) error
}

// EncodeFunc writes one object's geometry onto node
type EncodeFunc func(ctx context.Context, node engine.NodeID, item domain.TaggedData) error

// DefaultOperator is the operator new input nodes are created with
const DefaultOperator = "null"

// Tracker maps input objects onto a reusable list of engine nodes
type Tracker struct {
	session  engine.Session
	owner    string
	operator string
	target   MergeTarget
	eventBus *EventBus

	// suffix returns the unique part of a new node's name
	suffix func() string
}

// NewTracker creates a tracker naming nodes after owner. target may be nil.
func NewTracker(session engine.Session, owner, operator string, target MergeTarget, eventBus *EventBus) *Tracker {
	if operator == "" {
		operator = DefaultOperator
	}
	return &Tracker{
		session:  session,
		owner:    owner,
		operator: operator,
		target:   target,
		eventBus: eventBus,
		suffix:   nodeSuffix,
	}
}

// nodeSuffix returns 8 upper-case hex digits from a random uuid
func nodeSuffix() string {
	id := uuid.New()
	return fmt.Sprintf("%X", id[:4])
}

// NodeName builds the engine name of a node holding data for owner
func (t *Tracker) NodeName(owner, data string) string {
	return fmt.Sprintf("%s_%s_%s", owner, data, t.suffix())
}

// Reconcile encodes objects into slots. The i-th non-empty object reuses
// the i-th slot or gets a new node; empty objects are skipped and consume
// no slot. Slots past the last object are deleted. On failure the slots
// committed so far are returned with the error.
func (t *Tracker) Reconcile(ctx context.Context, objects []domain.TaggedData, slots NodeSlots, encode EncodeFunc) (_ NodeSlots, actions []Action, err error) {
	ctx, span := tracer.Start(ctx, "reconcile", trace.WithAttributes(
		attribute.String("owner", t.owner),
		attribute.Int("objects", len(objects)),
		attribute.Int("slots", len(slots)),
	))
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	p := t.Begin(slots, t.target)
	actions = make([]Action, 0, len(objects))

	for _, item := range objects {
		action, err := p.Encode(ctx, t.owner, item, encode)
		if err != nil {
			return p.Slots(), actions, err
		}
		actions = append(actions, action)
	}

	out, err := p.Finish(ctx)
	return out, actions, err
}

// Begin starts a pass over slots. Several sources may acquire nodes in
// one pass; Finish trims whatever none of them used.
func (t *Tracker) Begin(slots NodeSlots, target MergeTarget) *Pass {
	return &Pass{
		tracker: t,
		target:  target,
		slots:   append(NodeSlots(nil), slots...),
	}
}

// Pass is one reconcile over a slot list
type Pass struct {
	tracker *Tracker
	target  MergeTarget
	slots   NodeSlots
	cursor  int
}

// Slots returns the current slot list
func (p *Pass) Slots() NodeSlots {
	return append(NodeSlots(nil), p.slots...)
}

// Cursor returns the number of slots committed in this pass
func (p *Pass) Cursor() int { return p.cursor }

// Encode places item in the next slot: acquire, encode, commit. An empty
// item is skipped.
func (p *Pass) Encode(ctx context.Context, owner string, item domain.TaggedData, encode EncodeFunc) (Action, error) {
	if item.Data == nil || item.Data.Empty() {
		return ActionSkipped, nil
	}

	node, created, err := p.Acquire(ctx, owner, item.Data.Label())
	if err != nil {
		return ActionSkipped, err
	}
	if err := encode(ctx, node, item); err != nil {
		p.Discard(ctx, node, created)
		return ActionSkipped, fmt.Errorf("failed to encode %s: %w", item.Data.Label(), err)
	}
	if err := p.Commit(ctx, node, created); err != nil {
		return ActionSkipped, err
	}

	if created {
		return ActionCreated, nil
	}
	return ActionReused, nil
}

// Acquire returns the node for the next object: the slot at the cursor
// when there is one, otherwise a newly created node named after owner
// and data.
func (p *Pass) Acquire(ctx context.Context, owner, data string) (engine.NodeID, bool, error) {
	t := p.tracker
	log := logging.GetFromContext(ctx)

	if p.cursor < len(p.slots) {
		node := p.slots[p.cursor]
		log.Debug("reusing node", "node", int32(node), "object", data)
		t.eventBus.Publish(Event{Type: EventNodeReused, Payload: NodePayload{Node: int32(node), Object: data}})
		return node, false, nil
	}

	parent := engine.NoNode
	if p.target != nil {
		parent = p.target.Parent()
	}
	name := t.NodeName(owner, data)
	node, err := t.session.CreateNode(ctx, parent, t.operator, name)
	if err != nil {
		return engine.NoNode, false, fmt.Errorf("failed to create node %s: %w", name, err)
	}
	log.Debug("created node", "node", int32(node), "name", name)
	t.eventBus.Publish(Event{Type: EventNodeCreated, Payload: NodePayload{Node: int32(node), Name: name, Object: data}})
	return node, true, nil
}

// Commit commits node's geometry, connects it to the merge target when
// it was created in this pass and advances the cursor
func (p *Pass) Commit(ctx context.Context, node engine.NodeID, created bool) error {
	if err := p.tracker.session.CommitGeo(ctx, node); err != nil {
		return fmt.Errorf("failed to commit node %d: %w", node, err)
	}
	if created && p.target != nil {
		if err := p.target.Connect(ctx, node); err != nil {
			return fmt.Errorf("failed to connect node %d: %w", node, err)
		}
	}

	if p.cursor < len(p.slots) {
		p.slots[p.cursor] = node
	} else {
		p.slots = append(p.slots, node)
	}
	p.cursor++
	return nil
}

// Discard drops a node acquired but never committed. Reused nodes stay
// in their slot.
func (p *Pass) Discard(ctx context.Context, node engine.NodeID, created bool) {
	if !created {
		return
	}
	if err := p.tracker.session.DeleteNode(ctx, node); err != nil {
		logging.GetFromContext(ctx).Warn("failed to delete uncommitted node", "node", int32(node), "err", err.Error())
	}
}

// Finish deletes every slot past the cursor, last first, and returns the
// trimmed list. The merge target is told about each node before it is
// deleted.
func (p *Pass) Finish(ctx context.Context) (_ NodeSlots, err error) {
	ctx, span := tracer.Start(ctx, "reconcile-finish", trace.WithAttributes(
		attribute.Int("kept", p.cursor),
		attribute.Int("trimmed", len(p.slots)-p.cursor),
	))
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	t := p.tracker
	log := logging.GetFromContext(ctx)

	for i := len(p.slots) - 1; i >= p.cursor; i-- {
		node := p.slots[i]
		if p.target != nil {
			if err := p.target.NodeDestroyed(ctx, node); err != nil {
				return p.Slots(), fmt.Errorf("failed to detach node %d: %w", node, err)
			}
		}
		if err := t.session.DeleteNode(ctx, node); err != nil {
			return p.Slots(), fmt.Errorf("failed to delete node %d: %w", node, err)
		}
		p.slots = p.slots[:i]

		log.Debug("deleted node", "node", int32(node))
		t.eventBus.Publish(Event{Type: EventNodeDeleted, Payload: NodePayload{Node: int32(node)}})
	}
	return p.Slots(), nil
}
