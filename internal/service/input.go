package service

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"

	"geobridge/internal/domain"
	"geobridge/internal/engine"
)

// inputNodes is the node bookkeeping shared by every input kind
type inputNodes struct {
	name     string
	operator string
	session  engine.Session
	uploader *Uploader
	merge    *MergeInput
	eventBus *EventBus

	slots NodeSlots
}

func newInputNodes(name, operator string, session engine.Session, uploader *Uploader, state engine.InputState, eventBus *EventBus) inputNodes {
	return inputNodes{
		name:     name,
		operator: operator,
		session:  session,
		uploader: uploader,
		merge:    NewMergeInput(session, name, state),
		eventBus: eventBus,
		slots:    append(NodeSlots(nil), state.Slots...),
	}
}

// Name returns the input name
func (in *inputNodes) Name() string { return in.name }

// Slots returns the nodes currently holding uploaded objects
func (in *inputNodes) Slots() NodeSlots { return append(NodeSlots(nil), in.slots...) }

// State returns the persistable bookkeeping of the input
func (in *inputNodes) State() engine.InputState { return in.merge.State(in.slots) }

// Merge returns the merge target uploaded nodes are wired into
func (in *inputNodes) Merge() *MergeInput { return in.merge }

func (in *inputNodes) tracker(owner string) *Tracker {
	return NewTracker(in.session, owner, in.operator, in.merge, in.eventBus)
}

// Destroy deletes every uploaded node, last first
func (in *inputNodes) Destroy(ctx context.Context) error {
	slots, err := in.tracker(in.name).Begin(in.slots, in.merge).Finish(ctx)
	in.slots = slots
	if err != nil {
		return err
	}
	in.Invalidate()
	in.eventBus.Publish(Event{Type: EventInputDestroyed, Payload: map[string]string{"input": in.name}})
	return nil
}

// Invalidate forgets every slot without touching the engine, for when the
// session that held them is gone
func (in *inputNodes) Invalidate() {
	in.slots = nil
}

// AssetInput uploads the collection stored at an asset path
type AssetInput struct {
	inputNodes

	source  AssetSource
	asset   string
	changed bool
}

// NewAssetInput creates an asset input. state restores an earlier run.
func NewAssetInput(name, operator string, session engine.Session, source AssetSource, uploader *Uploader, state engine.InputState, eventBus *EventBus) *AssetInput {
	return &AssetInput{
		inputNodes: newInputNodes(name, operator, session, uploader, state, eventBus),
		source:     source,
	}
}

// SetAsset points the input at path and marks it changed when it differs
func (in *AssetInput) SetAsset(path string) {
	if in.asset != path {
		in.asset = path
		in.changed = true
	}
}

// Asset returns the asset path
func (in *AssetInput) Asset() string { return in.asset }

// Changed reports whether the input needs an upload
func (in *AssetInput) Changed() bool { return in.changed }

// MarkChanged requests an upload, for when the asset content changed
func (in *AssetInput) MarkChanged() { in.changed = true }

// Upload reconciles the asset's collection into the input's nodes. A
// missing asset destroys them instead.
func (in *AssetInput) Upload(ctx context.Context) error {
	log := logging.GetFromContext(ctx)

	if in.asset == "" {
		return in.Destroy(ctx)
	}
	coll, err := in.source.Load(ctx, in.asset)
	if errors.Is(err, ErrAssetNotFound) {
		log.Info("asset is gone, destroying input nodes", "input", in.name, "asset", in.asset)
		return in.Destroy(ctx)
	}
	if err != nil {
		return fmt.Errorf("failed to load asset %s: %w", in.asset, err)
	}

	if err := in.merge.Init(ctx); err != nil {
		return err
	}

	owner := ObjectName(coll.Path)
	src := domain.Source{Name: owner, Path: coll.Path}
	slots, actions, err := in.tracker(owner).Reconcile(ctx, coll.Items, in.slots, in.uploader.Encoder(src))
	in.slots = slots
	if err != nil {
		return fmt.Errorf("failed to upload asset %s: %w", in.asset, err)
	}
	in.changed = false

	log.Info("uploaded asset input", "input", in.name, "asset", in.asset, "objects", len(coll.Items), "nodes", len(slots), "created", countActions(actions, ActionCreated))
	in.eventBus.Publish(Event{Type: EventInputUploaded, Payload: map[string]any{"input": in.name, "asset": in.asset, "nodes": len(slots)}})
	return nil
}

// ComponentSource is one source's data for a component input
type ComponentSource struct {
	Source domain.Source
	Items  []domain.TaggedData
}

// ComponentInput uploads several sources into one slot list
type ComponentInput struct {
	inputNodes
}

// NewComponentInput creates a component input. state restores an earlier run.
func NewComponentInput(name, operator string, session engine.Session, uploader *Uploader, state engine.InputState, eventBus *EventBus) *ComponentInput {
	return &ComponentInput{inputNodes: newInputNodes(name, operator, session, uploader, state, eventBus)}
}

// Upload encodes every source in order in a single pass and trims the
// slots none of them used
func (in *ComponentInput) Upload(ctx context.Context, sources []ComponentSource) error {
	if err := in.merge.Init(ctx); err != nil {
		return err
	}

	p := in.tracker(in.name).Begin(in.slots, in.merge)
	objects := 0
	for _, cs := range sources {
		encode := in.uploader.Encoder(cs.Source)
		for _, item := range cs.Items {
			if _, err := p.Encode(ctx, cs.Source.Name, item, encode); err != nil {
				in.slots = p.Slots()
				return fmt.Errorf("failed to upload %s: %w", cs.Source.Name, err)
			}
			objects++
		}
	}

	slots, err := p.Finish(ctx)
	in.slots = slots
	if err != nil {
		return err
	}

	logging.GetFromContext(ctx).Info("uploaded component input", "input", in.name, "sources", len(sources), "objects", objects, "nodes", len(slots))
	in.eventBus.Publish(Event{Type: EventInputUploaded, Payload: map[string]any{"input": in.name, "nodes": len(slots)}})
	return nil
}

// ObjectName returns the object part of an asset path:
// /Game/Data/Points.Points is "Points"
func ObjectName(p string) string {
	base := path.Base(strings.TrimSuffix(p, "/"))
	if i := strings.IndexByte(base, '.'); i >= 0 {
		base = base[:i]
	}
	return base
}

func countActions(actions []Action, want Action) int {
	n := 0
	for _, a := range actions {
		if a == want {
			n++
		}
	}
	return n
}
