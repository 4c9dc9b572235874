package service

import (
	"context"
	"fmt"

	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"go.opentelemetry.io/otel"

	"geobridge/internal/codec"
	"geobridge/internal/domain"
	"geobridge/internal/engine"
)

var tracer = otel.Tracer("geobridge/service")

// InputStore persists input bookkeeping between runs
type InputStore interface {
	LoadInput(ctx context.Context, name string) (engine.InputState, bool, error)
	SaveInput(ctx context.Context, name string, state engine.InputState) error
}

// Options configure a Bridge
type Options struct {
	PositionScale float64
	Prefix        string
	Include       []string
	Exclude       []string
	Operator      string
	Upload        UploadOptions
	Retrieve      RetrieveOptions
}

// Bridge wires the upload and retrieve pipelines over one session
type Bridge struct {
	session  engine.Session
	inputs   InputStore
	assets   AssetStore
	eventBus *EventBus
	tasks    *DeferredQueue
	operator string

	dispatch  *Dispatcher
	uploader  *Uploader
	retriever *Retriever
}

// NewBridge creates a bridge. inputs may be nil, in which case every
// upload starts from an empty input.
func NewBridge(session engine.Session, inputs InputStore, assets AssetStore, eventBus *EventBus, opts Options) (*Bridge, error) {
	filter, err := NewAttributeFilter(opts.Include, opts.Exclude)
	if err != nil {
		return nil, err
	}
	if opts.Prefix == "" {
		opts.Prefix = DefaultAttributePrefix
	}

	conv := codec.NewConverter(opts.PositionScale)
	tasks := NewDeferredQueue()
	dispatch := NewDispatcher(session, conv, opts.Prefix, filter)

	return &Bridge{
		session:   session,
		inputs:    inputs,
		assets:    assets,
		eventBus:  eventBus,
		tasks:     tasks,
		operator:  opts.Operator,
		dispatch:  dispatch,
		uploader:  NewUploader(session, conv, dispatch, opts.Upload),
		retriever: NewRetriever(session, conv, dispatch, assets, tasks, eventBus, opts.Retrieve),
	}, nil
}

// Events returns the bus the bridge publishes on
func (b *Bridge) Events() *EventBus { return b.eventBus }

// Retriever returns the download pipeline
func (b *Bridge) Retriever() *Retriever { return b.retriever }

// Uploader returns the upload pipeline
func (b *Bridge) Uploader() *Uploader { return b.uploader }

// Pending returns the number of queued finalize tasks
func (b *Bridge) Pending() int { return b.tasks.Len() }

func (b *Bridge) loadState(ctx context.Context, input string) (engine.InputState, error) {
	state := engine.InputState{GeoNode: engine.NoNode, MergeNode: engine.NoNode}
	if b.inputs == nil {
		return state, nil
	}
	saved, ok, err := b.inputs.LoadInput(ctx, input)
	if err != nil {
		return state, fmt.Errorf("failed to load input %s: %w", input, err)
	}
	if ok {
		state = saved
	}
	return state, nil
}

func (b *Bridge) saveState(ctx context.Context, input string, state engine.InputState) error {
	if b.inputs == nil {
		return nil
	}
	if err := b.inputs.SaveInput(ctx, input, state); err != nil {
		return fmt.Errorf("failed to save input %s: %w", input, err)
	}
	return nil
}

// AssetInput restores the named asset input from its saved state
func (b *Bridge) AssetInput(ctx context.Context, input string, source AssetSource) (*AssetInput, error) {
	state, err := b.loadState(ctx, input)
	if err != nil {
		return nil, err
	}
	return NewAssetInput(input, b.operator, b.session, source, b.uploader, state, b.eventBus), nil
}

// UploadAsset uploads the asset at path into the named input and saves
// the input's slots. The state is saved even when the upload fails so
// committed nodes are reused next time.
func (b *Bridge) UploadAsset(ctx context.Context, input string, source AssetSource, path string) (engine.InputState, error) {
	in, err := b.AssetInput(ctx, input, source)
	if err != nil {
		return engine.InputState{}, err
	}
	in.SetAsset(path)

	uploadErr := in.Upload(ctx)
	state := in.State()
	if err := b.saveState(ctx, input, state); err != nil {
		return state, err
	}
	return state, uploadErr
}

// UploadSources uploads every source into the named component input in
// one pass and saves the input's slots
func (b *Bridge) UploadSources(ctx context.Context, input string, sources []ComponentSource) (engine.InputState, error) {
	state, err := b.loadState(ctx, input)
	if err != nil {
		return state, err
	}
	in := NewComponentInput(input, b.operator, b.session, b.uploader, state, b.eventBus)

	uploadErr := in.Upload(ctx, sources)
	state = in.State()
	if err := b.saveState(ctx, input, state); err != nil {
		return state, err
	}
	return state, uploadErr
}

// UploadCollection uploads c as a single source of the named input
func (b *Bridge) UploadCollection(ctx context.Context, input string, c *domain.Collection) (engine.InputState, error) {
	src := domain.Source{Name: ObjectName(c.Path), Path: c.Path}
	return b.UploadSources(ctx, input, []ComponentSource{{Source: src, Items: c.Items}})
}

// DestroyInput deletes every node the named input owns, including its
// geo and merge nodes
func (b *Bridge) DestroyInput(ctx context.Context, input string) error {
	state, err := b.loadState(ctx, input)
	if err != nil {
		return err
	}
	in := NewComponentInput(input, b.operator, b.session, b.uploader, state, b.eventBus)
	if err := in.Destroy(ctx); err != nil {
		return err
	}
	if err := in.Merge().Destroy(ctx); err != nil {
		return err
	}
	return b.saveState(ctx, input, in.State())
}

// Retrieve decodes every valid output part of node into the asset store.
// Finalization is queued; call Flush to run it.
func (b *Bridge) Retrieve(ctx context.Context, node engine.NodeID, outputName string) ([]*domain.Collection, error) {
	return b.retriever.RetrieveNode(ctx, node, outputName)
}

// Flush runs the queued finalize tasks
func (b *Bridge) Flush(ctx context.Context) error {
	n := b.tasks.Len()
	if n == 0 {
		return nil
	}
	logging.GetFromContext(ctx).Debug("running deferred tasks", "count", n)
	return b.tasks.Drain(ctx)
}
