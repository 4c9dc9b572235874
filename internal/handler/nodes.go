package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"geobridge/internal/domain"
	"geobridge/internal/engine"
)

// NodeInspector is the read side of an engine session the API lists
type NodeInspector interface {
	ListNodes(ctx context.Context) ([]engine.NodeInfo, error)
	Node(ctx context.Context, node engine.NodeID) (engine.NodeInfo, error)
	GeoInfo(ctx context.Context, node engine.NodeID) (engine.GeoInfo, error)
	PartInfo(ctx context.Context, node engine.NodeID, part engine.PartID) (engine.PartInfo, error)
	AttributeNames(ctx context.Context, node engine.NodeID, part engine.PartID, owner engine.AttributeOwner) ([]string, error)
	AttributeInfo(ctx context.Context, node engine.NodeID, part engine.PartID, name string, owner engine.AttributeOwner) (engine.AttributeInfo, error)
}

// Retriever pulls a node into the content store
type Retriever interface {
	Retrieve(ctx context.Context, node engine.NodeID, outputName string) ([]*domain.Collection, error)
	Flush(ctx context.Context) error
}

// NodeHandler serves engine nodes
type NodeHandler struct {
	nodes     NodeInspector
	retriever Retriever
}

// NewNodeHandler creates a node handler. retriever may be nil, which
// disables the retrieve endpoint.
func NewNodeHandler(nodes NodeInspector, retriever Retriever) *NodeHandler {
	return &NodeHandler{nodes: nodes, retriever: retriever}
}

// AttributeView is one attribute of a part
type AttributeView struct {
	Name string `json:"name"`
	engine.AttributeInfo
}

// PartView is one part with its attributes by owner
type PartView struct {
	engine.PartInfo
	Attributes map[string][]AttributeView `json:"attributes"`
}

// NodeView is the detail reply of GetNode
type NodeView struct {
	engine.NodeInfo
	Parts []PartView `json:"parts"`
}

// RetrieveResult is the reply of Retrieve
type RetrieveResult struct {
	Node   engine.NodeID `json:"node"`
	Output string        `json:"output"`
	Assets []AssetView   `json:"assets"`
}

// ListNodes returns all nodes
func (h *NodeHandler) ListNodes(w http.ResponseWriter, r *http.Request) {
	nodes, err := h.nodes.ListNodes(r.Context())
	if err != nil {
		writeEngineError(w, r, "Failed to list nodes", err)
		return
	}
	if nodes == nil {
		nodes = []engine.NodeInfo{}
	}
	writeJSON(w, nodes, http.StatusOK)
}

// GetNode returns a node with every part and attribute layout
func (h *NodeHandler) GetNode(w http.ResponseWriter, r *http.Request) {
	id, ok := nodeParam(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	info, err := h.nodes.Node(ctx, id)
	if err != nil {
		writeEngineError(w, r, "Failed to get node", err)
		return
	}
	geo, err := h.nodes.GeoInfo(ctx, id)
	if err != nil {
		writeEngineError(w, r, "Failed to get geo info", err)
		return
	}

	view := NodeView{NodeInfo: info, Parts: make([]PartView, 0, geo.PartCount)}
	for p := 0; p < geo.PartCount; p++ {
		part, err := h.part(ctx, id, engine.PartID(p))
		if err != nil {
			writeEngineError(w, r, "Failed to get part", err)
			return
		}
		view.Parts = append(view.Parts, part)
	}
	writeJSON(w, view, http.StatusOK)
}

func (h *NodeHandler) part(ctx context.Context, node engine.NodeID, id engine.PartID) (PartView, error) {
	info, err := h.nodes.PartInfo(ctx, node, id)
	if err != nil {
		return PartView{}, err
	}
	view := PartView{PartInfo: info, Attributes: make(map[string][]AttributeView)}
	for _, owner := range engine.Owners {
		names, err := h.nodes.AttributeNames(ctx, node, id, owner)
		if err != nil {
			return PartView{}, err
		}
		for _, name := range names {
			attr, err := h.nodes.AttributeInfo(ctx, node, id, name, owner)
			if err != nil {
				return PartView{}, err
			}
			view.Attributes[owner.String()] = append(view.Attributes[owner.String()], AttributeView{Name: name, AttributeInfo: attr})
		}
	}
	return view, nil
}

// Retrieve decodes a node into the content store and runs the queued
// finalization before replying
func (h *NodeHandler) Retrieve(w http.ResponseWriter, r *http.Request) {
	if h.retriever == nil {
		writeError(w, "Retrieve disabled", "no retriever configured", http.StatusNotImplemented)
		return
	}
	id, ok := nodeParam(w, r)
	if !ok {
		return
	}
	output := r.URL.Query().Get("output")
	if output == "" {
		output = "output"
	}

	colls, err := h.retriever.Retrieve(r.Context(), id, output)
	if err != nil {
		writeEngineError(w, r, "Failed to retrieve node", err)
		return
	}
	if err := h.retriever.Flush(r.Context()); err != nil {
		writeEngineError(w, r, "Failed to finalize assets", err)
		return
	}

	res := RetrieveResult{Node: id, Output: output, Assets: make([]AssetView, 0, len(colls))}
	for _, c := range colls {
		res.Assets = append(res.Assets, assetView(c))
	}
	writeJSON(w, res, http.StatusOK)
}

func nodeParam(w http.ResponseWriter, r *http.Request) (engine.NodeID, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 32)
	if err != nil || id < 0 {
		writeError(w, "Invalid node ID", "node id must be a non-negative integer", http.StatusBadRequest)
		return engine.NoNode, false
	}
	return engine.NodeID(id), true
}
