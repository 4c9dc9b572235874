package handler

import (
	"bytes"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"geobridge/internal/codec"
	"geobridge/internal/domain"
)

// AssetLister is the read side of the content store
type AssetLister interface {
	Paths() []string
	Get(path string) (*domain.Collection, bool)
}

// AssetHandler serves content store assets
type AssetHandler struct {
	assets AssetLister
}

// NewAssetHandler creates an asset handler
func NewAssetHandler(assets AssetLister) *AssetHandler {
	return &AssetHandler{assets: assets}
}

// AssetView summarizes one asset
type AssetView struct {
	Path  string   `json:"path"`
	Items int      `json:"items"`
	Kinds []string `json:"kinds"`
}

func assetView(c *domain.Collection) AssetView {
	view := AssetView{Path: c.Path, Items: len(c.Items), Kinds: make([]string, 0, len(c.Items))}
	for _, item := range c.Items {
		if item.Data != nil {
			view.Kinds = append(view.Kinds, string(item.Data.Kind()))
		}
	}
	return view
}

// ListAssets returns a summary of every asset
func (h *AssetHandler) ListAssets(w http.ResponseWriter, r *http.Request) {
	paths := h.assets.Paths()
	views := make([]AssetView, 0, len(paths))
	for _, p := range paths {
		if c, ok := h.assets.Get(p); ok {
			views = append(views, assetView(c))
		}
	}
	writeJSON(w, views, http.StatusOK)
}

// GetAsset exports one asset as a scene file, YAML unless ?format=json
func (h *AssetHandler) GetAsset(w http.ResponseWriter, r *http.Request) {
	path := "/" + strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	c, ok := h.assets.Get(path)
	if !ok {
		writeError(w, "Not found", "no asset at "+path, http.StatusNotFound)
		return
	}

	var exp codec.Exporter = codec.NewYAMLCodec()
	contentType := "application/x-yaml"
	if r.URL.Query().Get("format") == "json" {
		exp = codec.NewJSONCodec()
		contentType = "application/json"
	}

	var buf bytes.Buffer
	if err := exp.Export(c, &buf); err != nil {
		writeError(w, "Failed to export asset", err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}
