package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/matryer/is"

	"geobridge/internal/content"
	"geobridge/internal/domain"
	"geobridge/internal/engine"
	"geobridge/internal/engine/sqlite"
	"geobridge/internal/service"
)

type testEnv struct {
	is      *is.I
	server  *httptest.Server
	session *sqlite.Session
	store   *content.Store
	bridge  *service.Bridge
}

func setupTest(t *testing.T) *testEnv {
	is := is.New(t)

	session, err := sqlite.New(":memory:")
	is.NoErr(err) // failed to open session
	t.Cleanup(func() { session.Close() })

	bus := service.NewEventBus()
	store := content.NewStore("", bus)
	bridge, err := service.NewBridge(session, session, store, bus, service.Options{
		Upload:   service.UploadOptions{MarkOutput: true},
		Retrieve: service.RetrieveOptions{Meshes: true},
	})
	is.NoErr(err) // failed to create bridge

	r := NewRouter(RouterOptions{}, NewNodeHandler(session, bridge), NewAssetHandler(store), nil)
	ts := httptest.NewServer(r)
	t.Cleanup(ts.Close)

	return &testEnv{is: is, server: ts, session: session, store: store, bridge: bridge}
}

// uploadForest uploads a two point set and returns its node
func (e *testEnv) uploadForest(t *testing.T) engine.NodeID {
	ps := domain.NewPointSet("trees")
	ps.Points = []domain.Point{
		domain.NewPoint(domain.Vector3{X: 1, Y: 2, Z: 3}),
		domain.NewPoint(domain.Vector3{X: 4, Y: 5, Z: 6}),
	}
	ps.Points[1].Entry = 1
	c := domain.NewCollection("/Game/PCG/Forest")
	c.Items = []domain.TaggedData{{Tags: []string{"trees"}, Data: ps}}

	state, err := e.bridge.UploadCollection(context.Background(), "forest", c)
	e.is.NoErr(err) // upload failed
	e.is.Equal(len(state.Slots), 1)
	return state.Slots[0]
}

func (e *testEnv) request(method, path string) (*http.Response, string) {
	req, err := http.NewRequest(method, e.server.URL+path, nil)
	e.is.NoErr(err)
	resp, err := http.DefaultClient.Do(req)
	e.is.NoErr(err) // http request failed
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	e.is.NoErr(err) // failed to read response body
	return resp, string(body)
}

func TestListNodes(t *testing.T) {
	e := setupTest(t)
	node := e.uploadForest(t)

	resp, body := e.request(http.MethodGet, "/api/nodes")
	e.is.Equal(resp.StatusCode, http.StatusOK)

	var nodes []engine.NodeInfo
	e.is.NoErr(json.Unmarshal([]byte(body), &nodes))
	e.is.Equal(len(nodes), 3) // geo, merge and the uploaded node

	found := false
	for _, n := range nodes {
		if n.ID == node {
			found = true
			e.is.True(strings.HasPrefix(n.Name, "Forest_trees_"))
		}
	}
	e.is.True(found)
}

func TestGetNode(t *testing.T) {
	e := setupTest(t)
	node := e.uploadForest(t)

	resp, body := e.request(http.MethodGet, "/api/nodes/"+jsonID(node))
	e.is.Equal(resp.StatusCode, http.StatusOK)

	var view NodeView
	e.is.NoErr(json.Unmarshal([]byte(body), &view))
	e.is.Equal(view.ID, node)
	e.is.Equal(len(view.Parts), 1)
	e.is.Equal(view.Parts[0].PointCount, 2)

	names := map[string]bool{}
	for _, a := range view.Parts[0].Attributes["point"] {
		names[a.Name] = true
	}
	e.is.True(names["P"])
	e.is.True(names["rot"])
	e.is.True(names["unreal_object_path"])
}

func TestGetNodeErrors(t *testing.T) {
	e := setupTest(t)

	resp, body := e.request(http.MethodGet, "/api/nodes/999")
	e.is.Equal(resp.StatusCode, http.StatusNotFound)
	e.is.True(strings.Contains(body, "Not found"))

	resp, _ = e.request(http.MethodGet, "/api/nodes/abc")
	e.is.Equal(resp.StatusCode, http.StatusBadRequest)
}

func TestRetrieveAndExport(t *testing.T) {
	e := setupTest(t)
	node := e.uploadForest(t)

	resp, body := e.request(http.MethodPost, "/api/nodes/"+jsonID(node)+"/retrieve?output=trees")
	e.is.Equal(resp.StatusCode, http.StatusOK)

	var res RetrieveResult
	e.is.NoErr(json.Unmarshal([]byte(body), &res))
	e.is.Equal(res.Output, "trees")
	e.is.Equal(len(res.Assets), 1)
	e.is.Equal(res.Assets[0].Path, "/Game/PCG/Forest")
	e.is.Equal(res.Assets[0].Kinds, []string{"points"})
	e.is.True(!e.store.Modified("/Game/PCG/Forest")) // finalized before the reply

	resp, body = e.request(http.MethodGet, "/api/assets")
	e.is.Equal(resp.StatusCode, http.StatusOK)
	e.is.True(strings.Contains(body, `"path":"/Game/PCG/Forest"`))

	resp, body = e.request(http.MethodGet, "/api/assets/Game/PCG/Forest")
	e.is.Equal(resp.StatusCode, http.StatusOK)
	e.is.Equal(resp.Header.Get("Content-Type"), "application/x-yaml")
	e.is.True(strings.Contains(body, "kind: points"))

	resp, body = e.request(http.MethodGet, "/api/assets/Game/PCG/Forest?format=json")
	e.is.Equal(resp.StatusCode, http.StatusOK)
	e.is.True(json.Valid([]byte(body)))

	resp, _ = e.request(http.MethodGet, "/api/assets/Game/Missing")
	e.is.Equal(resp.StatusCode, http.StatusNotFound)
}

func TestRetrieveDisabled(t *testing.T) {
	is := is.New(t)
	session, err := sqlite.New(":memory:")
	is.NoErr(err)
	defer session.Close()

	r := NewRouter(RouterOptions{}, NewNodeHandler(session, nil), NewAssetHandler(content.NewStore("", nil)), nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/nodes/1/retrieve", nil))
	is.Equal(rec.Code, http.StatusNotImplemented)
}

func jsonID(id engine.NodeID) string {
	b, _ := json.Marshal(id)
	return string(b)
}
