package hub

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/matryer/is"

	"geobridge/internal/service"
)

func TestFormat(t *testing.T) {
	is := is.New(t)

	msg, err := Format(service.Event{Type: service.EventNodeCreated, Payload: service.NodePayload{Node: 3, Name: "Forest_a_0000ABCD"}})
	is.NoErr(err)
	is.Equal(string(msg), "event: node_created\n"+
		`data: {"type":"node_created","payload":{"node":3,"name":"Forest_a_0000ABCD"}}`+"\n\n")
}

func TestStreamsBusEvents(t *testing.T) {
	is := is.New(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := New(nil)
	go h.Run(ctx)
	bus := service.NewEventBus()
	h.Attach(ctx, bus)

	ts := httptest.NewServer(h)
	defer ts.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL, nil)
	is.NoErr(err)
	resp, err := http.DefaultClient.Do(req)
	is.NoErr(err) // sse request failed
	defer resp.Body.Close()
	is.Equal(resp.Header.Get("Content-Type"), "text/event-stream")

	lines := bufio.NewScanner(resp.Body)
	is.True(lines.Scan())
	is.Equal(lines.Text(), ": connected")

	deadline := time.Now().Add(5 * time.Second)
	for h.ClientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	is.Equal(h.ClientCount(), 1)

	bus.Publish(service.Event{Type: service.EventAssetFinalized, Payload: service.AssetPayload{Path: "/Game/PCG/Out", Items: 2}})

	var got []string
	for lines.Scan() {
		line := lines.Text()
		if line == "" && len(got) > 0 {
			break
		}
		if line != "" {
			got = append(got, line)
		}
	}
	is.Equal(len(got), 2)
	is.Equal(got[0], "event: asset_finalized")
	is.True(strings.Contains(got[1], `"path":"/Game/PCG/Out"`))
}

func TestParseTypes(t *testing.T) {
	is := is.New(t)

	r := httptest.NewRequest(http.MethodGet, "/events?type=node_created,node_deleted&type=asset_finalized&type=", nil)
	types := parseTypes(r)
	is.Equal(len(types), 3)
	is.True(types[service.EventNodeDeleted])
	is.True(types[service.EventAssetFinalized])

	is.Equal(parseTypes(httptest.NewRequest(http.MethodGet, "/events", nil)), nil) // no filter
}

func TestStreamFiltersTypes(t *testing.T) {
	is := is.New(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := New(nil)
	go h.Run(ctx)

	ts := httptest.NewServer(h)
	defer ts.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"?type=asset_finalized", nil)
	is.NoErr(err)
	resp, err := http.DefaultClient.Do(req)
	is.NoErr(err)
	defer resp.Body.Close()

	lines := bufio.NewScanner(resp.Body)
	is.True(lines.Scan())
	is.Equal(lines.Text(), ": connected")

	deadline := time.Now().Add(5 * time.Second)
	for h.ClientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	h.Broadcast(service.Event{Type: service.EventNodeCreated, Payload: service.NodePayload{Node: 1}})
	h.Broadcast(service.Event{Type: service.EventAssetFinalized, Payload: service.AssetPayload{Path: "/Game/A"}})

	is.True(lines.Scan())
	is.Equal(lines.Text(), "event: asset_finalized") // node event was filtered out
}
