// Package handler implements the read-mostly HTTP inspection API of geobridge.
//
// # Handlers
//
// NodeHandler exposes the engine session: the node list, one node with its
// parts and attribute layouts, and a trigger that retrieves a node into the
// content store.
//
// AssetHandler exposes the content store: the asset paths it holds and a
// single asset exported as a scene file.
//
// # Routing
//
// NewRouter mounts both handlers and the SSE event stream on a chi router
// with CORS, OpenTelemetry and a request-scoped logger carried in the
// request context.
//
//	GET  /api/nodes
//	GET  /api/nodes/{id}
//	POST /api/nodes/{id}/retrieve?output=name
//	GET  /api/assets
//	GET  /api/assets/*            (?format=json|yaml)
//	GET  /api/events
//
// # Response Format
//
// Success responses return JSON. Error responses return JSON with an
// {error, details} structure and a status derived from the engine error:
// 404 for a missing node, 400 for an invalid argument, 500 otherwise.
package handler
