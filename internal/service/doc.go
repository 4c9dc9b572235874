// Package service implements the upload and retrieve pipelines between
// scene collections and engine nodes.
//
// # Upload
//
// An Uploader encodes one object (points, curve or mesh) onto part 0 of
// an engine node. A Tracker maps the objects of an input onto a reusable
// list of nodes, NodeSlots: the i-th object reuses the i-th slot or gets
// a new node, and slots left over are deleted last first. AssetInput and
// ComponentInput keep those slots together with the geo and merge nodes
// (MergeInput) every uploaded node is wired into.
//
// # Retrieve
//
// A Retriever decodes the valid output parts of a committed node into
// collections obtained from an AssetStore. Finalizing the touched assets
// is queued as a Task and runs when the owner drains the queue.
//
// # Attributes
//
// Generic attributes travel under a name prefix. The Dispatcher applies
// an AttributeFilter to the unprefixed names and skips attributes whose
// type has no engine encoding.
//
// # Events
//
// Node and asset changes are published on an EventBus for the SSE hub.
package service
