package chain

import "vulkan.dev/core/consensus"

// EventKind distinguishes the two notifications the chain worker emits
// after a tip move, per spec.md §4.7/§4.8.
type EventKind int

const (
	BlockConnected EventKind = iota
	BlockDisconnected
)

// Event is delivered to every function registered with Manager.Subscribe
// after each connect/disconnect the chain worker performs. The mempool in
// this package is updated by the worker directly, not through Subscribe.
type Event struct {
	Kind   EventKind
	Block  *consensus.Block
	Height uint64
}
