// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package registry

import (
	"slices"
	"time"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"

	"github.com/luxfi/onft"
)

// EventKind is the kind of ownership change recorded for a token
type EventKind uint8

const (
	EventMinted EventKind = iota + 1
	EventTransferred
	EventMovedOut
	EventReceived
	EventRolledBack
)

func (k EventKind) String() string {
	switch k {
	case EventMinted:
		return "minted"
	case EventTransferred:
		return "transferred"
	case EventMovedOut:
		return "moved-out"
	case EventReceived:
		return "received"
	case EventRolledBack:
		return "rolled-back"
	default:
		return "unknown"
	}
}

// Event is one entry of a token's provenance on this ledger
type Event struct {
	Kind EventKind
	From common.Address
	To   common.Address
	// Peer is the remote chain for moves and receives
	Peer     onft.ChainID
	Sequence uint64
	At       time.Time
}

// History returns the events recorded for tokenID on this ledger, oldest first
func (r *Registry) History(tokenID *uint256.Int) []Event {
	if tokenID == nil {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	return slices.Clone(r.history[*tokenID])
}

// record appends e to the history of key. Caller must hold r.mu.
func (r *Registry) record(key uint256.Int, e Event) {
	e.At = time.Now()
	r.history[key] = append(r.history[key], e)
}
