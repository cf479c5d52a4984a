// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package relay

import (
	"context"

	"github.com/luxfi/geth/common"

	"github.com/luxfi/onft"
)

// Endpoint is the address through which a ledger's registry sends and
// receives relay messages.
type Endpoint struct {
	ChainID onft.ChainID
	Address common.Address
}

func (e Endpoint) String() string {
	return e.ChainID.String() + "/" + e.Address.Hex()
}

// Receiver is the inbound entry point of a registered endpoint
type Receiver interface {
	// Receive handles a message sent from srcAddress on srcChainID. A non-nil
	// error means the message was rejected and nothing was applied.
	Receive(ctx context.Context, srcChainID onft.ChainID, srcAddress []byte, sequence uint64, payload []byte) error
}

// ReceiverFunc adapts a function to the Receiver interface
type ReceiverFunc func(ctx context.Context, srcChainID onft.ChainID, srcAddress []byte, sequence uint64, payload []byte) error

func (f ReceiverFunc) Receive(ctx context.Context, srcChainID onft.ChainID, srcAddress []byte, sequence uint64, payload []byte) error {
	return f(ctx, srcChainID, srcAddress, sequence, payload)
}
