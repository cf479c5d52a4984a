// Copyright (C) 2019-2025, Lux Partners Limited. All rights reserved.
// See the file LICENSE for licensing terms.

package onft

import (
	"fmt"
	"strconv"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/ids"
)

const (
	// MaxPayloadSize bounds the opaque payload carried by an Envelope
	MaxPayloadSize = 16 * KiB
)

// ChainID identifies a ledger on the relay.
type ChainID uint16

func (c ChainID) String() string {
	return strconv.FormatUint(uint64(c), 10)
}

// SendOptions are transport hints attached to an outbound message. They are
// advisory: fee accounting belongs to the underlying transport.
type SendOptions struct {
	GasLimitHint  uint64
	RefundAddress common.Address
}

// TransferBody is the payload a registry sends when moving an asset.
type TransferBody struct {
	Recipient     common.Address
	TokenID       *uint256.Int
	OriginChainID ChainID
}

// NewTransferBody creates a new transfer body
func NewTransferBody(recipient common.Address, tokenID *uint256.Int, origin ChainID) (*TransferBody, error) {
	body := &TransferBody{
		Recipient:     recipient,
		TokenID:       tokenID,
		OriginChainID: origin,
	}
	if err := body.Verify(); err != nil {
		return nil, err
	}
	return body, nil
}

// Verify verifies the transfer body
func (b *TransferBody) Verify() error {
	if b.TokenID == nil {
		return fmt.Errorf("%w: missing token id", ErrDecode)
	}
	if b.Recipient == (common.Address{}) {
		return fmt.Errorf("%w: zero recipient", ErrDecode)
	}
	return nil
}

// Bytes returns the wire encoding of the body
func (b *TransferBody) Bytes() []byte {
	bytes, _ := Marshal(b)
	return bytes
}

// ParseTransferBody decodes and verifies a transfer body
func ParseTransferBody(b []byte) (*TransferBody, error) {
	body := &TransferBody{}
	if _, err := Unmarshal(b, body); err != nil {
		return nil, err
	}
	if err := body.Verify(); err != nil {
		return nil, err
	}
	return body, nil
}

// Envelope is the routing wrapper the relay puts around a payload.
type Envelope struct {
	SrcChainID ChainID
	SrcAddress []byte
	DstChainID ChainID
	DstAddress []byte
	Sequence   uint64
	Payload    []byte
}

// NewEnvelope creates a new envelope
func NewEnvelope(
	src ChainID,
	srcAddress []byte,
	dst ChainID,
	dstAddress []byte,
	sequence uint64,
	payload []byte,
) (*Envelope, error) {
	env := &Envelope{
		SrcChainID: src,
		SrcAddress: srcAddress,
		DstChainID: dst,
		DstAddress: dstAddress,
		Sequence:   sequence,
		Payload:    payload,
	}
	if err := env.Verify(); err != nil {
		return nil, err
	}
	return env, nil
}

// Verify verifies the envelope
func (e *Envelope) Verify() error {
	if e.Sequence == 0 {
		return fmt.Errorf("%w: sequence must start at 1", ErrDecode)
	}
	if len(e.Payload) > MaxPayloadSize {
		return fmt.Errorf("%w: size %d exceeds maximum %d", ErrPayloadTooLarge, len(e.Payload), MaxPayloadSize)
	}
	return nil
}

// Bytes returns the byte representation of the envelope
func (e *Envelope) Bytes() []byte {
	b, _ := Marshal(e)
	return b
}

// ID returns the hash of the envelope
func (e *Envelope) ID() ids.ID {
	return ids.ID(ComputeHash256Array(e.Bytes()))
}

// ParseEnvelope parses an envelope from bytes
func ParseEnvelope(b []byte) (*Envelope, error) {
	env := &Envelope{}
	if _, err := Unmarshal(b, env); err != nil {
		return nil, err
	}
	if err := env.Verify(); err != nil {
		return nil, err
	}
	return env, nil
}
