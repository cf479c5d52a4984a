// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package onft

import (
	"errors"
	"fmt"
)

// Relay errors
var (
	ErrRouteNotFound    = errors.New("route not found")
	ErrEndpointNotFound = errors.New("endpoint not found")
	ErrDeliveryFailed   = errors.New("delivery failed")
	ErrDeliveryCanceled = errors.New("delivery canceled")
	ErrMessageNotFound  = errors.New("message not found")
	ErrPayloadTooLarge  = errors.New("payload too large")
)

// Inbound errors
var (
	ErrUntrustedSource   = errors.New("untrusted source")
	ErrSequenceViolation = errors.New("sequence violation")
	ErrDecode            = errors.New("decode error")
)

// Registry errors
var (
	ErrNotOwner            = errors.New("caller is not owner")
	ErrNotOwnerNorApproved = errors.New("caller is not owner nor approved")
	ErrTokenNotFound       = errors.New("token not found")
	ErrAlreadyExists       = errors.New("token already exists")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrInvalidAddress      = errors.New("invalid address")
	ErrInvalidRecipient    = errors.New("invalid recipient")
	ErrNoTrustedRemote     = errors.New("no trusted remote for destination chain")
)

// DeliveryError is returned when the destination's inbound handler rejects a
// message. It matches ErrDeliveryFailed as well as the handler's error.
type DeliveryError struct {
	MessageID  string
	SrcChainID ChainID
	DstChainID ChainID
	Sequence   uint64
	Err        error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("%s: message %s (%s -> %s, seq %d): %v",
		ErrDeliveryFailed, e.MessageID, e.SrcChainID, e.DstChainID, e.Sequence, e.Err)
}

func (e *DeliveryError) Unwrap() []error {
	return []error{ErrDeliveryFailed, e.Err}
}
