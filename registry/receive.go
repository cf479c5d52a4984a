// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package registry

import (
	"context"
	"fmt"

	"github.com/luxfi/geth/common"
	"go.uber.org/zap"

	"github.com/luxfi/onft"
)

// Receive is the inbound handler invoked by the relay. A message from an
// untrusted source or out of order leaves the registry untouched and its
// sequence number unconsumed. An undecodable message consumes its sequence
// number and is otherwise dropped.
func (r *Registry) Receive(
	_ context.Context,
	srcChainID onft.ChainID,
	srcAddress []byte,
	sequence uint64,
	payload []byte,
) error {
	logger := r.logger.With(
		zap.Stringer("sourceChainID", srcChainID),
		zap.String("sourceAddress", common.Bytes2Hex(srcAddress)),
		zap.Uint64("sequence", sequence),
	)

	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.trust.IsTrusted(srcChainID, srcAddress) {
		logger.Warn("Rejected message from untrusted source.")
		return fmt.Errorf("%w: %s on chain %s", onft.ErrUntrustedSource, common.Bytes2Hex(srcAddress), srcChainID)
	}

	path := inboundPath{chainID: srcChainID, address: string(srcAddress)}
	expected := r.inbound[path] + 1
	if sequence != expected {
		logger.Warn("Rejected out of order message.", zap.Uint64("expected", expected))
		return fmt.Errorf("%w: got %d, expected %d", onft.ErrSequenceViolation, sequence, expected)
	}

	// A message that cannot be decoded never will be, so its sequence number
	// is consumed and the path stays open for the messages behind it.
	body, err := onft.ParseTransferBody(payload)
	if err != nil {
		r.inbound[path] = sequence
		logger.Warn("Dropped undecodable message.", zap.Error(err))
		return err
	}
	if body.OriginChainID != srcChainID {
		r.inbound[path] = sequence
		logger.Warn("Dropped message with mismatched origin.", zap.Stringer("originChainID", body.OriginChainID))
		return fmt.Errorf("%w: origin chain %s does not match source chain %s", onft.ErrDecode, body.OriginChainID, srcChainID)
	}

	key := *body.TokenID
	if prev, ok := r.owners[key]; ok {
		logger.Warn(
			"Overwriting existing record on receive.",
			zap.String("tokenID", body.TokenID.Dec()),
			zap.Stringer("previousOwner", prev),
		)
		r.removeToken(key, prev)
	}
	r.addToken(key, body.Recipient)
	r.inbound[path] = sequence
	r.record(key, Event{
		Kind:     EventReceived,
		To:       body.Recipient,
		Peer:     srcChainID,
		Sequence: sequence,
	})

	logger.Info(
		"Received token.",
		zap.String("tokenID", body.TokenID.Dec()),
		zap.Stringer("owner", body.Recipient),
	)
	return nil
}
