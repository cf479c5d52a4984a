// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package registry

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"go.uber.org/zap"

	"github.com/luxfi/onft"
)

// MoveOptions configures an outbound move
type MoveOptions struct {
	onft.SendOptions

	// RollbackOnFailure restores the burned record to its previous owner when
	// the relay reports a failure. By default a failed send leaves the token
	// burned on this ledger.
	RollbackOnFailure bool
}

// Move burns tokenID, owned by caller, and sends it to recipient on
// dstChainID. It returns the sequence number the relay assigned.
//
// The token is burned before the message is sent. Without
// RollbackOnFailure, a send or delivery failure leaves it burned here with
// no counterpart minted anywhere.
func (r *Registry) Move(
	ctx context.Context,
	caller common.Address,
	tokenID *uint256.Int,
	recipient common.Address,
	dstChainID onft.ChainID,
	opts MoveOptions,
) (uint64, error) {
	return r.move(ctx, caller, caller, tokenID, recipient, dstChainID, opts, false)
}

// MoveFrom is Move on behalf of owner. Caller must be owner or the account
// approved for tokenID.
func (r *Registry) MoveFrom(
	ctx context.Context,
	caller common.Address,
	owner common.Address,
	tokenID *uint256.Int,
	recipient common.Address,
	dstChainID onft.ChainID,
	opts MoveOptions,
) (uint64, error) {
	return r.move(ctx, caller, owner, tokenID, recipient, dstChainID, opts, true)
}

func (r *Registry) move(
	ctx context.Context,
	caller common.Address,
	owner common.Address,
	tokenID *uint256.Int,
	recipient common.Address,
	dstChainID onft.ChainID,
	opts MoveOptions,
	allowApproved bool,
) (uint64, error) {
	// Everything that can be validated locally is checked before the burn.
	if tokenID == nil {
		return 0, fmt.Errorf("%w: missing token id", onft.ErrTokenNotFound)
	}
	if recipient == (common.Address{}) {
		return 0, fmt.Errorf("%w: zero address", onft.ErrInvalidRecipient)
	}
	if _, ok := r.trust.Remote(dstChainID); !ok {
		return 0, fmt.Errorf("%w: chain %s", onft.ErrNoTrustedRemote, dstChainID)
	}
	body, err := onft.NewTransferBody(recipient, tokenID, r.config.ChainID)
	if err != nil {
		return 0, err
	}
	key := *tokenID

	r.mu.Lock()
	if err := r.authorize(key, caller, owner, allowApproved); err != nil {
		r.mu.Unlock()
		return 0, err
	}
	r.removeToken(key, owner)
	r.mu.Unlock()

	logger := r.logger.With(
		zap.String("tokenID", tokenID.Dec()),
		zap.Stringer("owner", owner),
		zap.Stringer("recipient", recipient),
		zap.Stringer("destinationChainID", dstChainID),
	)
	logger.Info("Burned token for move.")

	sequence, sendErr := r.sender.Send(ctx, r.endpoint, dstChainID, body.Bytes(), opts.SendOptions)

	r.mu.Lock()
	defer r.mu.Unlock()

	r.record(key, Event{
		Kind:     EventMovedOut,
		From:     owner,
		To:       recipient,
		Peer:     dstChainID,
		Sequence: sequence,
	})
	if sendErr == nil {
		logger.Info("Sent token.", zap.Uint64("sequence", sequence))
		return sequence, nil
	}

	logger.Error(
		"Failed to send token.",
		zap.Uint64("sequence", sequence),
		zap.Bool("rollback", opts.RollbackOnFailure),
		zap.Error(sendErr),
	)
	if opts.RollbackOnFailure {
		r.rollback(logger, key, owner, dstChainID, sequence)
	}
	return sequence, fmt.Errorf("failed to move token %s to chain %s: %w", tokenID.Dec(), dstChainID, sendErr)
}

// rollback restores a burned token to prevOwner unless a record for it has
// reappeared in the meantime. Caller must hold r.mu.
func (r *Registry) rollback(logger *zap.Logger, key uint256.Int, prevOwner common.Address, dstChainID onft.ChainID, sequence uint64) {
	if current, ok := r.owners[key]; ok {
		logger.Warn("Skipping rollback, token is live again.", zap.Stringer("currentOwner", current))
		return
	}
	r.addToken(key, prevOwner)
	r.record(key, Event{
		Kind:     EventRolledBack,
		To:       prevOwner,
		Peer:     dstChainID,
		Sequence: sequence,
	})
	logger.Info("Rolled back move.")
}
