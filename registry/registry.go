// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

// Package registry implements the per-ledger asset registry: ERC-721 style
// ownership and approvals plus the burn-on-send / mint-on-receive transfer
// state machine driven over a relay.
package registry

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/math/set"
	"go.uber.org/zap"

	"github.com/luxfi/onft"
	"github.com/luxfi/onft/relay"
	"github.com/luxfi/onft/trust"
)

var _ relay.Receiver = (*Registry)(nil)

// Sender delivers an encoded transfer to the registry trusted on dstChainID.
type Sender interface {
	Send(ctx context.Context, src relay.Endpoint, dstChainID onft.ChainID, payload []byte, opts onft.SendOptions) (uint64, error)
}

// Config configures a Registry
type Config struct {
	ChainID onft.ChainID
	// Address is the registry's own address, used as its relay endpoint
	Address common.Address
	// Admin may change the trust table
	Admin common.Address
	// DefaultOwner receives tokens minted without a caller
	DefaultOwner common.Address
}

type inboundPath struct {
	chainID onft.ChainID
	address string
}

// Registry owns the local slice of every asset's state on one ledger.
type Registry struct {
	logger   *zap.Logger
	config   Config
	endpoint relay.Endpoint
	sender   Sender
	trust    *trust.Table

	mu        sync.Mutex
	owners    map[uint256.Int]common.Address
	approvals map[uint256.Int]common.Address
	tokens    map[common.Address]set.Set[uint256.Int]
	inbound   map[inboundPath]uint64
	history   map[uint256.Int][]Event
}

// New creates a registry that sends through sender
func New(logger *zap.Logger, cfg Config, sender Sender) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(
		zap.Stringer("chainID", cfg.ChainID),
		zap.Stringer("registry", cfg.Address),
	)
	return &Registry{
		logger:    logger,
		config:    cfg,
		endpoint:  relay.Endpoint{ChainID: cfg.ChainID, Address: cfg.Address},
		sender:    sender,
		trust:     trust.NewTable(logger, cfg.Admin),
		owners:    make(map[uint256.Int]common.Address),
		approvals: make(map[uint256.Int]common.Address),
		tokens:    make(map[common.Address]set.Set[uint256.Int]),
		inbound:   make(map[inboundPath]uint64),
		history:   make(map[uint256.Int][]Event),
	}
}

// ChainID returns the id of the ledger hosting this registry
func (r *Registry) ChainID() onft.ChainID {
	return r.config.ChainID
}

// Address returns the registry's address
func (r *Registry) Address() common.Address {
	return r.config.Address
}

// Admin returns the registry's administrator
func (r *Registry) Admin() common.Address {
	return r.config.Admin
}

// Endpoint returns the relay endpoint of this registry
func (r *Registry) Endpoint() relay.Endpoint {
	return r.endpoint
}

// SetRemote trusts remote as the only counterpart on chainID. Only the
// administrator may call it.
func (r *Registry) SetRemote(caller common.Address, chainID onft.ChainID, remote []byte) error {
	if err := r.trust.SetRemote(caller, chainID, remote); err != nil {
		return err
	}
	r.logger.Info(
		"Set trusted remote.",
		zap.Stringer("remoteChainID", chainID),
		zap.String("remote", common.Bytes2Hex(remote)),
	)
	return nil
}

// RemoveRemote revokes trust in chainID. Inbound messages from it are
// rejected and moves to it fail before the burn.
func (r *Registry) RemoveRemote(caller common.Address, chainID onft.ChainID) error {
	if err := r.trust.RemoveRemote(caller, chainID); err != nil {
		return err
	}
	r.logger.Info("Removed trusted remote.", zap.Stringer("remoteChainID", chainID))
	return nil
}

// IsTrusted reports whether claimed is the trusted counterpart on chainID
func (r *Registry) IsTrusted(chainID onft.ChainID, claimed []byte) bool {
	return r.trust.IsTrusted(chainID, claimed)
}

// Mint creates tokenID owned by caller, or by the configured default owner
// when caller is the zero address.
func (r *Registry) Mint(_ context.Context, caller common.Address, tokenID *uint256.Int) error {
	if tokenID == nil {
		return fmt.Errorf("%w: missing token id", onft.ErrTokenNotFound)
	}
	owner := caller
	if owner == (common.Address{}) {
		owner = r.config.DefaultOwner
	}
	if owner == (common.Address{}) {
		return fmt.Errorf("%w: no owner for minted token", onft.ErrInvalidRecipient)
	}

	key := *tokenID

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.owners[key]; ok {
		return fmt.Errorf("%w: token %s", onft.ErrAlreadyExists, tokenID.Dec())
	}
	r.addToken(key, owner)
	r.record(key, Event{Kind: EventMinted, To: owner})

	r.logger.Info(
		"Minted token.",
		zap.String("tokenID", tokenID.Dec()),
		zap.Stringer("owner", owner),
	)
	return nil
}

// Approve lets spender move or transfer tokenID. Only the owner may approve;
// approving the zero address clears the approval.
func (r *Registry) Approve(_ context.Context, caller common.Address, tokenID *uint256.Int, spender common.Address) error {
	if tokenID == nil {
		return fmt.Errorf("%w: missing token id", onft.ErrTokenNotFound)
	}
	key := *tokenID

	r.mu.Lock()
	defer r.mu.Unlock()

	owner, ok := r.owners[key]
	if !ok {
		return fmt.Errorf("%w: token %s", onft.ErrTokenNotFound, tokenID.Dec())
	}
	if caller != owner {
		return fmt.Errorf("%w: %s does not own token %s", onft.ErrNotOwner, caller, tokenID.Dec())
	}

	if spender == (common.Address{}) {
		delete(r.approvals, key)
		return nil
	}
	r.approvals[key] = spender
	return nil
}

// GetApproved returns the approved spender for tokenID, or the zero address
func (r *Registry) GetApproved(tokenID *uint256.Int) (common.Address, error) {
	if tokenID == nil {
		return common.Address{}, fmt.Errorf("%w: missing token id", onft.ErrTokenNotFound)
	}
	key := *tokenID

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.owners[key]; !ok {
		return common.Address{}, fmt.Errorf("%w: token %s", onft.ErrTokenNotFound, tokenID.Dec())
	}
	return r.approvals[key], nil
}

// TransferFrom moves tokenID from its owner to another account on this ledger.
func (r *Registry) TransferFrom(_ context.Context, caller, from, to common.Address, tokenID *uint256.Int) error {
	if tokenID == nil {
		return fmt.Errorf("%w: missing token id", onft.ErrTokenNotFound)
	}
	if to == (common.Address{}) {
		return fmt.Errorf("%w: zero address", onft.ErrInvalidRecipient)
	}
	key := *tokenID

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.authorize(key, caller, from, true); err != nil {
		return err
	}
	r.removeToken(key, from)
	r.addToken(key, to)
	r.record(key, Event{Kind: EventTransferred, From: from, To: to})
	return nil
}

// OwnerOf returns the owner of tokenID on this ledger
func (r *Registry) OwnerOf(tokenID *uint256.Int) (common.Address, error) {
	if tokenID == nil {
		return common.Address{}, fmt.Errorf("%w: missing token id", onft.ErrTokenNotFound)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	owner, ok := r.owners[*tokenID]
	if !ok {
		return common.Address{}, fmt.Errorf("%w: token %s on chain %s", onft.ErrTokenNotFound, tokenID.Dec(), r.config.ChainID)
	}
	return owner, nil
}

// BalanceOf returns the number of tokens account owns on this ledger
func (r *Registry) BalanceOf(account common.Address) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	return uint64(r.tokens[account].Len())
}

// TokensOf returns the tokens account owns on this ledger in ascending order
func (r *Registry) TokensOf(account common.Address) []*uint256.Int {
	r.mu.Lock()
	owned := r.tokens[account].List()
	r.mu.Unlock()

	slices.SortFunc(owned, func(a, b uint256.Int) int {
		return a.Cmp(&b)
	})
	result := make([]*uint256.Int, len(owned))
	for i := range owned {
		result[i] = new(uint256.Int).Set(&owned[i])
	}
	return result
}

// InboundSequence returns the last sequence number consumed from srcAddress
// on srcChainID.
func (r *Registry) InboundSequence(srcChainID onft.ChainID, srcAddress []byte) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.inbound[inboundPath{chainID: srcChainID, address: string(srcAddress)}]
}

// authorize checks that from owns key and that caller is from or, when
// allowApproved is set, the approved spender. Caller must hold r.mu.
func (r *Registry) authorize(key uint256.Int, caller, from common.Address, allowApproved bool) error {
	owner, ok := r.owners[key]
	if !ok {
		return fmt.Errorf("%w: token %s", onft.ErrTokenNotFound, key.Dec())
	}
	if owner != from {
		return fmt.Errorf("%w: %s does not own token %s", onft.ErrNotOwner, from, key.Dec())
	}
	if caller == owner {
		return nil
	}
	if !allowApproved {
		return fmt.Errorf("%w: %s does not own token %s", onft.ErrNotOwner, caller, key.Dec())
	}
	if approved, ok := r.approvals[key]; !ok || approved != caller {
		return fmt.Errorf("%w: %s for token %s", onft.ErrNotOwnerNorApproved, caller, key.Dec())
	}
	return nil
}

// addToken records owner as the owner of key and clears its approval.
// Caller must hold r.mu.
func (r *Registry) addToken(key uint256.Int, owner common.Address) {
	r.owners[key] = owner
	delete(r.approvals, key)

	owned, ok := r.tokens[owner]
	if !ok {
		owned = set.NewSet[uint256.Int](1)
	}
	owned.Add(key)
	r.tokens[owner] = owned
}

// removeToken drops the ownership and approval records of key.
// Caller must hold r.mu.
func (r *Registry) removeToken(key uint256.Int, owner common.Address) {
	delete(r.owners, key)
	delete(r.approvals, key)

	owned := r.tokens[owner]
	owned.Remove(key)
	if owned.Len() == 0 {
		delete(r.tokens, owner)
		return
	}
	r.tokens[owner] = owned
}
