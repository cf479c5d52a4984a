// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

// Package trust holds the per-registry table of trusted counterpart registries.
package trust

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/luxfi/geth/common"
	"go.uber.org/zap"

	"github.com/luxfi/onft"
)

// Table maps a remote chain id to the single registry address trusted on it.
type Table struct {
	logger  *zap.Logger
	admin   common.Address
	remotes map[onft.ChainID][]byte
	mu      sync.RWMutex
}

// NewTable creates an empty table administered by admin
func NewTable(logger *zap.Logger, admin common.Address) *Table {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Table{
		logger:  logger,
		admin:   admin,
		remotes: make(map[onft.ChainID][]byte),
	}
}

// Admin returns the account allowed to change the table
func (t *Table) Admin() common.Address {
	return t.admin
}

// SetRemote overwrites the trusted counterpart for chainID.
func (t *Table) SetRemote(caller common.Address, chainID onft.ChainID, remote []byte) error {
	if caller != t.admin {
		return fmt.Errorf("%w: %s is not the trust table admin", onft.ErrUnauthorized, caller)
	}
	if len(remote) == 0 {
		return fmt.Errorf("%w: empty remote address for chain %s", onft.ErrInvalidAddress, chainID)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if prev, ok := t.remotes[chainID]; ok && !bytes.Equal(prev, remote) {
		t.logger.Warn(
			"Overwriting trusted remote.",
			zap.Stringer("chainID", chainID),
			zap.String("previous", common.Bytes2Hex(prev)),
			zap.String("remote", common.Bytes2Hex(remote)),
		)
	}
	t.remotes[chainID] = bytes.Clone(remote)
	return nil
}

// RemoveRemote drops the entry for chainID, rejecting all further traffic from it.
func (t *Table) RemoveRemote(caller common.Address, chainID onft.ChainID) error {
	if caller != t.admin {
		return fmt.Errorf("%w: %s is not the trust table admin", onft.ErrUnauthorized, caller)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.remotes, chainID)
	return nil
}

// Remote returns the trusted counterpart for chainID, if any
func (t *Table) Remote(chainID onft.ChainID) ([]byte, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	remote, ok := t.remotes[chainID]
	if !ok {
		return nil, false
	}
	return bytes.Clone(remote), true
}

// IsTrusted reports whether claimed is the configured counterpart for chainID.
func (t *Table) IsTrusted(chainID onft.ChainID, claimed []byte) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	remote, ok := t.remotes[chainID]
	return ok && bytes.Equal(remote, claimed)
}
