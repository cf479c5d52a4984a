// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package registry

import (
	"context"
	"testing"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/onft"
	"github.com/luxfi/onft/relay"
)

const (
	chainX onft.ChainID = 101
	chainY onft.ChainID = 102
)

var (
	admin    = common.HexToAddress("0x00000000000000000000000000000000000000ad")
	owner    = common.HexToAddress("0x0000000000000000000000000000000000000001")
	alice    = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	bob      = common.HexToAddress("0x00000000000000000000000000000000000000b0")
	spender  = common.HexToAddress("0x000000000000000000000000000000000000005e")
	stranger = common.HexToAddress("0x0000000000000000000000000000000000000bad")

	registryX = common.HexToAddress("0x000000000000000000000000000000000000f00d")
	registryY = common.HexToAddress("0x000000000000000000000000000000000000beef")
)

type sentMessage struct {
	src        relay.Endpoint
	dstChainID onft.ChainID
	payload    []byte
	opts       onft.SendOptions
}

type fakeSender struct {
	sent []sentMessage
	seq  uint64
	err  error
}

func (f *fakeSender) Send(_ context.Context, src relay.Endpoint, dstChainID onft.ChainID, payload []byte, opts onft.SendOptions) (uint64, error) {
	f.seq++
	f.sent = append(f.sent, sentMessage{
		src:        src,
		dstChainID: dstChainID,
		payload:    payload,
		opts:       opts,
	})
	return f.seq, f.err
}

func newTestRegistry(t *testing.T) (*Registry, *fakeSender) {
	t.Helper()

	sender := &fakeSender{}
	reg := New(nil, Config{
		ChainID: chainX,
		Address: registryX,
		Admin:   admin,
	}, sender)
	require.NoError(t, reg.SetRemote(admin, chainY, registryY.Bytes()))
	return reg, sender
}

func transferPayload(t *testing.T, recipient common.Address, tokenID uint64, origin onft.ChainID) []byte {
	t.Helper()

	body, err := onft.NewTransferBody(recipient, uint256.NewInt(tokenID), origin)
	require.NoError(t, err)
	return body.Bytes()
}

func TestMint(t *testing.T) {
	require := require.New(t)

	reg, _ := newTestRegistry(t)
	ctx := context.Background()
	tokenID := uint256.NewInt(1)

	require.NoError(reg.Mint(ctx, owner, tokenID))
	got, err := reg.OwnerOf(tokenID)
	require.NoError(err)
	require.Equal(owner, got)
	require.Equal(uint64(1), reg.BalanceOf(owner))

	err = reg.Mint(ctx, alice, tokenID)
	require.ErrorIs(err, onft.ErrAlreadyExists)
	got, err = reg.OwnerOf(tokenID)
	require.NoError(err)
	require.Equal(owner, got)
	require.Zero(reg.BalanceOf(alice))

	history := reg.History(tokenID)
	require.Len(history, 1)
	require.Equal(EventMinted, history[0].Kind)
	require.Equal(owner, history[0].To)
}

func TestMintDefaultOwner(t *testing.T) {
	require := require.New(t)

	reg := New(nil, Config{ChainID: chainX, Address: registryX, Admin: admin, DefaultOwner: alice}, &fakeSender{})
	require.NoError(reg.Mint(context.Background(), common.Address{}, uint256.NewInt(3)))

	got, err := reg.OwnerOf(uint256.NewInt(3))
	require.NoError(err)
	require.Equal(alice, got)

	noDefault := New(nil, Config{ChainID: chainX, Address: registryX, Admin: admin}, &fakeSender{})
	err = noDefault.Mint(context.Background(), common.Address{}, uint256.NewInt(3))
	require.ErrorIs(err, onft.ErrInvalidRecipient)
}

func TestOwnerOfMissing(t *testing.T) {
	reg, _ := newTestRegistry(t)

	_, err := reg.OwnerOf(uint256.NewInt(42))
	require.ErrorIs(t, err, onft.ErrTokenNotFound)

	_, err = reg.OwnerOf(nil)
	require.ErrorIs(t, err, onft.ErrTokenNotFound)
}

func TestApprove(t *testing.T) {
	require := require.New(t)

	reg, _ := newTestRegistry(t)
	ctx := context.Background()
	tokenID := uint256.NewInt(1)

	require.ErrorIs(reg.Approve(ctx, owner, tokenID, spender), onft.ErrTokenNotFound)
	_, err := reg.GetApproved(tokenID)
	require.ErrorIs(err, onft.ErrTokenNotFound)

	require.NoError(reg.Mint(ctx, owner, tokenID))
	approved, err := reg.GetApproved(tokenID)
	require.NoError(err)
	require.Equal(common.Address{}, approved)

	require.ErrorIs(reg.Approve(ctx, stranger, tokenID, spender), onft.ErrNotOwner)
	require.ErrorIs(reg.Approve(ctx, spender, tokenID, spender), onft.ErrNotOwner)

	require.NoError(reg.Approve(ctx, owner, tokenID, spender))
	approved, err = reg.GetApproved(tokenID)
	require.NoError(err)
	require.Equal(spender, approved)

	// Approving the zero address clears it
	require.NoError(reg.Approve(ctx, owner, tokenID, common.Address{}))
	approved, err = reg.GetApproved(tokenID)
	require.NoError(err)
	require.Equal(common.Address{}, approved)
}

func TestTransferFrom(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name        string
		approve     bool
		caller      common.Address
		from        common.Address
		to          common.Address
		expectedErr error
	}{
		{
			name:   "owner",
			caller: owner,
			from:   owner,
			to:     alice,
		},
		{
			name:    "approved spender",
			approve: true,
			caller:  spender,
			from:    owner,
			to:      alice,
		},
		{
			name:        "stranger",
			caller:      stranger,
			from:        owner,
			to:          alice,
			expectedErr: onft.ErrNotOwnerNorApproved,
		},
		{
			name:        "wrong from",
			caller:      alice,
			from:        alice,
			to:          bob,
			expectedErr: onft.ErrNotOwner,
		},
		{
			name:        "zero recipient",
			caller:      owner,
			from:        owner,
			to:          common.Address{},
			expectedErr: onft.ErrInvalidRecipient,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require := require.New(t)

			reg, _ := newTestRegistry(t)
			tokenID := uint256.NewInt(1)
			require.NoError(reg.Mint(ctx, owner, tokenID))
			if tt.approve {
				require.NoError(reg.Approve(ctx, owner, tokenID, spender))
			}

			err := reg.TransferFrom(ctx, tt.caller, tt.from, tt.to, tokenID)
			if tt.expectedErr != nil {
				require.ErrorIs(err, tt.expectedErr)
				got, err := reg.OwnerOf(tokenID)
				require.NoError(err)
				require.Equal(owner, got)
				return
			}

			require.NoError(err)
			got, err := reg.OwnerOf(tokenID)
			require.NoError(err)
			require.Equal(tt.to, got)
			require.Zero(reg.BalanceOf(owner))
			require.Equal(uint64(1), reg.BalanceOf(tt.to))

			approved, err := reg.GetApproved(tokenID)
			require.NoError(err)
			require.Equal(common.Address{}, approved)
		})
	}
}

func TestMoveValidatesBeforeBurn(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name        string
		caller      common.Address
		tokenID     *uint256.Int
		recipient   common.Address
		dstChainID  onft.ChainID
		expectedErr error
	}{
		{
			name:        "not owner",
			caller:      stranger,
			tokenID:     uint256.NewInt(1),
			recipient:   alice,
			dstChainID:  chainY,
			expectedErr: onft.ErrNotOwner,
		},
		{
			name:        "approved spender must use MoveFrom",
			caller:      spender,
			tokenID:     uint256.NewInt(1),
			recipient:   alice,
			dstChainID:  chainY,
			expectedErr: onft.ErrNotOwner,
		},
		{
			name:        "token not found",
			caller:      owner,
			tokenID:     uint256.NewInt(2),
			recipient:   alice,
			dstChainID:  chainY,
			expectedErr: onft.ErrTokenNotFound,
		},
		{
			name:        "zero recipient",
			caller:      owner,
			tokenID:     uint256.NewInt(1),
			recipient:   common.Address{},
			dstChainID:  chainY,
			expectedErr: onft.ErrInvalidRecipient,
		},
		{
			name:        "no trusted remote",
			caller:      owner,
			tokenID:     uint256.NewInt(1),
			recipient:   alice,
			dstChainID:  onft.ChainID(999),
			expectedErr: onft.ErrNoTrustedRemote,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require := require.New(t)

			reg, sender := newTestRegistry(t)
			tokenID := uint256.NewInt(1)
			require.NoError(reg.Mint(ctx, owner, tokenID))
			require.NoError(reg.Approve(ctx, owner, tokenID, spender))

			_, err := reg.Move(ctx, tt.caller, tt.tokenID, tt.recipient, tt.dstChainID, MoveOptions{})
			require.ErrorIs(err, tt.expectedErr)
			require.Empty(sender.sent)

			got, err := reg.OwnerOf(tokenID)
			require.NoError(err)
			require.Equal(owner, got)
			approved, err := reg.GetApproved(tokenID)
			require.NoError(err)
			require.Equal(spender, approved)
		})
	}
}

func TestMove(t *testing.T) {
	require := require.New(t)

	reg, sender := newTestRegistry(t)
	ctx := context.Background()
	tokenID := uint256.NewInt(1)
	require.NoError(reg.Mint(ctx, owner, tokenID))
	require.NoError(reg.Approve(ctx, owner, tokenID, spender))

	opts := MoveOptions{SendOptions: onft.SendOptions{GasLimitHint: 200_000, RefundAddress: owner}}
	seq, err := reg.Move(ctx, owner, tokenID, alice, chainY, opts)
	require.NoError(err)
	require.Equal(uint64(1), seq)

	_, err = reg.OwnerOf(tokenID)
	require.ErrorIs(err, onft.ErrTokenNotFound)
	require.Zero(reg.BalanceOf(owner))
	_, err = reg.GetApproved(tokenID)
	require.ErrorIs(err, onft.ErrTokenNotFound)

	require.Len(sender.sent, 1)
	msg := sender.sent[0]
	require.Equal(relay.Endpoint{ChainID: chainX, Address: registryX}, msg.src)
	require.Equal(chainY, msg.dstChainID)
	require.Equal(opts.SendOptions, msg.opts)

	body, err := onft.ParseTransferBody(msg.payload)
	require.NoError(err)
	require.Equal(alice, body.Recipient)
	require.True(tokenID.Eq(body.TokenID))
	require.Equal(chainX, body.OriginChainID)

	history := reg.History(tokenID)
	require.Len(history, 2)
	require.Equal(EventMovedOut, history[1].Kind)
	require.Equal(owner, history[1].From)
	require.Equal(alice, history[1].To)
	require.Equal(chainY, history[1].Peer)
	require.Equal(uint64(1), history[1].Sequence)
}

func TestMoveFrom(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name        string
		approve     bool
		caller      common.Address
		owner       common.Address
		expectedErr error
	}{
		{
			name:   "owner",
			caller: owner,
			owner:  owner,
		},
		{
			name:    "approved spender",
			approve: true,
			caller:  spender,
			owner:   owner,
		},
		{
			name:        "unapproved spender",
			caller:      spender,
			owner:       owner,
			expectedErr: onft.ErrNotOwnerNorApproved,
		},
		{
			name:        "wrong owner",
			approve:     true,
			caller:      spender,
			owner:       alice,
			expectedErr: onft.ErrNotOwner,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require := require.New(t)

			reg, sender := newTestRegistry(t)
			tokenID := uint256.NewInt(1)
			require.NoError(reg.Mint(ctx, owner, tokenID))
			if tt.approve {
				require.NoError(reg.Approve(ctx, owner, tokenID, spender))
			}

			_, err := reg.MoveFrom(ctx, tt.caller, tt.owner, tokenID, bob, chainY, MoveOptions{})
			if tt.expectedErr != nil {
				require.ErrorIs(err, tt.expectedErr)
				require.Empty(sender.sent)
				got, err := reg.OwnerOf(tokenID)
				require.NoError(err)
				require.Equal(owner, got)
				return
			}

			require.NoError(err)
			require.Len(sender.sent, 1)
			_, err = reg.OwnerOf(tokenID)
			require.ErrorIs(err, onft.ErrTokenNotFound)
		})
	}
}

func TestMoveSendFailureKeepsBurn(t *testing.T) {
	require := require.New(t)

	reg, sender := newTestRegistry(t)
	sender.err = onft.ErrRouteNotFound
	ctx := context.Background()
	tokenID := uint256.NewInt(1)
	require.NoError(reg.Mint(ctx, owner, tokenID))

	_, err := reg.Move(ctx, owner, tokenID, alice, chainY, MoveOptions{})
	require.ErrorIs(err, onft.ErrRouteNotFound)

	_, err = reg.OwnerOf(tokenID)
	require.ErrorIs(err, onft.ErrTokenNotFound)
	require.Zero(reg.BalanceOf(owner))
}

func TestMoveRollbackOnFailure(t *testing.T) {
	require := require.New(t)

	reg, sender := newTestRegistry(t)
	sender.err = onft.ErrRouteNotFound
	ctx := context.Background()
	tokenID := uint256.NewInt(1)
	require.NoError(reg.Mint(ctx, owner, tokenID))
	require.NoError(reg.Approve(ctx, owner, tokenID, spender))

	_, err := reg.MoveFrom(ctx, spender, owner, tokenID, alice, chainY, MoveOptions{RollbackOnFailure: true})
	require.ErrorIs(err, onft.ErrRouteNotFound)

	got, err := reg.OwnerOf(tokenID)
	require.NoError(err)
	require.Equal(owner, got)
	require.Equal(uint64(1), reg.BalanceOf(owner))

	// The approval does not survive the round trip
	approved, err := reg.GetApproved(tokenID)
	require.NoError(err)
	require.Equal(common.Address{}, approved)

	history := reg.History(tokenID)
	require.Len(history, 3)
	require.Equal(EventMovedOut, history[1].Kind)
	require.Equal(EventRolledBack, history[2].Kind)
	require.Equal(owner, history[2].To)
}

func TestReceive(t *testing.T) {
	require := require.New(t)

	reg, _ := newTestRegistry(t)
	ctx := context.Background()
	src := registryY.Bytes()

	require.NoError(reg.Receive(ctx, chainY, src, 1, transferPayload(t, alice, 7, chainY)))
	got, err := reg.OwnerOf(uint256.NewInt(7))
	require.NoError(err)
	require.Equal(alice, got)
	require.Equal(uint64(1), reg.InboundSequence(chainY, src))

	require.NoError(reg.Receive(ctx, chainY, src, 2, transferPayload(t, bob, 8, chainY)))
	require.Equal(uint64(2), reg.InboundSequence(chainY, src))

	history := reg.History(uint256.NewInt(7))
	require.Len(history, 1)
	require.Equal(EventReceived, history[0].Kind)
	require.Equal(chainY, history[0].Peer)
	require.Equal(uint64(1), history[0].Sequence)
}

func TestReceiveRejects(t *testing.T) {
	tests := []struct {
		name        string
		srcChainID  onft.ChainID
		srcAddress  []byte
		sequence    uint64
		payload     func(t *testing.T) []byte
		expectedErr error
		// consumed is set when the rejection uses up the sequence number
		consumed bool
	}{
		{
			name:       "untrusted address",
			srcChainID: chainY,
			srcAddress: stranger.Bytes(),
			sequence:   1,
			payload: func(t *testing.T) []byte {
				return transferPayload(t, alice, 7, chainY)
			},
			expectedErr: onft.ErrUntrustedSource,
		},
		{
			name:       "unknown chain",
			srcChainID: onft.ChainID(5),
			srcAddress: registryY.Bytes(),
			sequence:   1,
			payload: func(t *testing.T) []byte {
				return transferPayload(t, alice, 7, 5)
			},
			expectedErr: onft.ErrUntrustedSource,
		},
		{
			name:       "sequence gap",
			srcChainID: chainY,
			srcAddress: registryY.Bytes(),
			sequence:   2,
			payload: func(t *testing.T) []byte {
				return transferPayload(t, alice, 7, chainY)
			},
			expectedErr: onft.ErrSequenceViolation,
		},
		{
			name:       "zero sequence",
			srcChainID: chainY,
			srcAddress: registryY.Bytes(),
			sequence:   0,
			payload: func(t *testing.T) []byte {
				return transferPayload(t, alice, 7, chainY)
			},
			expectedErr: onft.ErrSequenceViolation,
		},
		{
			name:       "garbage payload",
			srcChainID: chainY,
			srcAddress: registryY.Bytes(),
			sequence:   1,
			payload: func(*testing.T) []byte {
				return []byte{0xde, 0xad}
			},
			expectedErr: onft.ErrDecode,
			consumed:    true,
		},
		{
			name:       "origin mismatch",
			srcChainID: chainY,
			srcAddress: registryY.Bytes(),
			sequence:   1,
			payload: func(t *testing.T) []byte {
				return transferPayload(t, alice, 7, chainX)
			},
			expectedErr: onft.ErrDecode,
			consumed:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require := require.New(t)

			reg, _ := newTestRegistry(t)
			err := reg.Receive(context.Background(), tt.srcChainID, tt.srcAddress, tt.sequence, tt.payload(t))
			require.ErrorIs(err, tt.expectedErr)

			_, err = reg.OwnerOf(uint256.NewInt(7))
			require.ErrorIs(err, onft.ErrTokenNotFound)
			require.Zero(reg.BalanceOf(alice))

			next := uint64(1)
			if tt.consumed {
				require.Equal(tt.sequence, reg.InboundSequence(tt.srcChainID, tt.srcAddress))
				next = tt.sequence + 1
			} else {
				require.Zero(reg.InboundSequence(tt.srcChainID, tt.srcAddress))
			}
			require.NoError(reg.Receive(context.Background(), chainY, registryY.Bytes(), next, transferPayload(t, alice, 7, chainY)))
		})
	}
}

func TestReceiveOverwritesStaleRecord(t *testing.T) {
	require := require.New(t)

	reg, _ := newTestRegistry(t)
	ctx := context.Background()
	tokenID := uint256.NewInt(7)
	require.NoError(reg.Mint(ctx, owner, tokenID))
	require.NoError(reg.Approve(ctx, owner, tokenID, spender))

	require.NoError(reg.Receive(ctx, chainY, registryY.Bytes(), 1, transferPayload(t, alice, 7, chainY)))

	got, err := reg.OwnerOf(tokenID)
	require.NoError(err)
	require.Equal(alice, got)
	require.Zero(reg.BalanceOf(owner))
	require.Equal(uint64(1), reg.BalanceOf(alice))

	approved, err := reg.GetApproved(tokenID)
	require.NoError(err)
	require.Equal(common.Address{}, approved)
}

func TestTokensOf(t *testing.T) {
	require := require.New(t)

	reg, _ := newTestRegistry(t)
	ctx := context.Background()
	for _, id := range []uint64{9, 2, 5} {
		require.NoError(reg.Mint(ctx, owner, uint256.NewInt(id)))
	}
	require.NoError(reg.Mint(ctx, alice, uint256.NewInt(4)))

	tokens := reg.TokensOf(owner)
	require.Len(tokens, 3)
	require.Equal(uint64(2), tokens[0].Uint64())
	require.Equal(uint64(5), tokens[1].Uint64())
	require.Equal(uint64(9), tokens[2].Uint64())
	require.Equal(uint64(3), reg.BalanceOf(owner))

	require.Empty(reg.TokensOf(bob))
}

func TestSetRemoteUnauthorized(t *testing.T) {
	require := require.New(t)

	reg, _ := newTestRegistry(t)
	err := reg.SetRemote(stranger, chainY, stranger.Bytes())
	require.ErrorIs(err, onft.ErrUnauthorized)
	require.True(reg.IsTrusted(chainY, registryY.Bytes()))
	require.False(reg.IsTrusted(chainY, stranger.Bytes()))
}

func TestEventKindString(t *testing.T) {
	tests := []struct {
		kind     EventKind
		expected string
	}{
		{EventMinted, "minted"},
		{EventTransferred, "transferred"},
		{EventMovedOut, "moved-out"},
		{EventReceived, "received"},
		{EventRolledBack, "rolled-back"},
		{EventKind(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			require.Equal(t, tt.expected, tt.kind.String())
		})
	}
}

func TestRemoveRemote(t *testing.T) {
	require := require.New(t)

	reg, sender := newTestRegistry(t)
	ctx := context.Background()
	tokenID := uint256.NewInt(1)
	require.NoError(reg.Mint(ctx, owner, tokenID))

	require.ErrorIs(reg.RemoveRemote(stranger, chainY), onft.ErrUnauthorized)
	require.True(reg.IsTrusted(chainY, registryY.Bytes()))

	require.NoError(reg.RemoveRemote(admin, chainY))
	require.False(reg.IsTrusted(chainY, registryY.Bytes()))

	err := reg.Receive(ctx, chainY, registryY.Bytes(), 1, transferPayload(t, alice, 7, chainY))
	require.ErrorIs(err, onft.ErrUntrustedSource)

	_, err = reg.Move(ctx, owner, tokenID, alice, chainY, MoveOptions{})
	require.ErrorIs(err, onft.ErrNoTrustedRemote)
	require.Empty(sender.sent)
	got, err := reg.OwnerOf(tokenID)
	require.NoError(err)
	require.Equal(owner, got)
}
