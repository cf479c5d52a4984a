// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/spf13/cobra"

	"github.com/luxfi/onft"
)

func newEncodeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "encode",
		Short: "Encode a transfer message",
		Long:  `Encode the body of a transfer message as hex.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			recipientHex, _ := cmd.Flags().GetString("recipient")
			tokenDec, _ := cmd.Flags().GetString("token")
			origin, _ := cmd.Flags().GetUint16("origin-chain")

			if !common.IsHexAddress(recipientHex) {
				return fmt.Errorf("%w: %q", onft.ErrInvalidRecipient, recipientHex)
			}
			tokenID, err := uint256.FromDecimal(tokenDec)
			if err != nil {
				return fmt.Errorf("invalid token id %q: %w", tokenDec, err)
			}

			body, err := onft.NewTransferBody(common.HexToAddress(recipientHex), tokenID, onft.ChainID(origin))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "0x%x\n", body.Bytes())
			return nil
		},
	}

	cmd.Flags().String("recipient", "", "Recipient address on the destination ledger")
	cmd.Flags().String("token", "", "Token id in decimal")
	cmd.Flags().Uint16("origin-chain", 0, "Chain id of the sending ledger")
	_ = cmd.MarkFlagRequired("recipient")
	_ = cmd.MarkFlagRequired("token")
	_ = cmd.MarkFlagRequired("origin-chain")
	return cmd
}

func newDecodeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "decode <hex>",
		Short: "Decode a transfer message",
		Long:  `Decode the hex encoded body of a transfer message.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := hex.DecodeString(strings.TrimPrefix(args[0], "0x"))
			if err != nil {
				return fmt.Errorf("%w: invalid hex: %v", onft.ErrDecode, err)
			}
			body, err := onft.ParseTransferBody(b)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Recipient: %s\n", body.Recipient)
			fmt.Fprintf(out, "Token ID: %s\n", body.TokenID.Dec())
			fmt.Fprintf(out, "Origin Chain ID: %s\n", body.OriginChainID)
			return nil
		},
	}
}
