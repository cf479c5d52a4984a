// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/luxfi/onft/config"
	"github.com/luxfi/onft/registry"
	"github.com/luxfi/onft/relay"
)

const (
	drainPollInterval = 10 * time.Millisecond
	defaultDrainLimit = 30 * time.Second
)

var errDrainTimeout = errors.New("timed out waiting for queued deliveries")

type simulateOptions struct {
	from       string
	to         string
	owner      string
	recipient  string
	token      string
	rollback   bool
	drainLimit time.Duration
}

func newSimulateCmd() *cobra.Command {
	opts := simulateOptions{}
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Mint a token on one ledger and move it to another",
		Long: `Deploy one registry per ledger of the configured topology, mint a token
on the source ledger and move it to the destination ledger over the relay.
The owner of the token on every ledger is printed once delivery completes.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			v, err := config.BuildViper(cmd.Flags())
			if errors.Is(err, config.ErrConfigFileNotSet) {
				config.DisplayUsageText(cmd.ErrOrStderr())
			}
			if err != nil {
				return err
			}
			cfg, err := config.NewConfig(v)
			if err != nil {
				return err
			}
			return runSimulation(cmd.Context(), cmd.OutOrStdout(), cfg, opts)
		},
	}

	config.AddFlags(cmd.Flags())
	cmd.Flags().StringVar(&opts.from, "from", "", "Ledger the token is minted on")
	cmd.Flags().StringVar(&opts.to, "to", "", "Ledger the token is moved to")
	cmd.Flags().StringVar(&opts.owner, "owner", "", "Owner of the minted token, defaults to the ledger's default owner")
	cmd.Flags().StringVar(&opts.recipient, "recipient", "", "Recipient on the destination ledger, defaults to the owner")
	cmd.Flags().StringVar(&opts.token, "token", "1", "Token id in decimal")
	cmd.Flags().BoolVar(&opts.rollback, "rollback", false, "Restore the token on the source ledger if the move fails")
	cmd.Flags().DurationVar(&opts.drainLimit, "drain-timeout", defaultDrainLimit, "How long to wait for queued deliveries")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(cfg.Level())
	return zapCfg.Build()
}

func runSimulation(ctx context.Context, out io.Writer, cfg config.Config, opts simulateOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	tokenID, err := uint256.FromDecimal(opts.token)
	if err != nil {
		return fmt.Errorf("invalid token id %q: %w", opts.token, err)
	}

	rl, err := relay.New(cfg.RelayConfig(logger, prometheus.NewRegistry()))
	if err != nil {
		return err
	}
	defer func() {
		_ = rl.Close()
	}()

	registries, err := deployTopology(logger, rl, cfg)
	if err != nil {
		return err
	}
	src, ok := registries[opts.from]
	if !ok {
		return fmt.Errorf("unknown source ledger %q", opts.from)
	}
	dst, ok := registries[opts.to]
	if !ok {
		return fmt.Errorf("unknown destination ledger %q", opts.to)
	}

	var owner common.Address
	if opts.owner != "" {
		if !common.IsHexAddress(opts.owner) {
			return fmt.Errorf("invalid owner %q", opts.owner)
		}
		owner = common.HexToAddress(opts.owner)
	}
	if err := src.Mint(ctx, owner, tokenID); err != nil {
		return err
	}
	owner, err = src.OwnerOf(tokenID)
	if err != nil {
		return err
	}

	recipient := owner
	if opts.recipient != "" {
		if !common.IsHexAddress(opts.recipient) {
			return fmt.Errorf("invalid recipient %q", opts.recipient)
		}
		recipient = common.HexToAddress(opts.recipient)
	}

	sequence, moveErr := src.Move(ctx, owner, tokenID, recipient, dst.ChainID(), registry.MoveOptions{
		RollbackOnFailure: opts.rollback,
	})
	fmt.Fprintf(out, "Moved token %s from %s to %s with sequence %d\n", tokenID.Dec(), opts.from, opts.to, sequence)
	if moveErr != nil {
		fmt.Fprintf(out, "Move failed: %v\n", moveErr)
	}

	if err := waitForDeliveries(ctx, rl, opts.drainLimit); err != nil {
		return err
	}

	for _, ledger := range cfg.Ledgers {
		reg := registries[ledger.Name]
		if holder, err := reg.OwnerOf(tokenID); err == nil {
			fmt.Fprintf(out, "%s (chain %s): owned by %s\n", ledger.Name, reg.ChainID(), holder)
		} else {
			fmt.Fprintf(out, "%s (chain %s): no record\n", ledger.Name, reg.ChainID())
		}
	}
	for _, dl := range rl.DeadLetters() {
		fmt.Fprintf(out, "Dead letter %s (%s -> %s, seq %d): %v\n",
			dl.Delivery.ID, dl.Delivery.Src, dl.Delivery.Dst, dl.Delivery.Envelope.Sequence, dl.Err)
	}
	return moveErr
}

// deployTopology deploys one registry per configured ledger and links them
func deployTopology(logger *zap.Logger, rl *relay.Relay, cfg config.Config) (map[string]*registry.Registry, error) {
	registries := make(map[string]*registry.Registry, len(cfg.Ledgers))
	for _, ledger := range cfg.Ledgers {
		reg, endpoint, err := registry.Deploy(logger.With(zap.String("ledger", ledger.Name)), rl, ledger.RegistryConfig())
		if err != nil {
			return nil, err
		}
		logger.Info("Deployed registry.", zap.String("ledger", ledger.Name), zap.Stringer("endpoint", endpoint))
		registries[ledger.Name] = reg
	}
	for _, link := range cfg.Links {
		if err := registry.Link(rl, registries[link.From], registries[link.To]); err != nil {
			return nil, fmt.Errorf("failed to link %s and %s: %w", link.From, link.To, err)
		}
	}
	return registries, nil
}

func waitForDeliveries(ctx context.Context, rl *relay.Relay, limit time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, limit)
	defer cancel()

	ticker := time.NewTicker(drainPollInterval)
	defer ticker.Stop()
	for rl.Pending() > 0 {
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %d pending", errDrainTimeout, rl.Pending())
		case <-ticker.C:
		}
	}
	return nil
}
