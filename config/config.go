// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

// Package config describes a set of ledgers, each hosting one registry, and
// the links that route and trust them pairwise over a single relay.
package config

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/luxfi/geth/common"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/luxfi/onft"
	"github.com/luxfi/onft/registry"
	"github.com/luxfi/onft/relay"
)

const (
	defaultLogLevel         = "info"
	defaultDeliveryMode     = string(relay.DeliveryModeInline)
	defaultDeliveryDelay    = time.Duration(0)
	defaultReceiptCacheSize = 1024
)

var (
	errNoLedgers            = errors.New("no ledgers configured")
	errDuplicateLedgerName  = errors.New("duplicate ledger name")
	errDuplicateChainID     = errors.New("duplicate chain id")
	errInvalidChainID       = errors.New("invalid chain id")
	errInvalidLedgerAddress = errors.New("invalid address")
	errUnknownLedger        = errors.New("unknown ledger")
	errSelfLink             = errors.New("ledger linked to itself")
	errInvalidDeliveryMode  = errors.New("invalid delivery mode")
	errNegativeDelay        = errors.New("negative delivery delay")
)

// LedgerConfig describes one ledger and the registry deployed on it
type LedgerConfig struct {
	Name    string `mapstructure:"name" json:"name"`
	ChainID uint32 `mapstructure:"chain-id" json:"chain-id"`
	// Address of the registry on this ledger
	Address      string `mapstructure:"address" json:"address"`
	Admin        string `mapstructure:"admin" json:"admin"`
	DefaultOwner string `mapstructure:"default-owner" json:"default-owner"`
}

// LinkConfig connects two ledgers both ways
type LinkConfig struct {
	From string `mapstructure:"from" json:"from"`
	To   string `mapstructure:"to" json:"to"`
}

type Config struct {
	LogLevel         string         `mapstructure:"log-level" json:"log-level"`
	DeliveryMode     string         `mapstructure:"delivery-mode" json:"delivery-mode"`
	DeliveryDelay    time.Duration  `mapstructure:"delivery-delay" json:"delivery-delay"`
	ReceiptCacheSize int            `mapstructure:"receipt-cache-size" json:"receipt-cache-size"`
	Ledgers          []LedgerConfig `mapstructure:"ledgers" json:"ledgers"`
	Links            []LinkConfig   `mapstructure:"links" json:"links"`
}

// Validate checks the topology. Ledger names and chain ids must be unique,
// addresses must be non-zero hex addresses and links must name two distinct
// known ledgers.
func (c *Config) Validate() error {
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log level %q: %w", c.LogLevel, err)
	}
	switch relay.DeliveryMode(c.DeliveryMode) {
	case relay.DeliveryModeInline, relay.DeliveryModeQueued:
	default:
		return fmt.Errorf("%w: %q", errInvalidDeliveryMode, c.DeliveryMode)
	}
	if c.DeliveryDelay < 0 {
		return fmt.Errorf("%w: %s", errNegativeDelay, c.DeliveryDelay)
	}
	if len(c.Ledgers) == 0 {
		return errNoLedgers
	}

	names := make(map[string]struct{}, len(c.Ledgers))
	chainIDs := make(map[uint32]struct{}, len(c.Ledgers))
	for i, l := range c.Ledgers {
		if l.Name == "" {
			return fmt.Errorf("ledger %d has no name", i)
		}
		if _, ok := names[l.Name]; ok {
			return fmt.Errorf("%w: %s", errDuplicateLedgerName, l.Name)
		}
		names[l.Name] = struct{}{}

		if l.ChainID == 0 || l.ChainID > math.MaxUint16 {
			return fmt.Errorf("%w: ledger %s has chain id %d", errInvalidChainID, l.Name, l.ChainID)
		}
		if _, ok := chainIDs[l.ChainID]; ok {
			return fmt.Errorf("%w: %d", errDuplicateChainID, l.ChainID)
		}
		chainIDs[l.ChainID] = struct{}{}

		if err := validateAddress(l.Address); err != nil {
			return fmt.Errorf("ledger %s address: %w", l.Name, err)
		}
		if err := validateAddress(l.Admin); err != nil {
			return fmt.Errorf("ledger %s admin: %w", l.Name, err)
		}
		if l.DefaultOwner != "" {
			if err := validateAddress(l.DefaultOwner); err != nil {
				return fmt.Errorf("ledger %s default owner: %w", l.Name, err)
			}
		}
	}

	for _, link := range c.Links {
		if _, ok := names[link.From]; !ok {
			return fmt.Errorf("%w: %q", errUnknownLedger, link.From)
		}
		if _, ok := names[link.To]; !ok {
			return fmt.Errorf("%w: %q", errUnknownLedger, link.To)
		}
		if link.From == link.To {
			return fmt.Errorf("%w: %s", errSelfLink, link.From)
		}
	}
	return nil
}

// Ledger returns the ledger named name
func (c *Config) Ledger(name string) (LedgerConfig, bool) {
	for _, l := range c.Ledgers {
		if l.Name == name {
			return l, true
		}
	}
	return LedgerConfig{}, false
}

// Level returns the parsed log level. Call Validate first.
func (c *Config) Level() zapcore.Level {
	level, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return zapcore.InfoLevel
	}
	return level
}

// RelayConfig returns the relay settings of the topology
func (c *Config) RelayConfig(logger *zap.Logger, registerer prometheus.Registerer) relay.Config {
	return relay.Config{
		Logger:           logger,
		Registerer:       registerer,
		Mode:             relay.DeliveryMode(c.DeliveryMode),
		Delay:            c.DeliveryDelay,
		ReceiptCacheSize: c.ReceiptCacheSize,
	}
}

// RegistryConfig returns the settings of the registry deployed on l. Call
// Validate first.
func (l LedgerConfig) RegistryConfig() registry.Config {
	cfg := registry.Config{
		ChainID: onft.ChainID(l.ChainID),
		Address: common.HexToAddress(l.Address),
		Admin:   common.HexToAddress(l.Admin),
	}
	if l.DefaultOwner != "" {
		cfg.DefaultOwner = common.HexToAddress(l.DefaultOwner)
	}
	return cfg
}

func validateAddress(s string) error {
	if !common.IsHexAddress(s) {
		return fmt.Errorf("%w: %q", errInvalidLedgerAddress, s)
	}
	if common.HexToAddress(s) == (common.Address{}) {
		return fmt.Errorf("%w: zero address", errInvalidLedgerAddress)
	}
	return nil
}
