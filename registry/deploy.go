// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package registry

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/luxfi/onft/relay"
)

// Deploy creates a registry for cfg and registers it as an endpoint of rl.
func Deploy(logger *zap.Logger, rl *relay.Relay, cfg Config) (*Registry, relay.Endpoint, error) {
	reg := New(logger, cfg, rl)
	endpoint := reg.Endpoint()
	if err := rl.RegisterEndpoint(endpoint, reg); err != nil {
		return nil, relay.Endpoint{}, fmt.Errorf("failed to register endpoint %s: %w", endpoint, err)
	}
	return reg, endpoint, nil
}

// Link routes a and b to each other on rl and makes each trust the other,
// using each registry's administrator.
func Link(rl *relay.Relay, a, b *Registry) error {
	if err := rl.RegisterBidirectional(a.Endpoint(), b.Endpoint()); err != nil {
		return err
	}
	if err := a.SetRemote(a.Admin(), b.ChainID(), b.Address().Bytes()); err != nil {
		return err
	}
	return b.SetRemote(b.Admin(), a.ChainID(), a.Address().Bytes())
}
