// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

// Package relay routes cross-ledger messages between registered endpoints.
// It assigns per-path sequence numbers and hands each message to the
// destination endpoint's Receiver, either inline or through a per-destination
// queue.
package relay

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/luxfi/ids"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/luxfi/onft"
	"github.com/luxfi/onft/cache"
	"github.com/luxfi/onft/utils"
)

const defaultReceiptCacheSize = 1024

// DeliveryMode selects how the relay hands messages to receivers
type DeliveryMode string

const (
	DeliveryModeInline DeliveryMode = "inline"
	DeliveryModeQueued DeliveryMode = "queued"
)

// Config configures a Relay
type Config struct {
	Logger     *zap.Logger
	Registerer prometheus.Registerer
	Mode       DeliveryMode
	// Delay is applied before every queued delivery
	Delay            time.Duration
	ReceiptCacheSize int
}

// Receipt records a successful delivery
type Receipt struct {
	ID          ids.ID
	Src         Endpoint
	Dst         Endpoint
	Sequence    uint64
	DeliveredAt time.Time
}

// DeadLetter is a message whose delivery failed. It keeps its sequence number
// and can be redriven.
type DeadLetter struct {
	Delivery *Delivery
	Err      error
	Attempts int
	FailedAt time.Time
}

type pathKey struct {
	src Endpoint
	dst Endpoint
}

type path struct {
	mu       sync.Mutex
	sequence uint64
}

// Relay is an in-process stand-in for a cross-ledger transport
type Relay struct {
	logger     *zap.Logger
	metrics    *Metrics
	dispatcher Dispatcher
	receipts   *cache.FIFOCache[ids.ID, Receipt]

	mu        sync.RWMutex
	endpoints map[Endpoint]Receiver
	routes    map[Endpoint]map[onft.ChainID]Endpoint
	paths     map[pathKey]*path

	deadMu      sync.Mutex
	deadLetters map[ids.ID]*DeadLetter
	deadOrder   []ids.ID
}

// New creates a relay
func New(cfg Config) (*Relay, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	registerer := cfg.Registerer
	if registerer == nil {
		registerer = prometheus.NewRegistry()
	}
	receiptCacheSize := cfg.ReceiptCacheSize
	if receiptCacheSize <= 0 {
		receiptCacheSize = defaultReceiptCacheSize
	}

	r := &Relay{
		logger:      logger,
		metrics:     NewMetrics(registerer),
		receipts:    cache.NewFIFOCache[ids.ID, Receipt](receiptCacheSize),
		endpoints:   make(map[Endpoint]Receiver),
		routes:      make(map[Endpoint]map[onft.ChainID]Endpoint),
		paths:       make(map[pathKey]*path),
		deadLetters: make(map[ids.ID]*DeadLetter),
	}

	switch cfg.Mode {
	case DeliveryModeInline, "":
		r.dispatcher = NewInlineDispatcher(r.deliver)
	case DeliveryModeQueued:
		r.dispatcher = NewQueueDispatcher(logger, r.deliver, cfg.Delay)
	default:
		return nil, fmt.Errorf("unknown delivery mode %q", cfg.Mode)
	}
	return r, nil
}

// RegisterEndpoint attaches receiver to endpoint. Re-registration replaces
// the receiver.
func (r *Relay) RegisterEndpoint(endpoint Endpoint, receiver Receiver) error {
	if receiver == nil {
		return fmt.Errorf("%w: nil receiver for %s", onft.ErrEndpointNotFound, endpoint)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.endpoints[endpoint]; ok {
		r.logger.Warn("Replacing endpoint receiver.", zap.Stringer("endpoint", endpoint))
	}
	r.endpoints[endpoint] = receiver
	r.logger.Info("Registered endpoint.", zap.Stringer("endpoint", endpoint))
	return nil
}

// RegisterDestination routes messages sent from local to dstChainID to dst.
// Both endpoints must already be registered. An existing route for the same
// chain is overwritten.
func (r *Relay) RegisterDestination(local Endpoint, dstChainID onft.ChainID, dst Endpoint) error {
	if dst.ChainID != dstChainID {
		return fmt.Errorf("%w: %s is not on chain %s", onft.ErrEndpointNotFound, dst, dstChainID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.endpoints[local]; !ok {
		return fmt.Errorf("%w: %s", onft.ErrEndpointNotFound, local)
	}
	if _, ok := r.endpoints[dst]; !ok {
		return fmt.Errorf("%w: %s", onft.ErrEndpointNotFound, dst)
	}

	routes, ok := r.routes[local]
	if !ok {
		routes = make(map[onft.ChainID]Endpoint)
		r.routes[local] = routes
	}
	if prev, ok := routes[dstChainID]; ok && prev != dst {
		r.logger.Warn(
			"Overwriting route.",
			zap.Stringer("local", local),
			zap.Stringer("previous", prev),
			zap.Stringer("destination", dst),
		)
	}
	routes[dstChainID] = dst
	r.logger.Info(
		"Registered destination.",
		zap.Stringer("local", local),
		zap.Stringer("destination", dst),
	)
	return nil
}

// RegisterBidirectional routes a to b and b to a
func (r *Relay) RegisterBidirectional(a, b Endpoint) error {
	if err := r.RegisterDestination(a, b.ChainID, b); err != nil {
		return err
	}
	return r.RegisterDestination(b, a.ChainID, a)
}

// Send allocates the next sequence number on the path from src to the
// endpoint routed for dstChainID and dispatches payload. The sequence number
// is consumed even when the dispatch fails.
func (r *Relay) Send(
	ctx context.Context,
	src Endpoint,
	dstChainID onft.ChainID,
	payload []byte,
	opts onft.SendOptions,
) (uint64, error) {
	r.mu.RLock()
	_, registered := r.endpoints[src]
	dst, routed := r.routes[src][dstChainID]
	r.mu.RUnlock()

	if !registered {
		return 0, fmt.Errorf("%w: %s", onft.ErrEndpointNotFound, src)
	}
	if !routed {
		return 0, fmt.Errorf("%w: %s has no route to chain %s", onft.ErrRouteNotFound, src, dstChainID)
	}

	p := r.path(src, dst)
	p.mu.Lock()
	defer p.mu.Unlock()

	sequence := p.sequence + 1
	env, err := onft.NewEnvelope(
		src.ChainID,
		src.Address.Bytes(),
		dst.ChainID,
		dst.Address.Bytes(),
		sequence,
		payload,
	)
	if err != nil {
		return 0, err
	}
	p.sequence = sequence

	d := &Delivery{
		ID:       env.ID(),
		Src:      src,
		Dst:      dst,
		Envelope: env,
		Options:  opts,
	}
	r.metrics.sent(d)
	r.logger.Debug(
		"Sending message.",
		zap.Stringer("messageID", d.ID),
		zap.Stringer("source", src),
		zap.Stringer("destination", dst),
		zap.Uint64("sequence", sequence),
		zap.Uint64("gasLimitHint", opts.GasLimitHint),
	)
	return sequence, r.dispatcher.Dispatch(ctx, d)
}

// Sequence returns the last sequence number allocated on the path from src
// to the endpoint routed for dstChainID.
func (r *Relay) Sequence(src Endpoint, dstChainID onft.ChainID) uint64 {
	r.mu.RLock()
	dst, ok := r.routes[src][dstChainID]
	var p *path
	if ok {
		p = r.paths[pathKey{src: src, dst: dst}]
	}
	r.mu.RUnlock()

	if p == nil {
		return 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sequence
}

// Pending returns the number of dispatched messages not yet attempted
func (r *Relay) Pending() int {
	return r.dispatcher.Pending()
}

// Receipt returns the receipt of a recently delivered message
func (r *Relay) Receipt(id ids.ID) (Receipt, bool) {
	return r.receipts.Get(id)
}

// DeadLetters returns the failed messages in the order they first failed
func (r *Relay) DeadLetters() []DeadLetter {
	r.deadMu.Lock()
	defer r.deadMu.Unlock()

	letters := make([]DeadLetter, 0, len(r.deadOrder))
	for _, id := range r.deadOrder {
		letters = append(letters, *r.deadLetters[id])
	}
	return letters
}

// DeadLetter returns the dead letter for id
func (r *Relay) DeadLetter(id ids.ID) (DeadLetter, bool) {
	r.deadMu.Lock()
	defer r.deadMu.Unlock()

	dl, ok := r.deadLetters[id]
	if !ok {
		return DeadLetter{}, false
	}
	return *dl, true
}

// Redrive attempts to deliver a dead letter again, inline, with its original
// sequence number.
func (r *Relay) Redrive(ctx context.Context, id ids.ID) error {
	r.deadMu.Lock()
	dl, ok := r.deadLetters[id]
	r.deadMu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", onft.ErrMessageNotFound, id)
	}

	r.logger.Info(
		"Redriving message.",
		zap.Stringer("messageID", id),
		zap.Uint64("sequence", dl.Delivery.Envelope.Sequence),
		zap.Int("attempts", dl.Attempts),
	)
	return r.deliver(ctx, dl.Delivery)
}

// RedriveWithRetries redrives a dead letter with exponential backoff until it
// is delivered, the timeout elapses or the failure cannot be fixed by retrying.
func (r *Relay) RedriveWithRetries(ctx context.Context, id ids.ID, timeout time.Duration) error {
	operation := func() error {
		err := r.Redrive(ctx, id)
		if errors.Is(err, onft.ErrMessageNotFound) || errors.Is(err, onft.ErrSequenceViolation) {
			return backoff.Permanent(err)
		}
		return err
	}
	return utils.WithRetriesTimeout(ctx, r.logger, operation, timeout)
}

// Discard drops a dead letter that will never be delivered. Its sequence
// number stays consumed on the sending side.
func (r *Relay) Discard(id ids.ID) error {
	r.deadMu.Lock()
	dl, ok := r.deadLetters[id]
	r.deadMu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", onft.ErrMessageNotFound, id)
	}

	r.logger.Warn(
		"Discarding dead letter.",
		zap.Stringer("messageID", id),
		zap.Uint64("sequence", dl.Delivery.Envelope.Sequence),
		zap.Int("attempts", dl.Attempts),
		zap.Error(dl.Err),
	)
	r.clearDeadLetter(id)
	return nil
}

// Close stops the dispatcher. Messages still queued become dead letters.
func (r *Relay) Close() error {
	return r.dispatcher.Close()
}

func (r *Relay) path(src, dst Endpoint) *path {
	key := pathKey{src: src, dst: dst}

	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.paths[key]
	if !ok {
		p = &path{}
		r.paths[key] = p
	}
	return p
}

func (r *Relay) deliver(ctx context.Context, d *Delivery) error {
	var err error
	if ctxErr := ctx.Err(); ctxErr != nil {
		err = fmt.Errorf("%w: %w", onft.ErrDeliveryCanceled, ctxErr)
	} else {
		r.mu.RLock()
		receiver, ok := r.endpoints[d.Dst]
		r.mu.RUnlock()

		if !ok {
			err = fmt.Errorf("%w: %s", onft.ErrEndpointNotFound, d.Dst)
		} else {
			env := d.Envelope
			err = receiver.Receive(ctx, env.SrcChainID, env.SrcAddress, env.Sequence, env.Payload)
		}
	}

	if err != nil {
		derr := &onft.DeliveryError{
			MessageID:  d.ID.String(),
			SrcChainID: d.Src.ChainID,
			DstChainID: d.Dst.ChainID,
			Sequence:   d.Envelope.Sequence,
			Err:        err,
		}
		r.fail(d, derr)
		return derr
	}

	r.receipts.Put(d.ID, Receipt{
		ID:          d.ID,
		Src:         d.Src,
		Dst:         d.Dst,
		Sequence:    d.Envelope.Sequence,
		DeliveredAt: time.Now(),
	})
	r.metrics.delivered(d)
	r.clearDeadLetter(d.ID)
	return nil
}

func (r *Relay) fail(d *Delivery, err error) {
	r.logger.Error(
		"Failed to deliver message.",
		zap.Stringer("messageID", d.ID),
		zap.Stringer("source", d.Src),
		zap.Stringer("destination", d.Dst),
		zap.Uint64("sequence", d.Envelope.Sequence),
		zap.Error(err),
	)
	r.metrics.failed(d, err)

	r.deadMu.Lock()
	defer r.deadMu.Unlock()

	dl, ok := r.deadLetters[d.ID]
	if !ok {
		dl = &DeadLetter{Delivery: d}
		r.deadLetters[d.ID] = dl
		r.deadOrder = append(r.deadOrder, d.ID)
		r.metrics.deadLetterCount.Inc()
	}
	dl.Err = err
	dl.Attempts++
	dl.FailedAt = time.Now()
}

func (r *Relay) clearDeadLetter(id ids.ID) {
	r.deadMu.Lock()
	defer r.deadMu.Unlock()

	if _, ok := r.deadLetters[id]; !ok {
		return
	}
	delete(r.deadLetters, id)
	r.deadOrder = slices.DeleteFunc(r.deadOrder, func(other ids.ID) bool {
		return other == id
	})
	r.metrics.deadLetterCount.Dec()
}
