// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package relay

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/luxfi/onft"
)

const (
	failureReasonUntrustedSource   = "untrusted_source"
	failureReasonSequenceViolation = "sequence_violation"
	failureReasonDecode            = "decode_error"
	failureReasonEndpointNotFound  = "endpoint_not_found"
	failureReasonCanceled          = "canceled"
	failureReasonOther             = "other"
)

type Metrics struct {
	sentMessageCount      *prometheus.CounterVec
	deliveredMessageCount *prometheus.CounterVec
	failedMessageCount    *prometheus.CounterVec
	deadLetterCount       prometheus.Gauge
}

func NewMetrics(registerer prometheus.Registerer) *Metrics {
	m := Metrics{
		sentMessageCount: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "onft_relay_sent_count",
				Help: "Number of messages accepted by the relay",
			},
			[]string{"source_chain_id", "destination_chain_id"},
		),
		deliveredMessageCount: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "onft_relay_delivered_count",
				Help: "Number of messages applied by the destination",
			},
			[]string{"source_chain_id", "destination_chain_id"},
		),
		failedMessageCount: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "onft_relay_failed_count",
				Help: "Number of delivery attempts rejected by the destination",
			},
			[]string{"source_chain_id", "destination_chain_id", "failure_reason"},
		),
		deadLetterCount: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "onft_relay_dead_letter_count",
				Help: "Number of undelivered messages held as dead letters",
			},
		),
	}

	registerer.MustRegister(m.sentMessageCount)
	registerer.MustRegister(m.deliveredMessageCount)
	registerer.MustRegister(m.failedMessageCount)
	registerer.MustRegister(m.deadLetterCount)

	return &m
}

func (m *Metrics) sent(d *Delivery) {
	m.sentMessageCount.WithLabelValues(d.Src.ChainID.String(), d.Dst.ChainID.String()).Inc()
}

func (m *Metrics) delivered(d *Delivery) {
	m.deliveredMessageCount.WithLabelValues(d.Src.ChainID.String(), d.Dst.ChainID.String()).Inc()
}

func (m *Metrics) failed(d *Delivery, err error) {
	m.failedMessageCount.WithLabelValues(
		d.Src.ChainID.String(),
		d.Dst.ChainID.String(),
		failureReason(err),
	).Inc()
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, onft.ErrUntrustedSource):
		return failureReasonUntrustedSource
	case errors.Is(err, onft.ErrSequenceViolation):
		return failureReasonSequenceViolation
	case errors.Is(err, onft.ErrDecode):
		return failureReasonDecode
	case errors.Is(err, onft.ErrEndpointNotFound):
		return failureReasonEndpointNotFound
	case errors.Is(err, onft.ErrDeliveryCanceled):
		return failureReasonCanceled
	default:
		return failureReasonOther
	}
}
