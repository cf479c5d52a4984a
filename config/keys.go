// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package config

const (
	// Command line option keys
	ConfigFileKey = "config-file"

	// Environment variable keys
	ConfigFileEnvKey = "CONFIG_FILE"

	// Top-level configuration keys
	LogLevelKey         = "log-level"
	DeliveryModeKey     = "delivery-mode"
	DeliveryDelayKey    = "delivery-delay"
	ReceiptCacheSizeKey = "receipt-cache-size"
	LedgersKey          = "ledgers"
	LinksKey            = "links"
)
