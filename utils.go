// Copyright (C) 2019-2025, Lux Partners Limited. All rights reserved.
// See the file LICENSE for licensing terms.

package onft

import (
	"crypto/sha256"
)

// KiB is 1024 bytes
const KiB = 1024

// ComputeHash256Array computes SHA256 hash
func ComputeHash256Array(data []byte) [32]byte {
	return sha256.Sum256(data)
}
