// Copyright (C) 2019-2025, Lux Partners Limited. All rights reserved.
// See the file LICENSE for licensing terms.

package onft

import (
	"fmt"

	"github.com/luxfi/geth/rlp"
)

// CodecVersion is the only encoding version understood by this package
const CodecVersion = 0

// Marshal serializes v with RLP.
func Marshal(v interface{}) ([]byte, error) {
	return rlp.EncodeToBytes(v)
}

// Unmarshal deserializes b into v. Any failure is reported as ErrDecode.
func Unmarshal(b []byte, v interface{}) (uint16, error) {
	if err := rlp.DecodeBytes(b, v); err != nil {
		return CodecVersion, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return CodecVersion, nil
}
