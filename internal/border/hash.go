/*
 * Copyright (c) 2026 Firefly Software Solutions Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package border

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
)

// zeroHash is 64 '0' characters, used for both genesis's previous_hash
// and the wrong_hash Replica's corrupted Prepare hash.
var zeroHash = strings.Repeat("0", 64)

// computeHash renders SHA-256(data || previousHash || decimal(height))
// as lowercase hex, the binding every Block's block_hash must satisfy.
func computeHash(data, previousHash string, height int64) string {
	h := sha256.New()
	h.Write([]byte(data))
	h.Write([]byte(previousHash))
	h.Write([]byte(strconv.FormatInt(height, 10)))
	return hex.EncodeToString(h.Sum(nil))
}

// genesisBlock builds the fixed genesis block every node starts with.
func genesisBlock() Block {
	return Block{
		BlockHeight:    0,
		PreviousHash:   zeroHash,
		BlockHash:      computeHash("genesis", zeroHash, 0),
		Timestamp:      0,
		Data:           "Genesis Block",
		ViewNumber:     0,
		SequenceNumber: 0,
	}
}

// verifyBlock checks height, chain linkage, and hash binding against
// last, returning a human-readable reason on the first failure.
func verifyBlock(block, last Block) (bool, string) {
	if block.BlockHeight != last.BlockHeight+1 {
		return false, "invalid height"
	}
	if block.PreviousHash != last.BlockHash {
		return false, "invalid previous hash"
	}
	expected := computeHash(block.Data, block.PreviousHash, block.BlockHeight)
	if block.BlockHash != expected {
		return false, "invalid block hash"
	}
	return true, ""
}
