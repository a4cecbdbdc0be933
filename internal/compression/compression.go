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

/*
Package compression wraps Snappy for the wire frames internal/transport
sends between peers: AppendEntries batches and Pre-prepare blocks can
carry enough payload (many log entries, large block data) that
compressing them before the write syscall is worth the CPU.
*/
package compression

import (
	"github.com/golang/snappy"
)

// MinCompressSize is the payload size below which compressing is not
// worth the overhead; internal/transport skips compression under this
// threshold.
const MinCompressSize = 256

// Compress returns the Snappy-compressed form of data.
func Compress(data []byte) []byte {
	return snappy.Encode(nil, data)
}

// Decompress returns the Snappy-decompressed form of data.
func Decompress(data []byte) ([]byte, error) {
	return snappy.Decode(nil, data)
}
