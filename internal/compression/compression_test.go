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

package compression

import (
	"bytes"
	"strings"
	"testing"
)

func TestCompressRoundTrip(t *testing.T) {
	original := []byte(strings.Repeat("append-entries-payload", 50))

	compressed := Compress(original)
	decompressed, err := Decompress(compressed)
	if err != nil {
		t.Fatalf("Decompress() error: %v", err)
	}
	if !bytes.Equal(original, decompressed) {
		t.Fatalf("round trip mismatch: got %q, want %q", decompressed, original)
	}
}

func TestCompressEmpty(t *testing.T) {
	compressed := Compress(nil)
	decompressed, err := Decompress(compressed)
	if err != nil {
		t.Fatalf("Decompress() error: %v", err)
	}
	if len(decompressed) != 0 {
		t.Fatalf("expected empty round trip, got %q", decompressed)
	}
}
