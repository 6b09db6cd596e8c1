/*
 * Copyright 2025 IMQS Software
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

package shm

import (
	"encoding/binary"
	"fmt"
	"runtime"

	"github.com/dchest/siphash"
)

// The two fixed SipHash keys. The first four bytes of each are overwritten
// with the parent PID before hashing, so that two producers logging to the
// same filename still get distinct segment names.
var (
	nameKey1 = [16]byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15}
	nameKey2 = [16]byte{15, 14, 13, 12, 11, 10, 9, 8, 7, 6, 5, 4, 3, 2, 1, 0}
)

// Name returns the shared-memory object name for a given parent PID and log
// filename. Both processes compute it independently and must agree byte for
// byte, so everything that goes into it is deterministic: the PID, the
// filename, and two keyed SipHash-2-4 hashes of the filename.
func Name(parentPID uint32, logFilename string) string {
	k1 := nameKey1
	k2 := nameKey2
	binary.LittleEndian.PutUint32(k1[:4], parentPID)
	binary.LittleEndian.PutUint32(k2[:4], parentPID)

	h1 := siphash.Hash(binary.LittleEndian.Uint64(k1[:8]), binary.LittleEndian.Uint64(k1[8:]), []byte(logFilename))
	h2 := siphash.Hash(binary.LittleEndian.Uint64(k2[:8]), binary.LittleEndian.Uint64(k2[8:]), []byte(logFilename))

	prefix := "/"
	if runtime.GOOS == "windows" {
		prefix = ""
	}
	return fmt.Sprintf("%suberlog-shm-%d-%08x%08x%08x%08x", prefix, parentPID,
		uint32(h1>>32), uint32(h1), uint32(h2>>32), uint32(h2))
}

// SegmentSize returns the size of the shared segment backing a ring of the
// given capacity: the data area plus the cursor block, rounded up to a 4096
// byte page. Going right up to the page edge also makes off-by-one errors
// fault instead of silently corrupting neighbouring bytes.
func SegmentSize(ringSize uint64) uint64 {
	return (ringSize + HeadSize + 4095) &^ 4095
}
