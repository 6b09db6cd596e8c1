//go:build !(linux || darwin)

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
	"errors"
	"os"
)

// ErrUnsupported is returned where shared-memory segments are not
// implemented for the current platform.
var ErrUnsupported = errors.New("shm: shared memory segments not supported on this platform")

// Segment is a mapped shared-memory segment backing one ring.
type Segment struct {
	File *os.File
	Mem  []byte
	Path string
}

// CreateSegment is not supported on this platform.
func CreateSegment(parentPID uint32, logFilename string, ringSize uint64) (*Segment, error) {
	return nil, ErrUnsupported
}

// OpenSegment is not supported on this platform.
func OpenSegment(parentPID uint32, logFilename string, ringSize uint64) (*Segment, error) {
	return nil, ErrUnsupported
}

// Close is a no-op on this platform.
func (s *Segment) Close() error { return nil }

// Unlink is a no-op on this platform.
func (s *Segment) Unlink() error { return nil }
