//go:build linux || darwin

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
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"
)

// Segment is a mapped shared-memory segment backing one ring.
//
// The producer creates and unlinks it; the writer only opens and unmaps.
// That asymmetry keeps recovery simple: the segment lives exactly as long
// as the producer does.
type Segment struct {
	File *os.File
	Mem  []byte
	Path string
}

// segmentPath maps an object name to a filesystem path. /dev/shm is
// preferred when present; otherwise the OS temp directory. Both processes
// run the same check against the same filesystem, so they agree.
func segmentPath(name string) string {
	base := strings.TrimPrefix(name, "/")
	if info, err := os.Stat("/dev/shm"); err == nil && info.IsDir() {
		return filepath.Join("/dev/shm", base)
	}
	return filepath.Join(os.TempDir(), base)
}

// CreateSegment creates, sizes and maps the segment for a ring of the given
// capacity. Creation is exclusive; if a stale file is left over from a
// producer with the same PID and filename that crashed before unlinking,
// it is removed and creation retried once.
func CreateSegment(parentPID uint32, logFilename string, ringSize uint64) (*Segment, error) {
	path := segmentPath(Name(parentPID, logFilename))
	size := SegmentSize(ringSize)

	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0600)
	if errors.Is(err, fs.ErrExist) {
		os.Remove(path)
		file, err = os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0600)
	}
	if err != nil {
		return nil, fmt.Errorf("shm: create segment %s: %w", path, err)
	}

	if err := file.Truncate(int64(size)); err != nil {
		file.Close()
		os.Remove(path)
		return nil, fmt.Errorf("shm: size segment %s: %w", path, err)
	}

	mem, err := unix.Mmap(int(file.Fd()), 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		file.Close()
		os.Remove(path)
		return nil, fmt.Errorf("shm: mmap segment %s: %w", path, err)
	}

	return &Segment{File: file, Mem: mem, Path: path}, nil
}

// OpenSegment maps an existing segment created by the producer. It fails if
// the segment does not exist yet (the producer may not have created it, or
// may already have unlinked it) or if its size does not cover the expected
// ring capacity.
func OpenSegment(parentPID uint32, logFilename string, ringSize uint64) (*Segment, error) {
	path := segmentPath(Name(parentPID, logFilename))
	size := SegmentSize(ringSize)

	file, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("shm: open segment %s: %w", path, err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("shm: stat segment %s: %w", path, err)
	}
	if info.Size() < int64(size) {
		file.Close()
		return nil, fmt.Errorf("shm: segment %s is %d bytes, expected at least %d", path, info.Size(), size)
	}

	mem, err := unix.Mmap(int(file.Fd()), 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("shm: mmap segment %s: %w", path, err)
	}

	return &Segment{File: file, Mem: mem, Path: path}, nil
}

// Close unmaps the segment and closes the backing file. It does not remove
// the file; only the producer unlinks, via Unlink.
func (s *Segment) Close() error {
	var first error
	if s.Mem != nil {
		if err := unix.Munmap(s.Mem); err != nil {
			first = fmt.Errorf("shm: munmap: %w", err)
		}
		s.Mem = nil
	}
	if s.File != nil {
		if err := s.File.Close(); err != nil && first == nil {
			first = err
		}
		s.File = nil
	}
	return first
}

// Unlink removes the segment file. Producer side only.
func (s *Segment) Unlink() error {
	return os.Remove(s.Path)
}
