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

package writer

import (
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/IMQS/uberlog/internal/oob"
)

// LogFile manages the current log file and its rotation. It assumes it is
// the only process writing to the file, which the process model guarantees:
// the log file is opened only by the writer.
type LogFile struct {
	filename    string
	maxSize     int64
	maxArchives int32

	f    *os.File
	size int64

	lastArchive string // most recent archive name; later names must sort after it
}

// NewLogFile returns a LogFile for filename that rolls over when a write
// would push the file past maxSize, keeping at most maxArchives archived
// copies.
func NewLogFile(filename string, maxSize int64, maxArchives int32) *LogFile {
	return &LogFile{filename: filename, maxSize: maxSize, maxArchives: maxArchives}
}

// Write appends p to the log file, rolling over first if the write would
// exceed the maximum size. A failed write closes and reopens the file and
// retries once; something may have happened on the filesystem, such as a
// network share dropping and being restored. Reports whether all of p
// reached the file.
func (lf *LogFile) Write(p []byte) bool {
	if !lf.Open() {
		return false
	}

	if lf.size+int64(len(p)) > lf.maxSize {
		if !lf.rollOver() {
			return false
		}
		if !lf.Open() {
			return false
		}
	}

	if len(p) == 0 {
		return true
	}

	n, err := lf.f.Write(p)
	if err != nil {
		lf.Close()
		if !lf.Open() {
			return false
		}
		n, err = lf.f.Write(p)
	}

	if err == nil {
		lf.size += int64(n)
	}
	return err == nil && n == len(p)
}

// Open opens the log file if it is not already open, positioning at the end
// and capturing the current size. The library appends; it never truncates.
func (lf *LogFile) Open() bool {
	if lf.f == nil {
		f, err := os.OpenFile(lf.filename, os.O_WRONLY|os.O_CREATE, 0644)
		if err != nil {
			return false
		}
		size, err := f.Seek(0, io.SeekEnd)
		if err != nil {
			f.Close()
			return false
		}
		lf.f = f
		lf.size = size
	}
	return true
}

// Close closes the current file, if open.
func (lf *LogFile) Close() {
	if lf.f == nil {
		return
	}
	lf.f.Close()
	lf.f = nil
	lf.size = 0
}

// ext returns the filename extension, the suffix after the last '.' in the
// basename. A dot inside a directory component does not count.
func (lf *LogFile) ext() string {
	base := filepath.Base(lf.filename)
	if dot := strings.LastIndexByte(base, '.'); dot >= 0 {
		return base[dot:]
	}
	return ""
}

// stem returns the filename with the extension removed.
func (lf *LogFile) stem() string {
	return lf.filename[:len(lf.filename)-len(lf.ext())]
}

// archiveName returns the archive filename for a rotation at time t. The
// timestamp is UTC so that lexicographic order of archive names equals
// chronological order, stable across DST transitions; the human-facing
// timestamps inside the file stay in the local zone.
func (lf *LogFile) archiveName(t time.Time) string {
	u := t.UTC()
	stamp := u.Format("-2006-01-02T15-04-05-") + millis3(u) + "-Z"
	return lf.stem() + stamp + lf.ext()
}

func millis3(t time.Time) string {
	ms := t.Nanosecond() / int(time.Millisecond)
	return string([]byte{'0' + byte(ms/100), '0' + byte(ms/10%10), '0' + byte(ms%10)})
}

// findArchives lists the archive files next to the log file, oldest first.
// The UTC naming convention makes a lexicographic sort chronological.
func (lf *LogFile) findArchives() []string {
	archives, err := filepath.Glob(lf.stem() + "-*")
	if err != nil {
		return nil
	}
	sort.Strings(archives)
	return archives
}

// rollOver closes the current file, renames it to its archive name and
// prunes the oldest archives beyond the retention count. A rename failure
// fails the rollover and with it the write that triggered it. Pruning
// failures are ignored.
func (lf *LogFile) rollOver() bool {
	lf.Close()

	// Rotations can land inside the same millisecond. Never clobber an
	// earlier archive, and never reuse a pruned name that would sort before
	// one we already produced: lexicographic order must stay chronological.
	t := time.Now()
	archive := lf.archiveName(t)
	for archive <= lf.lastArchive || fileExists(archive) {
		t = t.Add(time.Millisecond)
		archive = lf.archiveName(t)
	}
	if err := os.Rename(lf.filename, archive); err != nil {
		oob.Warnf("uberlog: rollover failed renaming %q to %q: %v", lf.filename, archive, err)
		return false
	}
	lf.lastArchive = archive

	archives := lf.findArchives()
	if len(archives) > int(lf.maxArchives) {
		for _, old := range archives[:len(archives)-int(lf.maxArchives)] {
			os.Remove(old)
		}
	}
	return true
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
