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

// Package writer implements the uberlogger slave: the child process that
// drains the shared-memory ring and persists log messages to the rotating
// log file. It is a pure attach/read/detach participant on the segment;
// the producer owns creation and removal.
package writer

import (
	"fmt"
	"os"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/IMQS/uberlog/internal/oob"
	"github.com/IMQS/uberlog/internal/shm"
)

// WriteBufferSize is the size of the staging buffer between the ring and
// the file, so the writer does not issue a write() call for every message.
// Too large wastes memory bandwidth and pollutes the cache; too small
// raises the syscall rate. It is deliberately a constant, not a knob.
const WriteBufferSize = 1024

// waitForOpenSleep is the retry interval while the shared segment does not
// exist yet at startup.
const waitForOpenSleep = time.Millisecond

// maxIdleSleep caps the exponential backoff between empty drains.
const maxIdleSleep = 1024 * time.Millisecond

// Config carries the five values the producer passes on the command line.
type Config struct {
	ParentPID   uint32
	RingSize    uint32
	Filename    string
	MaxLogSize  int64
	MaxArchives int32
}

// ParseArgs builds a Config from the five positional arguments:
// <parentpid> <ringsize> <logfilename> <maxlogsize> <maxarchives>.
func ParseArgs(args []string) (Config, error) {
	if len(args) != 5 {
		return Config{}, fmt.Errorf("expected 5 arguments, got %d", len(args))
	}
	pid, err := strconv.ParseUint(args[0], 10, 32)
	if err != nil {
		return Config{}, fmt.Errorf("invalid parent pid %q: %w", args[0], err)
	}
	ringSize, err := strconv.ParseUint(args[1], 10, 32)
	if err != nil {
		return Config{}, fmt.Errorf("invalid ring size %q: %w", args[1], err)
	}
	maxLogSize, err := strconv.ParseInt(args[3], 10, 64)
	if err != nil {
		return Config{}, fmt.Errorf("invalid max log size %q: %w", args[3], err)
	}
	maxArchives, err := strconv.ParseInt(args[4], 10, 32)
	if err != nil {
		return Config{}, fmt.Errorf("invalid max archives %q: %w", args[4], err)
	}
	return Config{
		ParentPID:   uint32(pid),
		RingSize:    uint32(ringSize),
		Filename:    args[2],
		MaxLogSize:  maxLogSize,
		MaxArchives: int32(maxArchives),
	}, nil
}

// Writer drains the ring into the log file until it receives a Close frame
// or its parent dies, then drains once more and exits.
type Writer struct {
	cfg Config

	parentDead    atomic.Bool
	closeReceived atomic.Bool
	stopWatch     chan struct{} // closed on shutdown to release the parent watcher

	seg  *shm.Segment
	ring shm.Ring

	file   *LogFile
	buf    []byte
	bufpos int

	diag zerolog.Logger
}

// New returns a Writer for the given configuration. Diagnostics are silent
// unless UBERLOGGER_DEBUG is set in the environment.
func New(cfg Config) *Writer {
	diag := oob.Logger("uberlogger")
	if os.Getenv("UBERLOGGER_DEBUG") == "" {
		diag = diag.Level(zerolog.Disabled)
	}
	return &Writer{
		cfg:       cfg,
		stopWatch: make(chan struct{}),
		file:      NewLogFile(cfg.Filename, cfg.MaxLogSize, cfg.MaxArchives),
		buf:       make([]byte, WriteBufferSize),
		diag:      diag,
	}
}

// Run executes the slave until a Close frame arrives or the parent dies.
// When the parent died, whatever remains in the ring is drained first, so
// that an acknowledged message survives a producer crash.
func (w *Writer) Run() {
	w.diag.Debug().Str("file", w.cfg.Filename).Int64("maxSize", w.cfg.MaxLogSize).
		Int32("archives", w.cfg.MaxArchives).Msg("starting")

	// Open the log file eagerly, for predictability: the file appears as
	// soon as the writer is up, not on the first message.
	w.file.Open()

	watchDone := w.watchParent()

	idle := backoff.NewExponentialBackOff()
	idle.InitialInterval = time.Millisecond
	idle.RandomizationFactor = 0
	idle.Multiplier = 2
	idle.MaxInterval = maxIdleSleep
	idle.MaxElapsedTime = 0 // back off forever; only Close or parent death stop us
	idle.Reset()

	for !w.parentDead.Load() && !w.closeReceived.Load() {
		var sleep time.Duration
		if !w.ring.Attached() {
			if w.attach() {
				continue
			}
			sleep = waitForOpenSleep
		} else if w.drain() == 0 {
			sleep = idle.NextBackOff()
		} else {
			idle.Reset()
		}

		w.pollParentDeath()
		if sleep > 0 {
			time.Sleep(sleep)
		}
	}

	if w.parentDead.Load() && w.ring.Attached() {
		w.drain()
	}

	w.detach()
	w.file.Close()

	close(w.stopWatch)
	<-watchDone

	if w.closeReceived.Load() {
		w.diag.Debug().Msg("stopping: received close instruction")
	}
	if w.parentDead.Load() {
		w.diag.Debug().Msg("stopping: parent is dead")
	}
}

// attach tries to open the shared segment by its well-known name. The
// producer may not have created it yet when we start.
func (w *Writer) attach() bool {
	seg, err := shm.OpenSegment(w.cfg.ParentPID, w.cfg.Filename, uint64(w.cfg.RingSize))
	if err != nil {
		return false
	}
	w.seg = seg
	w.ring.Init(seg.Mem[:uint64(w.cfg.RingSize)+shm.HeadSize], uint64(w.cfg.RingSize), false)
	return true
}

func (w *Writer) detach() {
	if w.seg != nil {
		w.seg.Close()
		w.seg = nil
	}
	w.ring.Detach()
}

// pollParentDeath checks whether we have been reparented. When the real
// parent dies the process is adopted by init, so a parent PID of 1 (or 0)
// means the producer is gone. Platforms with waitable process handles also
// run the pidfd watcher; this poll costs nothing and covers the rest.
func (w *Writer) pollParentDeath() {
	ppid := os.Getppid()
	if ppid == 0 || ppid == 1 {
		w.parentDead.Store(true)
	}
}

// drain consumes every complete frame currently in the ring and returns the
// number of log messages seen. Messages are staged into the write buffer to
// amortize write() calls; a message larger than the whole buffer is handed
// to the file straight out of the ring, skipping the second copy.
func (w *Writer) drain() uint64 {
	var nmessages uint64
	var hdr [shm.HeaderSize]byte

	for w.ring.AvailableForRead() >= shm.HeaderSize {
		if n := w.ring.Read(hdr[:], shm.HeaderSize); n != shm.HeaderSize {
			panic("uberlog: ring read of message header came up short")
		}
		head := shm.ParseHeader(hdr[:])

		switch head.Cmd {
		case shm.CmdClose:
			w.closeReceived.Store(true)

		case shm.CmdLogMsg:
			nmessages++
			if w.ring.AvailableForRead() < head.PayloadLen {
				// The producer commits header and payload as one unit, so a
				// missing payload means the stream is corrupt.
				panic("uberlog: message payload not available in ring")
			}

			if head.PayloadLen > uint64(len(w.buf)-w.bufpos) {
				w.flush()
			}

			if head.PayloadLen <= uint64(len(w.buf)-w.bufpos) {
				n := w.ring.Read(w.buf[w.bufpos:], head.PayloadLen)
				if n != head.PayloadLen {
					panic("uberlog: ring read of message payload came up short")
				}
				w.bufpos += int(n)
			} else {
				// Larger than the whole staging buffer: zero-copy handoff.
				s1, s2 := w.ring.ReadNoCopy(head.PayloadLen)
				ok := w.file.Write(s1)
				if ok && len(s2) != 0 {
					ok = w.file.Write(s2)
				}
				if !ok {
					oob.Warnf("uberlog: failed to write to log file")
				}
				w.ring.Read(nil, head.PayloadLen)
			}

		default:
			panic(fmt.Sprintf("uberlog: unexpected command %d in ring", head.Cmd))
		}
	}

	w.flush()
	return nmessages
}

// flush writes the staged bytes to the file and resets the staging buffer.
func (w *Writer) flush() {
	if w.bufpos == 0 {
		return
	}
	if !w.file.Write(w.buf[:w.bufpos]) {
		oob.Warnf("uberlog: failed to write to log file")
	}
	w.bufpos = 0
}
