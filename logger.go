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

package uberlog

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/IMQS/uberlog/internal/oob"
	"github.com/IMQS/uberlog/internal/shm"
)

// Defaults applied at Open for anything not configured beforehand.
const (
	DefaultRingBufferSize = 1 << 20      // 1 MiB shared ring
	DefaultMaxFileSize    = 30 * 1048576 // roll the log over at 30 MiB
	DefaultMaxArchives    = 3            // archived copies kept after rotation
	DefaultLoggerProgram  = "uberlogger" // child binary, next to our executable
)

// Timeouts for child process interaction.
const (
	childInitTimeout = 10 * time.Second // first message: wait for the child to attach and drain
	childExitTimeout = 10 * time.Second // Close: wait for the child to exit
)

// prefixLen is the width of the fixed message prefix:
//
//	[------------- 42 characters ------------]
//	[------ 28 characters -----]
//	2015-07-15T14:53:51.979+0200 [I] 00001fdc The log message here
const prefixLen = 42

// spawnFunc launches the writer child with the given arguments and returns
// a function that waits for it to exit, reporting whether it did so within
// the timeout. Tests substitute an in-process writer here.
type spawnFunc func(program string, args []string) (wait func(timeout time.Duration) bool, err error)

// Logger writes logs through a child process. Open launches the child and
// sets up the shared-memory ring buffer used to communicate with it; log
// calls format a message and enqueue it into the ring.
//
// The zero value is ready to use; configure it with the Set methods before
// Open. To customize the message format, wrap the Logger and direct calls
// to LogRaw.
type Logger struct {
	// TeeStdOut duplicates every log message to stdout. It has no effect
	// in OpenStdOut mode, where stdout is already the destination.
	TeeStdOut atomic.Bool

	level atomic.Int32

	mu          sync.Mutex // guards everything below and serializes enqueues
	filename    string
	loggerPath  string
	ringSize    uint64
	maxFileSize int64
	maxArchives int32
	numSent     int64
	isOpen      bool
	stdoutMode  bool

	tk        timeKeeper
	ring      shm.Ring
	seg       *shm.Segment
	waitChild func(time.Duration) bool

	// Test seams, mirroring the knobs the test harness needs: a pinned
	// prefix for byte-exact file comparisons, and an in-process writer.
	testPrefix *[prefixLen]byte
	spawn      spawnFunc
}

// Open creates the shared ring buffer, spawns the uberlogger child and
// marks the logger open. It is idempotent: opening an open logger is a
// no-op. The filename is made absolute so that the child agrees with us
// about the segment name regardless of working directories.
func (l *Logger) Open(filename string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.isOpen {
		return nil
	}

	abs, err := filepath.Abs(filename)
	if err != nil {
		return fmt.Errorf("uberlog: resolve %q: %w", filename, err)
	}
	l.filename = abs
	l.applyDefaultsLocked()

	seg, err := shm.CreateSegment(uint32(os.Getpid()), l.filename, l.ringSize)
	if err != nil {
		oob.Warnf("uberlog: shared memory setup failed: %v", err)
		return err
	}
	l.seg = seg
	l.ring.Init(seg.Mem[:l.ringSize+shm.HeadSize], l.ringSize, true)

	program := l.loggerPath
	if program == "" {
		program = defaultLoggerProgram()
	}
	args := []string{
		strconv.FormatUint(uint64(os.Getpid()), 10),
		strconv.FormatUint(l.ringSize, 10),
		l.filename,
		strconv.FormatInt(l.maxFileSize, 10),
		strconv.FormatInt(int64(l.maxArchives), 10),
	}

	spawn := l.spawn
	if spawn == nil {
		spawn = spawnProcess
	}
	wait, err := spawn(program, args)
	if err != nil {
		l.closeRingLocked()
		return fmt.Errorf("uberlog: spawn %s: %w", program, err)
	}

	l.waitChild = wait
	l.isOpen = true
	l.numSent = 0
	return nil
}

// OpenStdOut opens the logger without a log file or child process; message
// bytes go to stdout. Typically used when running unit tests or containers
// where stdout is the log destination.
func (l *Logger) OpenStdOut() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.isOpen {
		return
	}
	l.stdoutMode = true
	l.isOpen = true
}

// Close enqueues an end-of-stream frame, waits for the child to exit and
// releases the shared segment. On timeout the child is left to finish
// draining on its own; it notices parent death and exits. Safe to call
// more than once.
func (l *Logger) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.isOpen {
		return
	}
	if l.stdoutMode {
		l.stdoutMode = false
		l.isOpen = false
		return
	}

	l.sendLocked(shm.CmdClose, nil)
	if l.waitChild != nil && !l.waitChild(childExitTimeout) {
		oob.Warnf("uberlog: timed out waiting for uberlogger to exit")
	}
	l.waitChild = nil

	l.closeRingLocked()
	l.isOpen = false
}

// SetRingBufferSize sets the size of the ring buffer used to communicate
// with the log writer process. Must be called before Open; it has no
// effect afterwards. The value is rounded up to the next power of two.
// The ring size bounds the maximum size of a single log message.
func (l *Logger) SetRingBufferSize(n int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.isOpen {
		oob.Warnf("uberlog: SetRingBufferSize must be called before Open")
		return
	}
	l.ringSize = shm.RoundUpPowerOfTwo(uint64(n))
}

// SetArchiveSettings sets the log rotation threshold and the number of
// archived files kept. Must be called before Open.
func (l *Logger) SetArchiveSettings(maxFileSize int64, maxArchives int32) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.isOpen {
		oob.Warnf("uberlog: SetArchiveSettings must be called before Open")
		return
	}
	l.maxFileSize = maxFileSize
	l.maxArchives = maxArchives
}

// SetLoggerProgramPath overrides the path of the uberlogger program,
// absolute or relative to the current directory. The default is
// "uberlogger" next to the running executable. Must be called before Open.
func (l *Logger) SetLoggerProgramPath(path string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.isOpen {
		oob.Warnf("uberlog: SetLoggerProgramPath must be called before Open")
		return
	}
	l.loggerPath = path
}

// SetLevel sets the log level. Must be called before Open.
func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.isOpen {
		oob.Warnf("uberlog: SetLevel must be called before Open")
		return
	}
	l.level.Store(int32(level))
}

// SetLevelString sets the log level from a string; only the first
// character is significant, as in ParseLevel.
func (l *Logger) SetLevelString(s string) {
	l.SetLevel(ParseLevel(s))
}

// GetFilename returns the absolute path of the log file, empty before Open.
func (l *Logger) GetFilename() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.filename
}

// GetLevel returns the current log level.
func (l *Logger) GetLevel() Level {
	return Level(l.level.Load())
}

// LogRaw enqueues one message of raw bytes, exactly as given; no prefix or
// line terminator is added. A message that cannot fit in the ring is
// truncated with a warning. On the very first message the call waits,
// bounded, for the child to attach to the segment and drain the ring, so
// that the no-lost-messages guarantee holds even if we crash immediately
// afterwards.
func (l *Logger) LogRaw(msg []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.logRawLocked(msg)
}

func (l *Logger) logRawLocked(msg []byte) {
	if !l.isOpen {
		oob.Warnf("uberlog: LogRaw called but log is not open")
		return
	}
	if l.stdoutMode {
		os.Stdout.Write(msg)
		return
	}
	if l.TeeStdOut.Load() {
		os.Stdout.Write(msg)
	}

	if max := l.ringSize - 1 - shm.HeaderSize; uint64(len(msg)) > max {
		oob.Warnf("uberlog: message of %d bytes exceeds ring capacity, truncated to %d", len(msg), max)
		msg = msg[:max]
	}

	l.numSent++
	l.sendLocked(shm.CmdLogMsg, msg)

	if l.numSent == 1 {
		// At process startup it is likely that we are already sending
		// messages while the child has not yet opened a handle to the
		// shared memory. If we died during that window, the messages would
		// be lost together with the last reference to the segment. Waiting
		// here rather than right after spawning gives the child time to
		// come up while we get useful work done, and is the last moment at
		// which the check can still honour the claim that a sent message
		// survives an immediate crash.
		if !l.waitForEmptyLocked(childInitTimeout) {
			oob.Warnf("uberlog: timed out waiting for uberlogger to consume log messages")
		}
	}
}

// Logf writes a message in the default uberlog format,
// "Date [Level] ThreadID Message", followed by the platform line
// terminator. A Fatal message panics after it has been enqueued, without
// waiting for the writer.
func (l *Logger) Logf(level Level, format string, args ...any) {
	if level < l.GetLevel() {
		return
	}

	// The scratch covers the prefix plus a typical message without heap
	// allocation; fmt.Appendf spills larger messages transparently.
	var scratch [200]byte
	buf := fmt.Appendf(scratch[:prefixLen], format, args...)
	buf = append(buf, eol...)

	l.mu.Lock()
	l.fillPrefixLocked(buf[:prefixLen], level)
	l.logRawLocked(buf)
	l.mu.Unlock()

	if level == LevelFatal {
		panic("uberlog: fatal: " + string(buf[prefixLen:len(buf)-len(eol)]))
	}
}

// Debugf logs at level Debug in the default format.
func (l *Logger) Debugf(format string, args ...any) { l.Logf(LevelDebug, format, args...) }

// Infof logs at level Info in the default format.
func (l *Logger) Infof(format string, args ...any) { l.Logf(LevelInfo, format, args...) }

// Warnf logs at level Warn in the default format.
func (l *Logger) Warnf(format string, args ...any) { l.Logf(LevelWarn, format, args...) }

// Errorf logs at level Error in the default format.
func (l *Logger) Errorf(format string, args ...any) { l.Logf(LevelError, format, args...) }

// Fatalf logs at level Fatal in the default format, then panics.
func (l *Logger) Fatalf(format string, args ...any) { l.Logf(LevelFatal, format, args...) }

// fillPrefixLocked writes the fixed-width prefix into buf[:prefixLen].
func (l *Logger) fillPrefixLocked(buf []byte, level Level) {
	if l.testPrefix != nil {
		copy(buf, l.testPrefix[:])
		return
	}
	l.tk.Format(buf[:timestampLen])
	buf[28] = ' '
	buf[29] = '['
	buf[30] = level.Char()
	buf[31] = ']'
	buf[32] = ' '
	formatUintHex(buf[33:41], threadID())
	buf[41] = ' '
}

// sendLocked frames cmd+payload and enqueues it as one atomically visible
// unit: header and payload are staged with WriteNoCommit and published by a
// single Commit of the write cursor.
//
// If the ring lacks space, we wait for the writer to catch up: roughly a
// thousand iterations yielding the processor, a thousand more at 1ms, then
// 5ms. After about two seconds of stalling an out-of-band warning is
// emitted, once.
func (l *Logger) sendLocked(cmd shm.Command, payload []byte) {
	need := uint64(shm.HeaderSize + len(payload))

	warned := false
	var stallStart time.Time
	for i := 0; l.ring.AvailableForWrite() < need; i++ {
		if stallStart.IsZero() {
			stallStart = time.Now()
		}
		switch {
		case i < 1000:
			runtime.Gosched()
		case i < 2000:
			time.Sleep(time.Millisecond)
		default:
			time.Sleep(5 * time.Millisecond)
		}
		if !warned && time.Since(stallStart) >= 2*time.Second {
			oob.Warnf("uberlog: ring buffer has been full for %v; log writer is not keeping up", time.Since(stallStart).Round(time.Second))
			warned = true
		}
	}

	var hdr [shm.HeaderSize]byte
	shm.PutHeader(hdr[:], shm.MessageHeader{Cmd: cmd, PayloadLen: uint64(len(payload))})
	l.ring.WriteNoCommit(0, hdr[:])
	if len(payload) != 0 {
		l.ring.WriteNoCommit(shm.HeaderSize, payload)
	}
	l.ring.Commit(need)
}

// waitForEmptyLocked polls until the ring has been fully consumed, or the
// timeout expires. Reports whether the ring drained.
func (l *Logger) waitForEmptyLocked(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for l.ring.AvailableForRead() != 0 {
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(time.Millisecond)
	}
	return true
}

func (l *Logger) applyDefaultsLocked() {
	if l.ringSize == 0 {
		l.ringSize = DefaultRingBufferSize
	}
	if l.maxFileSize == 0 {
		l.maxFileSize = DefaultMaxFileSize
	}
	if l.maxArchives == 0 {
		l.maxArchives = DefaultMaxArchives
	}
}

func (l *Logger) closeRingLocked() {
	if l.seg != nil {
		l.seg.Close()
		l.seg.Unlink()
		l.seg = nil
	}
	l.ring.Detach()
}

// defaultLoggerProgram is the uberlogger binary next to the running
// executable, or a bare "uberlogger" (found via PATH) if the executable
// path cannot be determined.
func defaultLoggerProgram() string {
	exe, err := os.Executable()
	if err != nil {
		return DefaultLoggerProgram
	}
	return filepath.Join(filepath.Dir(exe), DefaultLoggerProgram)
}

// spawnProcess launches the writer child as a separate OS process. The
// child inherits stdout and stderr so its out-of-band warnings surface
// with ours.
func spawnProcess(program string, args []string) (func(time.Duration) bool, error) {
	cmd := exec.Command(program, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return nil, err
	}

	done := make(chan struct{})
	go func() {
		cmd.Wait()
		close(done)
	}()

	wait := func(timeout time.Duration) bool {
		select {
		case <-done:
			return true
		case <-time.After(timeout):
			return false
		}
	}
	return wait, nil
}
