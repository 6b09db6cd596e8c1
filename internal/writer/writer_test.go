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
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/IMQS/uberlog/internal/shm"
)

// newTestWriter builds a Writer whose ring lives in ordinary memory; the
// drain logic does not care where the window came from. Returns the writer,
// a producer-side view of the same ring, and the log file path.
func newTestWriter(t *testing.T, ringSize uint64) (*Writer, *shm.Ring, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "utest.log")

	w := New(Config{
		ParentPID:   uint32(os.Getpid()),
		RingSize:    uint32(ringSize),
		Filename:    path,
		MaxLogSize:  1 << 30,
		MaxArchives: 3,
	})

	window := make([]byte, ringSize+shm.HeadSize)
	producer := &shm.Ring{}
	producer.Init(window, ringSize, true)
	w.ring.Init(window, ringSize, false)

	return w, producer, path
}

func enqueue(r *shm.Ring, cmd shm.Command, payload []byte) {
	var hdr [shm.HeaderSize]byte
	shm.PutHeader(hdr[:], shm.MessageHeader{Cmd: cmd, PayloadLen: uint64(len(payload))})
	r.WriteNoCommit(0, hdr[:])
	if len(payload) != 0 {
		r.WriteNoCommit(shm.HeaderSize, payload)
	}
	r.Commit(uint64(shm.HeaderSize + len(payload)))
}

func readLog(t *testing.T, path string) []byte {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	return b
}

func TestDrainWritesMessagesInOrder(t *testing.T) {
	w, producer, path := newTestWriter(t, 512)

	enqueue(producer, shm.CmdLogMsg, []byte("hello "))
	enqueue(producer, shm.CmdLogMsg, []byte("world"))

	if n := w.drain(); n != 2 {
		t.Fatalf("drain consumed %d messages, want 2", n)
	}
	w.file.Close()

	if got := readLog(t, path); string(got) != "hello world" {
		t.Fatalf("log holds %q, want %q", got, "hello world")
	}
}

func TestDrainStagesSmallMessages(t *testing.T) {
	w, producer, path := newTestWriter(t, 8192)

	// Many small messages in one drain must reach the file in one piece
	// per staging flush, and in order.
	var want bytes.Buffer
	for i := 0; i < 40; i++ {
		msg := bytes.Repeat([]byte{'a' + byte(i%26)}, 50)
		enqueue(producer, shm.CmdLogMsg, msg)
		want.Write(msg)
		if producer.AvailableForWrite() < 512 {
			w.drain()
		}
	}
	w.drain()
	w.file.Close()

	if got := readLog(t, path); !bytes.Equal(got, want.Bytes()) {
		t.Fatalf("log holds %d bytes, want %d", len(got), want.Len())
	}
}

// A payload larger than the staging buffer takes the zero-copy path: the
// in-ring spans go straight to the file and the cursor is retired after.
func TestDrainZeroCopyLargePayload(t *testing.T) {
	w, producer, path := newTestWriter(t, 8192)

	large := bytes.Repeat([]byte("x9y"), 1766) // 5298 bytes > WriteBufferSize
	enqueue(producer, shm.CmdLogMsg, []byte("small "))
	enqueue(producer, shm.CmdLogMsg, large)
	enqueue(producer, shm.CmdLogMsg, []byte(" tail"))

	if n := w.drain(); n != 3 {
		t.Fatalf("drain consumed %d messages, want 3", n)
	}
	w.file.Close()

	want := "small " + string(large) + " tail"
	if got := readLog(t, path); string(got) != want {
		t.Fatalf("log holds %d bytes, want %d", len(got), len(want))
	}
	if n := producer.AvailableForWrite(); n != 8192-1 {
		t.Fatalf("ring not fully retired: %d writable, want %d", n, 8192-1)
	}
}

func TestDrainCloseFrameSetsFlag(t *testing.T) {
	w, producer, path := newTestWriter(t, 512)

	enqueue(producer, shm.CmdLogMsg, []byte("last words"))
	enqueue(producer, shm.CmdClose, nil)

	w.drain()
	w.file.Close()

	if !w.closeReceived.Load() {
		t.Fatal("close frame did not set the close flag")
	}
	if got := readLog(t, path); string(got) != "last words" {
		t.Fatalf("log holds %q, want %q", got, "last words")
	}
}

func TestDrainCorruptCommandPanics(t *testing.T) {
	w, producer, _ := newTestWriter(t, 512)
	enqueue(producer, shm.Command(7), nil)

	defer func() {
		if recover() == nil {
			t.Fatal("drain did not panic on a corrupt command")
		}
	}()
	w.drain()
}

// Simulates a producer crash: frames are committed, no Close is ever sent,
// and the parent is flagged dead. Run must drain what remains before
// exiting, so the acknowledged message survives.
func TestRunDrainsAfterParentDeath(t *testing.T) {
	w, producer, path := newTestWriter(t, 512)

	enqueue(producer, shm.CmdLogMsg, []byte("committed before crash"))
	w.parentDead.Store(true)
	w.Run()

	if got := readLog(t, path); string(got) != "committed before crash" {
		t.Fatalf("log holds %q, want %q", got, "committed before crash")
	}
}

func TestRunExitsOnCloseFrame(t *testing.T) {
	w, producer, path := newTestWriter(t, 512)

	enqueue(producer, shm.CmdLogMsg, []byte("hello"))
	enqueue(producer, shm.CmdClose, nil)

	done := make(chan struct{})
	go func() {
		w.Run()
		close(done)
	}()
	<-done

	if got := readLog(t, path); string(got) != "hello" {
		t.Fatalf("log holds %q, want %q", got, "hello")
	}
}

func TestParseArgs(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		cfg, err := ParseArgs([]string{"1234", "65536", "/var/log/app.log", "31457280", "3"})
		if err != nil {
			t.Fatalf("ParseArgs: %v", err)
		}
		want := Config{ParentPID: 1234, RingSize: 65536, Filename: "/var/log/app.log", MaxLogSize: 31457280, MaxArchives: 3}
		if cfg != want {
			t.Fatalf("ParseArgs = %+v, want %+v", cfg, want)
		}
	})

	invalid := [][]string{
		{},
		{"1234"},
		{"1234", "65536", "/var/log/app.log", "31457280"},
		{"1234", "65536", "/var/log/app.log", "31457280", "3", "extra"},
		{"pid", "65536", "/var/log/app.log", "31457280", "3"},
		{"1234", "ring", "/var/log/app.log", "31457280", "3"},
		{"1234", "65536", "/var/log/app.log", "size", "3"},
		{"1234", "65536", "/var/log/app.log", "31457280", "n"},
	}
	for _, args := range invalid {
		t.Run("invalid_"+strings.Join(args, "_"), func(t *testing.T) {
			if _, err := ParseArgs(args); err == nil {
				t.Fatalf("ParseArgs(%q) succeeded", args)
			}
		})
	}
}
