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
	"sort"
	"strings"
	"testing"
	"time"
)

func TestLogFileAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "utest.log")

	lf := NewLogFile(path, 1<<20, 3)
	if !lf.Write([]byte("hello ")) {
		t.Fatal("first write failed")
	}
	lf.Close()

	// A fresh LogFile must pick up the existing size and append.
	lf = NewLogFile(path, 1<<20, 3)
	if !lf.Write([]byte("world")) {
		t.Fatal("second write failed")
	}
	lf.Close()

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "hello world" {
		t.Fatalf("file holds %q, want %q", got, "hello world")
	}
}

func TestLogFileExtension(t *testing.T) {
	testCases := []struct {
		filename, ext string
	}{
		{"/var/log/utest.log", ".log"},
		{"/var/log/utest", ""},
		{"/var/log.d/utest", ""}, // a dot in a directory does not count
		{"/var/log/a.b.c.log", ".log"},
		{"utest.log", ".log"},
	}
	for _, tc := range testCases {
		lf := NewLogFile(tc.filename, 0, 0)
		if got := lf.ext(); got != tc.ext {
			t.Errorf("ext(%q) = %q, want %q", tc.filename, got, tc.ext)
		}
		if got := lf.stem() + tc.ext; got != tc.filename {
			t.Errorf("stem(%q)+ext = %q", tc.filename, got)
		}
	}
}

func TestArchiveNameIsUTC(t *testing.T) {
	lf := NewLogFile("/var/log/utest.log", 0, 0)
	at := time.Date(2015, 7, 15, 14, 53, 51, 979*int(time.Millisecond), time.FixedZone("SAST", 2*3600))
	got := lf.archiveName(at)
	// 14:53 at +0200 is 12:53 UTC; archives sort globally regardless of zone.
	want := "/var/log/utest-2015-07-15T12-53-51-979-Z.log"
	if got != want {
		t.Fatalf("archiveName = %q, want %q", got, want)
	}
}

// After n rotations with maxArchives = a, exactly a archives remain, their
// lexicographic order is their chronological order, and together with the
// live file they hold an unbroken suffix of everything written.
func TestRotationRetainsOrderedArchives(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "utest.log")

	const maxArchives = 2
	lf := NewLogFile(path, 128, maxArchives)

	var stream bytes.Buffer
	for i := 0; i < 200; i++ {
		msg := bytes.Repeat([]byte{'a' + byte(i%26)}, 20)
		if !lf.Write(msg) {
			t.Fatalf("write %d failed", i)
		}
		stream.Write(msg)
	}
	lf.Close()

	archives, err := filepath.Glob(filepath.Join(dir, "utest-*"))
	if err != nil {
		t.Fatal(err)
	}
	if len(archives) != maxArchives {
		t.Fatalf("found %d archives %v, want %d", len(archives), archives, maxArchives)
	}
	if !sort.StringsAreSorted(archives) {
		t.Fatalf("archives not in lexicographic order: %v", archives)
	}
	for _, a := range archives {
		base := filepath.Base(a)
		if !strings.HasPrefix(base, "utest-") || !strings.HasSuffix(base, "-Z.log") {
			t.Fatalf("unexpected archive name %q", base)
		}
	}

	// Oldest archive to live file must be a contiguous suffix of the stream.
	var tail bytes.Buffer
	for _, a := range archives {
		b, err := os.ReadFile(a)
		if err != nil {
			t.Fatal(err)
		}
		tail.Write(b)
	}
	live, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	tail.Write(live)

	if tail.Len() == 0 {
		t.Fatal("no bytes survived rotation")
	}
	if !bytes.HasSuffix(stream.Bytes(), tail.Bytes()) {
		t.Fatalf("retained %d bytes are not a suffix of the %d byte stream", tail.Len(), stream.Len())
	}
}

func TestRolloverFailsWhenRenameFails(t *testing.T) {
	dir := t.TempDir()
	lf := NewLogFile(filepath.Join(dir, "missing.log"), 16, 2)
	if lf.rollOver() {
		t.Fatal("rollOver succeeded renaming a nonexistent file")
	}
}
