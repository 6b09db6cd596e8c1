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
	"sync"
	"sync/atomic"
	"time"
)

// timestampLen is the width of the textual timestamp, eg
// "2015-07-15T14:53:51.979+0200".
const timestampLen = 28

// timeKeeper speeds up the creation of textual timestamps by caching the
// calendar computation: the date string, the timezone string and the unix
// second at which the local day started. Per message only the time-of-day
// digits are formatted, which is much simpler than computing the calendar
// day. The cache is rebuilt at most once per local calendar day.
type timeKeeper struct {
	day atomic.Pointer[dayCache]
	mu  sync.Mutex // guards rebuilds in newDay

	now func() time.Time // tests pin this; nil means time.Now
}

// dayCache is immutable once published.
type dayCache struct {
	start  int64    // unix seconds shifted into local time, at local midnight
	offset int64    // zone offset in seconds east of UTC
	date   [10]byte // "2015-07-15"
	zone   [5]byte  // "+0200"
}

func (tk *timeKeeper) clock() time.Time {
	if tk.now != nil {
		return tk.now()
	}
	return time.Now()
}

// contains reports whether the unix second sec falls inside the cached
// local day.
func (c *dayCache) contains(sec int64) bool {
	into := sec + c.offset - c.start
	return into >= 0 && into < 86400
}

// Format writes the timestampLen-byte timestamp for the current time into
// buf[:timestampLen].
func (tk *timeKeeper) Format(buf []byte) {
	t := tk.clock()
	sec := t.Unix()

	c := tk.day.Load()
	if c == nil || !c.contains(sec) {
		c = tk.newDay(t)
	}

	into := uint32(sec + c.offset - c.start)
	copy(buf[:10], c.date[:])
	buf[10] = 'T'
	formatUintDecimal(buf[11:13], into/3600)
	buf[13] = ':'
	formatUintDecimal(buf[14:16], into/60%60)
	buf[16] = ':'
	formatUintDecimal(buf[17:19], into%60)
	buf[19] = '.'
	formatUintDecimal(buf[20:23], uint32(t.Nanosecond()/int(time.Millisecond)))
	copy(buf[23:28], c.zone[:])
}

// newDay rebuilds the day cache for the day containing t.
func (tk *timeKeeper) newDay(t time.Time) *dayCache {
	tk.mu.Lock()
	defer tk.mu.Unlock()

	sec := t.Unix()
	if c := tk.day.Load(); c != nil && c.contains(sec) {
		// Another thread rebuilt while we waited for the lock.
		return c
	}

	_, off := t.Zone()
	local := sec + int64(off)
	c := &dayCache{
		start:  local - floorMod(local, 86400),
		offset: int64(off),
	}

	copy(c.date[:], t.Format("2006-01-02"))

	sign, abs := byte('+'), off
	if off < 0 {
		sign, abs = '-', -off
	}
	c.zone[0] = sign
	formatUintDecimal(c.zone[1:3], uint32(abs/3600))
	formatUintDecimal(c.zone[3:5], uint32(abs/60%60))

	tk.day.Store(c)
	return c
}

func floorMod(v, m int64) int64 {
	return ((v % m) + m) % m
}

// formatUintDecimal writes v into dst as fixed-width decimal with leading
// zeros. Digits beyond the width are discarded high-first.
func formatUintDecimal(dst []byte, v uint32) {
	for i := len(dst) - 1; i >= 0; i-- {
		dst[i] = '0' + byte(v%10)
		v /= 10
	}
}

// formatUintHex writes v into dst as fixed-width lowercase hex.
func formatUintHex(dst []byte, v uint32) {
	const digits = "0123456789abcdef"
	for i := len(dst) - 1; i >= 0; i-- {
		dst[i] = digits[v&0xf]
		v >>= 4
	}
}
