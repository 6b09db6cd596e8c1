//go:build linux

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
	"golang.org/x/sys/unix"
)

// eol is the line terminator the producer embeds in each formatted message.
const eol = "\n"

// threadID returns the OS thread id of the calling goroutine's current
// thread, for the log prefix. Goroutines migrate between threads, which is
// fine: the id identifies which thread emitted the line, same as a native
// logger would record.
func threadID() uint32 {
	return uint32(unix.Gettid())
}
