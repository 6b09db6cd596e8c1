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

package writer

import (
	"golang.org/x/sys/unix"
)

// watchParent waits on a pidfd for the parent process to die, alongside the
// stop channel, whichever fires first. The returned channel closes when the
// watcher has finished; Run joins on it at shutdown.
//
// If pidfd_open is unavailable (pre-5.3 kernels) the poll in the run loop
// still catches parent death, just with more latency.
func (w *Writer) watchParent() <-chan struct{} {
	done := make(chan struct{})

	fd, err := unix.PidfdOpen(int(w.cfg.ParentPID), 0)
	if err != nil {
		if err == unix.ESRCH {
			// Could not open the parent: it is already dead.
			w.parentDead.Store(true)
		}
		close(done)
		return done
	}

	go func() {
		defer close(done)
		defer unix.Close(fd)
		fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
		for {
			select {
			case <-w.stopWatch:
				return
			default:
			}
			fds[0].Revents = 0
			n, err := unix.Poll(fds, 100)
			if err != nil && err != unix.EINTR {
				return
			}
			if n > 0 {
				w.parentDead.Store(true)
				return
			}
		}
	}()
	return done
}
