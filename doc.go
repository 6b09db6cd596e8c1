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

// Package uberlog is an asynchronous, crash-resilient logging library.
//
// Log calls never touch the filesystem. Each message is framed and placed
// into a shared-memory ring buffer; a child process (uberlogger), spawned
// automatically on Open, consumes the ring and persists messages to a
// rotating log file. Barring ring back-pressure, a log call costs a
// formatted copy into shared memory and nothing more.
//
// If the application crashes, the child notices that its parent died and
// drains whatever remains in the ring before exiting, so an enqueued
// message is not lost with the process that produced it.
//
//	var log uberlog.Logger
//	if err := log.Open("/var/log/myapp.log"); err != nil {
//		// the writer child could not be started; logging is a no-op
//	}
//	defer log.Close()
//	log.Infof("server listening on %v", addr)
//
// A Logger is safe for concurrent use. Messages from different goroutines
// are serialized and reach the file in enqueue order.
package uberlog
