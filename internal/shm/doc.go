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

// Package shm provides the shared-memory plumbing between a logging
// application and its uberlogger child process: the named shared segment,
// the single-producer/single-consumer byte ring that lives inside it, and
// the message frame codec spoken over that ring.
//
// The segment is a plain file under /dev/shm (or the OS temp directory as
// a fallback), sized to the ring capacity plus the trailing cursor block
// and rounded up to a page. Both processes compute the segment name
// independently from the parent PID and the log filename, so no handshake
// is needed: the producer creates, the consumer opens.
package shm
