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

package shm

import (
	"encoding/binary"
)

// Command identifies the kind of frame sent over the ring.
type Command uint32

const (
	CmdNull   Command = 0
	CmdClose  Command = 1
	CmdLogMsg Command = 2
)

// HeaderSize is the encoded size of a message header. The header is padded
// to 16 bytes so the length field sits at offset 8 and the layout is
// identical in both processes.
const HeaderSize = 16

// MessageHeader precedes every payload transferred through the ring.
//
// Wire layout, little-endian:
//
//	offset 0:  u32 command
//	offset 4:  u32 padding (zero)
//	offset 8:  u64 payload length
//	offset 16: payload bytes
type MessageHeader struct {
	Cmd        Command
	PayloadLen uint64
}

// PutHeader encodes h into the first HeaderSize bytes of b.
func PutHeader(b []byte, h MessageHeader) {
	binary.LittleEndian.PutUint32(b[0:4], uint32(h.Cmd))
	binary.LittleEndian.PutUint32(b[4:8], 0)
	binary.LittleEndian.PutUint64(b[8:16], h.PayloadLen)
}

// ParseHeader decodes a header from the first HeaderSize bytes of b.
// It does not validate the command; the drain loop treats an unknown
// command as stream corruption.
func ParseHeader(b []byte) MessageHeader {
	return MessageHeader{
		Cmd:        Command(binary.LittleEndian.Uint32(b[0:4])),
		PayloadLen: binary.LittleEndian.Uint64(b[8:16]),
	}
}
