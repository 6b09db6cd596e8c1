//go:build !linux && !windows

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
	"os"
)

const eol = "\n"

// threadID falls back to the process id where no cheap thread id syscall is
// available; the prefix field still disambiguates processes sharing a file.
func threadID() uint32 {
	return uint32(os.Getpid())
}
