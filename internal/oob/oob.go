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

// Package oob emits out-of-band diagnostics: single-line messages about the
// logging pipeline itself, which by definition cannot go into the log file
// it is failing to reach. They go to stdout.
package oob

import (
	"os"

	"github.com/rs/zerolog"
)

var logger = zerolog.New(os.Stdout).With().Timestamp().Logger()

// Warnf emits a one-line out-of-band warning to stdout.
func Warnf(format string, args ...any) {
	logger.Warn().Msgf(format, args...)
}

// Logger returns a child of the out-of-band logger carrying a component
// field, for subsystems that emit more than the occasional warning.
func Logger(component string) zerolog.Logger {
	return logger.With().Str("component", component).Logger()
}
