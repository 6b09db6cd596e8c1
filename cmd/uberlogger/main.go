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

// uberlogger is the child process spawned by an application that logs with
// uberlog. It consumes log messages from the shared-memory ring buffer and
// writes them into the log file. Normally you do not launch it manually;
// the uberlog library launches it automatically.
package main

import (
	"fmt"
	"os"

	"github.com/IMQS/uberlog/internal/writer"
)

const help = `uberlogger is a child process that is spawned by an application that performs logging.
Normally, you do not launch uberlogger manually. It is launched automatically by the uberlog library.
uberlogger <parentpid> <ringsize> <logfilename> <maxlogsize> <maxarchives>`

func main() {
	cfg, err := writer.ParseArgs(os.Args[1:])
	if err != nil {
		fmt.Println(help)
		os.Exit(1)
	}
	writer.New(cfg).Run()
}
