// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command warmroom runs the hunt service and plays the hunt in a terminal.
//
//	warmroom serve                     persistence service on :3000
//	warmroom play                      play in the terminal
//	warmroom letter [--user id]        print the closing letter
//	warmroom reset                     forget the local journey
//	warmroom content validate <file>   check a content catalog
package main

import (
	"context"
	"os"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
