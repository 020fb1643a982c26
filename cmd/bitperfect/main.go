// SPDX-License-Identifier: EPL-2.0

// Command bitperfect plays, inspects and renders audio files.
package main

import (
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
