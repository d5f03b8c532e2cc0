// SPDX-License-Identifier: EPL-2.0

// Command audstream plays and renders audio files through the streaming
// engine.
package main

func main() {
	Execute()
}
