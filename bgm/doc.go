// SPDX-License-Identifier: EPL-2.0

// Package bgm plays background music on top of streams: a Song wraps one
// prepared stream, and Music either loops a single song or shuffles through a
// pool of them, with volume fades.
package bgm
