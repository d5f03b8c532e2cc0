// SPDX-License-Identifier: EPL-2.0

package bgm

import "errors"

var ErrNoSongs = errors.New("background music needs at least one song")
