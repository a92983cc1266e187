package media

import "ostplayer/internal/player"

var _ player.MediaElement = (*Element)(nil)
