// SPDX-License-Identifier: MIT

package ytdlp

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/alexandriaenglishd6/yt-subtitle-v2-sub001/internal/ports"
)

var videoIDRe = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

// channelTabs are path suffixes that still address the channel itself.
var channelTabs = map[string]bool{
	"videos": true, "streams": true, "shorts": true,
	"playlists": true, "featured": true, "about": true,
}

// Identify classifies a YouTube URL without touching the network.
func Identify(rawURL string) ports.URLKind {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ports.KindUnknown
	}
	host := strings.ToLower(strings.TrimPrefix(u.Hostname(), "www."))
	host = strings.TrimPrefix(host, "m.")
	path := strings.Trim(u.Path, "/")
	segs := strings.Split(path, "/")

	switch host {
	case "youtu.be":
		if len(segs) >= 1 && videoIDRe.MatchString(segs[0]) {
			return ports.KindVideo
		}
		return ports.KindUnknown
	case "youtube.com", "music.youtube.com":
	default:
		return ports.KindUnknown
	}

	switch {
	case path == "watch":
		if videoIDRe.MatchString(u.Query().Get("v")) {
			return ports.KindVideo
		}
		return ports.KindUnknown
	case path == "playlist":
		if u.Query().Get("list") != "" {
			return ports.KindPlaylist
		}
		return ports.KindUnknown
	case strings.HasPrefix(segs[0], "@"):
		return ports.KindChannel
	case segs[0] == "channel" || segs[0] == "c" || segs[0] == "user":
		if len(segs) >= 2 && segs[1] != "" {
			return ports.KindChannel
		}
		return ports.KindUnknown
	case segs[0] == "shorts" || segs[0] == "embed" || segs[0] == "live":
		if len(segs) >= 2 && videoIDRe.MatchString(segs[1]) {
			return ports.KindVideo
		}
		return ports.KindUnknown
	}
	return ports.KindUnknown
}

// ExtractVideoID pulls the 11-character video ID out of a URL that
// addresses a single video.
func ExtractVideoID(rawURL string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", false
	}
	host := strings.ToLower(strings.TrimPrefix(u.Hostname(), "www."))
	host = strings.TrimPrefix(host, "m.")
	path := strings.Trim(u.Path, "/")
	segs := strings.Split(path, "/")

	switch host {
	case "youtu.be":
		if len(segs) >= 1 && videoIDRe.MatchString(segs[0]) {
			return segs[0], true
		}
	case "youtube.com", "music.youtube.com":
		if path == "watch" {
			if id := u.Query().Get("v"); videoIDRe.MatchString(id) {
				return id, true
			}
			return "", false
		}
		if len(segs) >= 2 && (segs[0] == "shorts" || segs[0] == "embed" || segs[0] == "live") {
			if videoIDRe.MatchString(segs[1]) {
				return segs[1], true
			}
		}
	}
	return "", false
}

// WatchURL builds the canonical watch URL for a video ID.
func WatchURL(videoID string) string {
	return "https://www.youtube.com/watch?v=" + videoID
}

// listingURL rewrites a bare channel URL to its videos tab so a flat
// probe enumerates uploads instead of the tab playlists. URLs already
// pointing at a tab pass through unchanged.
func listingURL(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return rawURL
	}
	path := strings.Trim(u.Path, "/")
	segs := strings.Split(path, "/")

	switch {
	case strings.HasPrefix(segs[0], "@"):
		if len(segs) == 1 {
			u.Path = "/" + segs[0] + "/videos"
			return u.String()
		}
		if channelTabs[segs[len(segs)-1]] {
			return rawURL
		}
	case segs[0] == "channel" || segs[0] == "c" || segs[0] == "user":
		if len(segs) == 2 {
			u.Path = "/" + segs[0] + "/" + segs[1] + "/videos"
			return u.String()
		}
	}
	return rawURL
}
