// SPDX-License-Identifier: AGPL-3.0-only
package helpers

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/fluffyriot/creatorsync/internal/database"
)

type PlatformInfo struct {
	Platform database.Platform `json:"platform"`
	Name     string            `json:"name"`
	Color    string            `json:"color"`
}

var AvailablePlatforms = []PlatformInfo{
	{Platform: database.PlatformYouTube, Name: "YouTube", Color: "#ff0033"},
	{Platform: database.PlatformInstagram, Name: "Instagram", Color: "#ff0076"},
	{Platform: database.PlatformTikTok, Name: "TikTok", Color: "#fe2c55"},
}

// ProfileURL builds the public profile link of an account. YouTube handles
// keep their leading "@"; bare channel ids link to /channel/.
func ProfileURL(p database.Platform, username string) (string, error) {
	if username == "" {
		return "", fmt.Errorf("empty username for %v", p)
	}
	switch p {
	case database.PlatformYouTube:
		if strings.HasPrefix(username, "@") {
			return "https://www.youtube.com/" + url.PathEscape(username), nil
		}
		return "https://www.youtube.com/channel/" + url.PathEscape(username), nil
	case database.PlatformInstagram:
		return "https://www.instagram.com/" + url.PathEscape(username), nil
	case database.PlatformTikTok:
		return "https://www.tiktok.com/@" + url.PathEscape(strings.TrimPrefix(username, "@")), nil
	default:
		return "", fmt.Errorf("platform %v not recognized", p)
	}
}

// ContentURL builds a content link when the provider did not return a
// permalink. Instagram needs the shortcode, not the media id, so it has none.
func ContentURL(p database.Platform, author, contentID string) (string, error) {
	switch p {
	case database.PlatformYouTube:
		return "https://www.youtube.com/watch?v=" + url.QueryEscape(contentID), nil
	case database.PlatformTikTok:
		if author == "" {
			return "", fmt.Errorf("tiktok content %v has no author", contentID)
		}
		return "https://www.tiktok.com/@" + url.PathEscape(strings.TrimPrefix(author, "@")) + "/video/" + url.PathEscape(contentID), nil
	default:
		return "", fmt.Errorf("no content url for platform %v", p)
	}
}
