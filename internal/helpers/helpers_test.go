// SPDX-License-Identifier: AGPL-3.0-only
package helpers

import (
	"testing"

	"github.com/fluffyriot/creatorsync/internal/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfileURL(t *testing.T) {
	cases := []struct {
		platform database.Platform
		username string
		want     string
	}{
		{database.PlatformYouTube, "@creator", "https://www.youtube.com/@creator"},
		{database.PlatformYouTube, "UC123", "https://www.youtube.com/channel/UC123"},
		{database.PlatformInstagram, "creator", "https://www.instagram.com/creator"},
		{database.PlatformTikTok, "@creator", "https://www.tiktok.com/@creator"},
		{database.PlatformTikTok, "creator", "https://www.tiktok.com/@creator"},
	}
	for _, tc := range cases {
		got, err := ProfileURL(tc.platform, tc.username)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got)
	}

	_, err := ProfileURL(database.PlatformTikTok, "")
	assert.Error(t, err)
	_, err = ProfileURL("myspace", "tom")
	assert.Error(t, err)
}

func TestContentURL(t *testing.T) {
	got, err := ContentURL(database.PlatformYouTube, "", "v1")
	require.NoError(t, err)
	assert.Equal(t, "https://www.youtube.com/watch?v=v1", got)

	got, err = ContentURL(database.PlatformTikTok, "creator", "7300")
	require.NoError(t, err)
	assert.Equal(t, "https://www.tiktok.com/@creator/video/7300", got)

	_, err = ContentURL(database.PlatformTikTok, "", "7300")
	assert.Error(t, err)
	_, err = ContentURL(database.PlatformInstagram, "creator", "1789")
	assert.Error(t, err)
}
