package identity

import (
	"net/url"
	"strings"
)

const avatarBase = "https://api.dicebear.com/7.x/avataaars/svg?seed="

// DisplayName is "first last" when either is set, otherwise the username.
func DisplayName(first, last, username string) string {
	if name := strings.TrimSpace(first + " " + last); name != "" {
		return name
	}
	return username
}

// Avatar returns the uploaded image or a generated avatar seeded by username.
func Avatar(image, username string) string {
	if image != "" {
		return image
	}
	return avatarBase + url.QueryEscape(username)
}
