/*
Package user defines the public identity of a room participant.

User is the projection sent to clients in roster pushes; the transport-level connection
identity never appears in it.
*/
package user

import "strconv"

const (
	// DefaultAvatar is used when a participant sends no avatar or an unknown token.
	DefaultAvatar = "1"

	// AvatarCount is the number of avatar tokens clients can pick ("1" .. "12").
	AvatarCount = 12
)

// User is the public roster entry of one participant.
type User struct {
	// ID is the client-generated logical user id.
	ID string `json:"id"`

	// Username is the display name, never empty.
	Username string `json:"username"`

	// Avatar is a small enumerated token.
	Avatar string `json:"avatar"`

	// IsMuted mirrors the client's microphone state.
	IsMuted bool `json:"isMuted"`
}

// NormalizeAvatar returns avatar when it is a known token, DefaultAvatar otherwise.
func NormalizeAvatar(avatar string) string {
	n, err := strconv.Atoi(avatar)
	if err != nil || n < 1 || n > AvatarCount || strconv.Itoa(n) != avatar {
		return DefaultAvatar
	}
	return avatar
}

// DisplayName falls back to the user id when username is empty.
func DisplayName(userID, username string) string {
	if username == "" {
		return userID
	}
	return username
}
