package domain

import "strings"

const maxBioLength = 500

// UserProfile holds the single local user's display data and coin balance.
// ProfilePicture is raw image bytes (JPEG or PNG) and encodes as base64 in JSON.
type UserProfile struct {
	Username       string  `json:"username"`
	Bio            string  `json:"bio"`
	ProfilePicture []byte  `json:"profilePicture,omitempty"`
	Balance        float64 `json:"balance"`
}

// Normalize trims user-entered text and truncates an overlong bio.
func (p UserProfile) Normalize() UserProfile {
	p.Username = strings.TrimSpace(p.Username)
	p.Bio = strings.TrimSpace(p.Bio)
	if r := []rune(p.Bio); len(r) > maxBioLength {
		p.Bio = string(r[:maxBioLength])
	}
	if p.ProfilePicture != nil {
		p.ProfilePicture = append([]byte(nil), p.ProfilePicture...)
	}
	return p
}
