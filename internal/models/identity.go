package models

import "net/url"

const anonymousName = "Anonymous"

// Identity is the authenticated user as reported by the auth provider
type Identity struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url"`
	Email       string `json:"email"`
}

// Participant builds the snapshot embedded into squads. The same identity
// always yields the same snapshot.
func (i Identity) Participant() Participant {
	name := i.DisplayName
	if name == "" {
		name = anonymousName
	}
	avatar := i.AvatarURL
	if avatar == "" {
		avatar = "https://ui-avatars.com/api/?name=" + url.QueryEscape(name)
	}
	return Participant{ID: i.ID, Name: name, Avatar: avatar}
}

// OrganizerName is the label shown as a squad's organizer
func (i Identity) OrganizerName() string {
	switch {
	case i.DisplayName != "":
		return i.DisplayName
	case i.Email != "":
		return i.Email
	}
	return anonymousName
}
