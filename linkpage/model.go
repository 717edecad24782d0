// Package linkpage holds the public records of a link-in-bio site and the
// service that reads them through the layered cache and writes them on
// behalf of their owners.
package linkpage

import "time"

// Revalidation tags. Every cached profile carries TagProfile and every cached
// AI page carries TagAIPage.
const (
	TagProfile = "profile"
	TagAIPage  = "ai-page"
)

// Profile is a creator's public page, addressed by username.
type Profile struct {
	ID          string    `json:"id"`
	Username    string    `json:"username" validate:"username"`
	DisplayName string    `json:"display_name" validate:"max=64"`
	Bio         string    `json:"bio" validate:"max=500"`
	AvatarURL   string    `json:"avatar_url,omitempty" validate:"omitempty,url,max=2048"`
	Theme       string    `json:"theme,omitempty" validate:"max=64"`
	Links       []Link    `json:"links" validate:"max=100,dive"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Link is one button on a profile. Position orders the buttons, starting at
// zero.
type Link struct {
	ID       string `json:"id"`
	Title    string `json:"title" validate:"required,max=100"`
	URL      string `json:"url" validate:"required,http_url,max=2048"`
	Style    string `json:"style,omitempty" validate:"max=32"`
	Position int    `json:"position"`
}

// AIPage is a generated HTML page, addressed by slug and owned by one
// creator.
type AIPage struct {
	ID            string    `json:"id"`
	Slug          string    `json:"slug" validate:"slug"`
	OwnerUsername string    `json:"owner_username"`
	Prompt        string    `json:"prompt" validate:"max=4000"`
	HTML          string    `json:"html" validate:"required,max=1048576"`
	UpdatedAt     time.Time `json:"updated_at"`
}
