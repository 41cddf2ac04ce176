package models

import (
	"fmt"
	"time"
)

// Provider identifies an external music service.
type Provider string

const (
	ProviderSpotify     Provider = "spotify"
	ProviderAppleMusic  Provider = "appleMusic"
	ProviderAmazonMusic Provider = "amazonMusic"
	ProviderCustom      Provider = "custom"
)

// Providers lists every external provider (excludes ProviderCustom).
var Providers = []Provider{ProviderSpotify, ProviderAppleMusic, ProviderAmazonMusic}

// ParseProvider validates a provider name from user input.
func ParseProvider(s string) (Provider, error) {
	switch Provider(s) {
	case ProviderSpotify, ProviderAppleMusic, ProviderAmazonMusic:
		return Provider(s), nil
	case ProviderCustom:
		return ProviderCustom, nil
	default:
		return "", fmt.Errorf("unknown provider %q", s)
	}
}

// Song is the canonical, provider-independent representation of one track.
type Song struct {
	ID              string              `json:"id" db:"id"`
	Title           string              `json:"title" db:"title"`
	Artist          string              `json:"artist" db:"artist"`
	Album           string              `json:"album,omitempty" db:"album"`
	DurationSeconds int                 `json:"durationSeconds,omitempty" db:"duration_seconds"`
	CoverImageURL   string              `json:"coverImageUrl,omitempty" db:"cover_image_url"`
	ProviderIDs     map[Provider]string `json:"providerIds,omitempty"`
}

// Validate checks required song fields.
func (s *Song) Validate() error {
	if s.Title == "" {
		return fmt.Errorf("song title is required")
	}
	if s.Artist == "" {
		return fmt.Errorf("song artist is required")
	}
	if s.DurationSeconds < 0 {
		return fmt.Errorf("song duration cannot be negative")
	}
	return nil
}

// ProviderID returns the provider-native track id for p, if known.
func (s *Song) ProviderID(p Provider) (string, bool) {
	id, ok := s.ProviderIDs[p]
	return id, ok && id != ""
}

// SetProviderID records a confirmed provider match. Existing entries are never
// overwritten with a different id; the first confirmed match wins. Reports
// whether the id was stored (or already present with the same value).
func (s *Song) SetProviderID(p Provider, id string) bool {
	if id == "" {
		return false
	}
	if s.ProviderIDs == nil {
		s.ProviderIDs = make(map[Provider]string)
	}
	if existing, ok := s.ProviderIDs[p]; ok && existing != "" {
		return existing == id
	}
	s.ProviderIDs[p] = id
	return true
}

// Playlist is an ordered sequence of songs owned by exactly one user.
type Playlist struct {
	ID             string    `json:"id" db:"id"`
	Sequence       int       `json:"-" db:"sequence"`
	Name           string    `json:"name" db:"name"`
	Description    string    `json:"description,omitempty" db:"description"`
	CoverImageURL  string    `json:"coverImageUrl,omitempty" db:"cover_image_url"`
	CreatorID      string    `json:"creatorId" db:"creator_id"`
	SharedWith     []string  `json:"sharedWith,omitempty"`
	Songs          []Song    `json:"songs"`
	IsPublic       bool      `json:"isPublic" db:"is_public"`
	SourceProvider Provider  `json:"sourceProvider" db:"source_provider"`
	OriginID       string    `json:"originId,omitempty" db:"origin_id"`
	CreatedAt      time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt      time.Time `json:"updatedAt" db:"updated_at"`
}

// Validate checks required playlist fields.
func (p *Playlist) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("playlist name is required")
	}
	if p.CreatorID == "" {
		return fmt.Errorf("playlist creator is required")
	}
	if p.SourceProvider == "" {
		p.SourceProvider = ProviderCustom
	}
	for i := range p.Songs {
		if err := p.Songs[i].Validate(); err != nil {
			return fmt.Errorf("song %d: %w", i, err)
		}
	}
	return nil
}

// IsSharedWith reports whether the playlist has been shared with userID.
func (p *Playlist) IsSharedWith(userID string) bool {
	for _, id := range p.SharedWith {
		if id == userID {
			return true
		}
	}
	return false
}

// ShareWith adds userID to the shared set. Reports whether the set changed.
func (p *Playlist) ShareWith(userID string) bool {
	if userID == p.CreatorID || p.IsSharedWith(userID) {
		return false
	}
	p.SharedWith = append(p.SharedWith, userID)
	return true
}

// CanView reports whether userID may read this playlist.
func (p *Playlist) CanView(userID string) bool {
	return p.IsPublic || p.CreatorID == userID || p.IsSharedWith(userID)
}

// CanExport reports whether userID may export this playlist to a provider.
// Owners and shared-with users may export; public visibility alone is not enough.
func (p *Playlist) CanExport(userID string) bool {
	return p.CreatorID == userID || p.IsSharedWith(userID)
}

// User is a registered account. Authentication is handled by the session
// layer; only profile fields live here.
type User struct {
	ID        string    `json:"id" db:"id"`
	Username  string    `json:"username" db:"username"`
	Email     string    `json:"email" db:"email"`
	AvatarURL string    `json:"avatarUrl,omitempty" db:"avatar_url"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// Validate checks required user fields.
func (u *User) Validate() error {
	if u.Username == "" {
		return fmt.Errorf("username is required")
	}
	if u.Email == "" {
		return fmt.Errorf("email is required")
	}
	return nil
}
