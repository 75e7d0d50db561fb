package domain

import (
	"net/url"
	"strings"
	"time"
)

// Plans a profile can be on.
const (
	PlanFree = "free"
	PlanPro  = "pro"
)

// InitialCredits is the balance every new profile starts with.
const InitialCredits = 5

// Identity is the verified caller as reported by the identity provider.
type Identity struct {
	UID         string
	Email       string
	DisplayName string
	PhotoURL    string
}

// UserProfile is the per-user record stored at users/{uid}.
type UserProfile struct {
	UID         string `json:"uid" firestore:"uid"`
	Email       string `json:"email" firestore:"email"`
	DisplayName string `json:"displayName" firestore:"displayName"`
	PhotoURL    string `json:"photoURL" firestore:"photoURL"`
	Credits     int    `json:"credits" firestore:"credits"`
	Plan        string `json:"plan" firestore:"plan"`
	CreatedAt   string `json:"createdAt" firestore:"createdAt"`
}

// NewUserProfile builds the record created on first authentication.
func NewUserProfile(id *Identity, now time.Time) *UserProfile {
	return &UserProfile{
		UID:         id.UID,
		Email:       id.Email,
		DisplayName: id.DisplayName,
		PhotoURL:    id.PhotoURL,
		Credits:     InitialCredits,
		Plan:        PlanFree,
		CreatedAt:   now.UTC().Format(time.RFC3339),
	}
}

// Clone returns a copy safe to hand out of a locked section.
func (p *UserProfile) Clone() *UserProfile {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}

// AvatarURL returns the photo URL, falling back to a generated initials avatar.
func (p *UserProfile) AvatarURL() string {
	if p.PhotoURL != "" {
		return p.PhotoURL
	}
	name := p.DisplayName
	if name == "" {
		name = p.Email
	}
	if name == "" {
		name = "User"
	}
	return "https://ui-avatars.com/api/?name=" + url.PathEscape(name) + "&background=F4C430&color=0F172A"
}

// ProfileUpdate carries the user-editable profile fields.
type ProfileUpdate struct {
	DisplayName string `json:"displayName"`
	PhotoURL    string `json:"photoURL"`
}

// Validate checks the update before it reaches the store.
func (u *ProfileUpdate) Validate() error {
	u.DisplayName = strings.TrimSpace(u.DisplayName)
	u.PhotoURL = strings.TrimSpace(u.PhotoURL)
	if len(u.DisplayName) > 120 {
		return &ErrValidation{Field: "displayName", Message: "must be at most 120 characters"}
	}
	if u.PhotoURL == "" {
		return nil
	}
	parsed, err := url.Parse(u.PhotoURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return &ErrValidation{Field: "photoURL", Message: "must be an absolute http(s) URL"}
	}
	return nil
}

// ProfileView is the profile as returned to the browser.
type ProfileView struct {
	*UserProfile
	AvatarURL string `json:"avatarUrl"`
}

// NewProfileView decorates a profile with its resolved avatar.
func NewProfileView(p *UserProfile) *ProfileView {
	if p == nil {
		return nil
	}
	return &ProfileView{UserProfile: p, AvatarURL: p.AvatarURL()}
}
