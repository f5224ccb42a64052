package state

import "strings"

// User is the authenticated identity returned by the backend.
type User struct {
	ID            int64  `json:"id"`
	FirstName     string `json:"first_name"`
	LastName      string `json:"last_name"`
	Email         string `json:"email"`
	Role          string `json:"role"`
	StoreID       *int64 `json:"store,omitempty"`
	ProfileImage  string `json:"profile_image,omitempty"`
	StateLocation string `json:"state_location,omitempty"`
}

// Name returns the display name of the user.
func (u User) Name() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// Initials returns up to two initials for avatar placeholders.
func (u User) Initials() string {
	var b strings.Builder
	for _, part := range []string{u.FirstName, u.LastName} {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		b.WriteString(strings.ToUpper(string([]rune(part)[0])))
	}
	return b.String()
}

// Tokens holds the opaque backend credentials.
type Tokens struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// Session is the authenticated user plus issued tokens.
type Session struct {
	User   User   `json:"user"`
	Tokens Tokens `json:"tokens"`
}

// Store is a business location a super admin can administer.
type Store struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Address string `json:"address"`
	Status  string `json:"status"`
}

// Online reports whether the store is reachable by the voice agent.
func (s Store) Online() bool {
	return strings.EqualFold(s.Status, "online")
}

// ProfilePatch carries the fields returned by a profile refresh. Nil fields
// are left untouched when merged into the session.
type ProfilePatch struct {
	FirstName     *string `json:"first_name"`
	LastName      *string `json:"last_name"`
	Email         *string `json:"email"`
	Role          *string `json:"role"`
	StoreID       *int64  `json:"store"`
	ProfileImage  *string `json:"profile_image"`
	StateLocation *string `json:"state_location"`
}

func (p ProfilePatch) apply(u User) User {
	if p.FirstName != nil {
		u.FirstName = *p.FirstName
	}
	if p.LastName != nil {
		u.LastName = *p.LastName
	}
	if p.Email != nil {
		u.Email = *p.Email
	}
	if p.Role != nil {
		u.Role = *p.Role
	}
	if p.StoreID != nil {
		id := *p.StoreID
		u.StoreID = &id
	}
	if p.ProfileImage != nil {
		u.ProfileImage = *p.ProfileImage
	}
	if p.StateLocation != nil {
		u.StateLocation = *p.StateLocation
	}
	return u
}
