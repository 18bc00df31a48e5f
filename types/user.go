package types

// User represents an account in the system.
// It is the full record kept in memory and persisted by the disk mirror.
type User struct {
	// UserID is the durable identifier of the user. It is generated once
	// at registration and never changes, so it keys the on-disk layout.
	UserID string `json:"user_id"`

	// Username is the unique, lowercased login name.
	Username string `json:"username"`

	// Email is the unique, lowercased email address.
	Email string `json:"email"`

	// PasswordHash is the self-describing "salt$digest" string produced by
	// the password hasher. It is never exposed in API responses.
	PasswordHash string `json:"password_hash"`

	// IsAdmin grants access to every class regardless of owner.
	IsAdmin bool `json:"is_admin"`

	// ProfileImage is an optional image reference (URL or data URI).
	ProfileImage *string `json:"profile_image,omitempty"`
}

// View returns the public representation of the user.
func (u User) View() UserView {
	return UserView{
		UserID:       u.UserID,
		Username:     u.Username,
		Email:        u.Email,
		IsAdmin:      u.IsAdmin,
		ProfileImage: u.ProfileImage,
	}
}

// UserView is the user as returned to API callers.
type UserView struct {
	UserID       string  `json:"user_id"`
	Username     string  `json:"username"`
	Email        string  `json:"email"`
	IsAdmin      bool    `json:"is_admin"`
	ProfileImage *string `json:"profile_image,omitempty"`
}

// UserUpdate carries the optional fields of an account update.
// A nil field is left untouched.
type UserUpdate struct {
	Username     *string
	Password     *string
	ProfileImage *string
}
