package domain

import "time"

// User is the chat core's read view of an identity record.
type User struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Email          string    `json:"email,omitempty"`
	ProfilePicture string    `json:"profile_picture,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// UserSummary is the subset of a user attached to chats and messages.
type UserSummary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Summary returns the user's summary.
func (u *User) Summary() UserSummary {
	return UserSummary{ID: u.ID, Name: u.Name}
}

// UserResponse represents a user in API responses.
type UserResponse struct {
	User
	Online bool `json:"online"`
}

// SearchUsersRequest represents a search users request.
type SearchUsersRequest struct {
	Search string `form:"search"`
}
