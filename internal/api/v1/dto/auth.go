package dto

import "time"

// GoogleLoginDTO is the incoming Google login request. At least one of the two
// tokens must be present.
type GoogleLoginDTO struct {
	IDToken     string `json:"id_token,omitempty"`
	AccessToken string `json:"access_token,omitempty"`
}

// UserResponseDTO is returned in API responses for users
type UserResponseDTO struct {
	UserID      string     `json:"user_id"`
	Email       string     `json:"email"`
	Name        string     `json:"name"`
	PhotoURL    string     `json:"photo_url,omitempty"`
	Points      int        `json:"points"`
	CreatedAt   time.Time  `json:"created_at"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
}

// LoginResponseDTO carries the issued access token alongside the user profile
type LoginResponseDTO struct {
	AccessToken string          `json:"access_token"`
	TokenType   string          `json:"token_type"`
	User        UserResponseDTO `json:"user"`
}
