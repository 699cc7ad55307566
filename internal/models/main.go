// Package models defines the wire-level data structures shared by the
// auth client and the reference server.
package models

// Credentials carries a login/password pair for login and signup.
type Credentials struct {
	// Login is the account name.
	Login string `json:"login"`
	// Password is the plaintext password, sent over TLS only.
	Password string `json:"password"`
}

// TokenPair holds an opaque access/refresh token pair. Either field may
// be empty: backends that rely purely on cookies return no tokens.
type TokenPair struct {
	AccessToken  string `json:"access_token,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

// Profile is the remote user record. The client treats it as opaque;
// only the server knows its field set.
type Profile map[string]any

// PasswordUpdate carries a password change request.
type PasswordUpdate struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// CheckAuthResponse is the body of a successful check-auth call.
type CheckAuthResponse struct {
	Authenticated bool `json:"authenticated"`
}

// ErrorResponse is the JSON error body the server writes for non-2xx
// responses. Message and Error are alternatives; clients read whichever
// is set.
type ErrorResponse struct {
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}
