package models

// User identifies the caller from the claims of a forwarded access token.
// Claims are read for attribution only and are never verified.
type User struct {
	Subject  string `json:"sub"`
	UserName string `json:"user_name,omitempty"`
	Email    string `json:"email,omitempty"`
}

// Anonymous is used when no access token is forwarded
var Anonymous = User{Subject: "anonymous"}

// DisplayName returns the most readable identifier available
func (u User) DisplayName() string {
	switch {
	case u.UserName != "":
		return u.UserName
	case u.Email != "":
		return u.Email
	default:
		return u.Subject
	}
}

// IsAnonymous reports whether no identity was forwarded
func (u User) IsAnonymous() bool {
	return u.Subject == "" || u.Subject == Anonymous.Subject
}
