// Package session carries the signed-in user through controllers explicitly.
package session

// Session identifies the caller. The zero value is an anonymous visitor.
type Session struct {
	UserID      string
	Email       string
	Role        string
	AccessToken string
}

func (s Session) Authenticated() bool { return s.UserID != "" && s.AccessToken != "" }

// Anonymous is the session of a visitor that did not sign in.
var Anonymous = Session{}
