package models

import "encoding/json"

// User is the identity returned by the auth endpoints alongside the token.
// Fields the UI does not use are kept in Raw so the session can hold the
// full record.
type User struct {
	ID    string `json:"id,omitempty" bson:"id,omitempty"`
	Email string `json:"email,omitempty" bson:"email,omitempty"`
	Name  string `json:"name,omitempty" bson:"name,omitempty"`

	Raw json.RawMessage `json:"raw,omitempty" bson:"raw,omitempty"`
}

// DisplayName prefers the name, then the email.
func (u User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.Email
}
