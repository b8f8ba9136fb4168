// Package models holds the records guildkeeper persists outside the process.
package models

// Credential binds a platform identity to a local username and password hash.
// UserID is the primary key and never changes once created; Username is a
// display handle and is not unique.
type Credential struct {
	UserID       string `json:"user_id"`
	Username     string `json:"username"`
	PasswordHash string `json:"password_hash"`
}

// Clone returns an independent copy so stores never hand out shared pointers.
func (c *Credential) Clone() *Credential {
	if c == nil {
		return nil
	}
	cp := *c
	return &cp
}
