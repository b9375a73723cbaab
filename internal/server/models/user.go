package models

import "github.com/dmitrijs2005/fieldsync/internal/entity"

// User is an account allowed to sync. CLIENT users are bound to exactly one
// client through ClientID.
type User struct {
	ID             string
	Name           string
	Role           entity.Role
	ClientID       *string
	CreatedAtEpoch int64
}

// Session converts the account into the request-scoped session.
func (u *User) Session() entity.Session {
	s := entity.Session{UserID: u.ID, UserName: u.Name, Role: u.Role}
	if u.ClientID != nil {
		s.ClientID = *u.ClientID
	}
	return s
}
