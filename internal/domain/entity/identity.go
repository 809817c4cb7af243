package entity

import "time"

// Identity is the resolved caller identity attached to a request after
// authentication. It is built once by the auth middleware and passed
// explicitly into service calls; business logic never reaches into the
// session on its own.
type Identity struct {
	Token      string
	UserID     int64
	Issuer     string
	ClientID   string // login username
	Permission string // role label used for access checks
	Duration   time.Duration
}

// IsAdministrator reports whether the caller holds the administrative role.
func (i Identity) IsAdministrator() bool {
	return i.Permission == RoleAdministrator
}
