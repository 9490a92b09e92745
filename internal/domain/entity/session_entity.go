package entity

import "time"

// Session is a snapshot of who is signed in on this process.
type Session struct {
	Identity *Identity
	Loading  bool
}

// Authenticated reports whether the snapshot holds an identity.
func (s Session) Authenticated() bool { return s.Identity != nil }

const (
	PurposeSession  = "session"
	PurposeRecovery = "recovery"
)

// AuthSession is the identity provider's view of a session: who, and the
// token pair that proves it.
type AuthSession struct {
	Identity        *Identity `json:"identity"`
	AccessToken     string    `json:"access_token"`
	RefreshToken    string    `json:"refresh_token"`
	AccessExpiresAt time.Time `json:"access_expires_at"`
	Purpose         string    `json:"purpose"`
}
