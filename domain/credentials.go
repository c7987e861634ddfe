package domain

// Credentials describes the single pre-authenticated identity shared by all
// sessions. Established once at startup and read-only afterwards; every
// session receives it by value and never mutates it.
type Credentials struct {
	System      string
	Domain      string
	ClientID    string
	AccessToken string
}
