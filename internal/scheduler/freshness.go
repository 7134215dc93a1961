package scheduler

import "time"

// TokenState is what the freshness policy knows about the current token.
// Tokens carry a server-controlled expiry that is not observable here.
type TokenState struct {
	Token  string
	Waited time.Duration
}

// Policy decides whether the token must be renewed before acting at target.
type Policy interface {
	NeedsRenewal(target time.Time, st TokenState) bool
}

// ConservativePolicy renews after any nonzero wait and never otherwise.
type ConservativePolicy struct{}

func (ConservativePolicy) NeedsRenewal(_ time.Time, st TokenState) bool {
	return st.Waited > 0
}
