package session

// AuthenticationError reports failed credential verification. The message is
// identical for unknown identifiers and wrong secrets so callers cannot
// enumerate accounts.
type AuthenticationError struct{}

func (e *AuthenticationError) Error() string {
	return "invalid credentials"
}

// InvalidTokenError reports an expired, revoked, malformed, or unknown
// token. Reason is kept for logging; the message stays generic.
type InvalidTokenError struct {
	Reason string
}

func (e *InvalidTokenError) Error() string {
	return "invalid or expired token"
}
