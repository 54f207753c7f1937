package auth

// Rejection is returned by a verify callback to deny authentication.
// It is reported to the caller as a failed login, not an internal error.
type Rejection struct {
	Message string
}

func (r *Rejection) Error() string {
	if r.Message == "" {
		return "authentication rejected"
	}
	return r.Message
}
