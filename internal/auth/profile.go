package auth

// Profile is the provider-agnostic user record built from a provider's
// profile response. A new value is produced on every fetch.
type Profile struct {
	Provider string // e.g. "unsplash"
	ID       string // provider-scoped user identifier
	Name     Name
	Username string
	Email    string

	// Raw is the response body as received; JSON is the same body decoded.
	Raw  []byte
	JSON map[string]any
}

type Name struct {
	FirstName string
	LastName  string
}
