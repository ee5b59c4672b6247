package auth

// Identity is the outcome of resolving a request credential: either an
// anonymous caller or a verified email. The zero value is anonymous.
type Identity struct {
	email string
}

// Anonymous returns the identity of a caller without a usable credential
func Anonymous() Identity {
	return Identity{}
}

// Authenticated returns a verified identity. An empty email is anonymous.
func Authenticated(email string) Identity {
	return Identity{email: email}
}

// Email returns the verified email and whether one is present
func (i Identity) Email() (string, bool) {
	return i.email, i.email != ""
}

// IsAnonymous reports whether no verified email is present
func (i Identity) IsAnonymous() bool {
	return i.email == ""
}

func (i Identity) String() string {
	if i.IsAnonymous() {
		return "anonymous"
	}
	return i.email
}
