package domain

// Credential is the opaque bearer token issued by the Auth service at
// login time. The client never inspects or parses it.
type Credential string

// IsZero reports whether no credential is held.
func (c Credential) IsZero() bool {
	return c == ""
}

// String keeps credentials out of logs and error messages. Use string(c)
// when the raw value is needed on the wire.
func (c Credential) String() string {
	if c.IsZero() {
		return "<none>"
	}
	return "<redacted>"
}
