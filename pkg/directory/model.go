package directory

// User is a directory record as seen by the claim encoder and reconciler.
// Attributes carries the raw source attributes (org id, account number in
// the reference deployment) keyed by attribute name.
type User struct {
	ID         string // uuid
	Username   string
	Attributes map[string]string
}

// Attribute returns the named attribute or "" when absent.
func (u User) Attribute(name string) string {
	return u.Attributes[name]
}
