// pkg/introspect/validator.go
package introspect

import (
	"context"
	"errors"

	"tenantgate/pkg/identity"
)

// ErrTokenInvalid covers every validation failure: transport errors,
// non-200 introspection responses, authenticated:false, malformed or
// expired JWTs. The request path treats them all the same way — reject,
// never retry.
var ErrTokenInvalid = errors.New("token invalid")

// Validator turns an opaque bearer token into a Principal or fails closed.
type Validator interface {
	Validate(ctx context.Context, token string) (identity.Principal, error)
}
