package auth

import "context"

// CompositeAuthenticator chains authenticators: the first one that
// supports the request and authenticates it wins. ontologyd does not
// use it: its buildAuthenticator wires a single APIKeyAuthenticator.
type CompositeAuthenticator struct {
	authenticators []Authenticator
}

func NewCompositeAuthenticator(auths ...Authenticator) *CompositeAuthenticator {
	return &CompositeAuthenticator{authenticators: auths}
}

func (c *CompositeAuthenticator) Name() string { return "composite" }

func (c *CompositeAuthenticator) Supports(ctx context.Context, req *AuthRequest) bool {
	for _, a := range c.authenticators {
		if a.Supports(ctx, req) {
			return true
		}
	}
	return false
}

// Authenticate tries each applicable authenticator in order,
// returning the first success. Infrastructure errors abort the chain;
// if every applicable authenticator rejects, the last rejection is
// returned so the caller sees the most specific failure.
func (c *CompositeAuthenticator) Authenticate(ctx context.Context, req *AuthRequest) (*AuthResult, error) {
	var last *AuthResult
	for _, a := range c.authenticators {
		if !a.Supports(ctx, req) {
			continue
		}
		result, err := a.Authenticate(ctx, req)
		if err != nil {
			return nil, err
		}
		if result.Authenticated {
			return result, nil
		}
		last = result
	}
	if last != nil {
		return last, nil
	}
	return AuthFailure(ErrMissingCredentials, "composite"), nil
}

var _ Authenticator = (*CompositeAuthenticator)(nil)
