package backend

import (
	"context"
	"errors"

	"github.com/99minutos/presencectl/internal/core/domain"
)

// authFailure converts a transport-level failure into an AuthError for op.
func authFailure(op string, err error) error {
	var ce *callError
	if errors.As(err, &ce) {
		return &domain.AuthError{Kind: ce.kind, Op: op, Err: ce.err}
	}
	return &domain.AuthError{Kind: domain.KindUnreachable, Op: op, Err: err}
}

// Login exchanges a username and password for a credential. It never sends a
// bearer header. A non-Success reply is InvalidCredentials and carries the
// server message unmodified.
func (c *Client) Login(ctx context.Context, username, password string) (domain.Credential, error) {
	const op = "login"

	body := loginRequest{Username: username, Password: password}
	rep, err := c.call(ctx, epLogin, body, "")
	if err != nil {
		var ce *callError
		if errors.As(err, &ce) && ce.kind == domain.KindUnauthorized {
			return "", &domain.AuthError{Kind: domain.KindInvalidCredentials, Op: op, Err: ce.err}
		}
		return "", authFailure(op, err)
	}
	if !rep.env.succeeded() {
		return "", &domain.AuthError{Kind: domain.KindInvalidCredentials, Op: op, Message: rep.env.Message}
	}

	token, err := decodeData[string](rep.env)
	if err != nil || token == "" {
		if err == nil {
			err = errNoData
		}
		return "", &domain.AuthError{Kind: domain.KindMalformedResponse, Op: op, Err: err}
	}
	return domain.Credential(token), nil
}

// Register creates an account using the stored credential. Input checks and
// the role check are left to the Auth service.
func (c *Client) Register(ctx context.Context, username, password string, role domain.Role) error {
	const op = "register"

	body := registerRequest{Username: username, Password: password, Role: string(role)}
	cred, err := c.sessionCredential(ctx)
	if err != nil {
		return &domain.AuthError{Kind: domain.KindNotAuthenticated, Op: op, Err: err}
	}

	rep, err := c.call(ctx, epRegister, body, cred)
	if err != nil {
		return authFailure(op, err)
	}
	if rep.env.succeeded() {
		return nil
	}
	kind := domain.KindRejected
	if rep.unauthorized() {
		kind = domain.KindUnauthorized
	}
	return &domain.AuthError{Kind: kind, Op: op, Message: rep.env.Message}
}

// Verify asks the Auth service who cred belongs to. Any non-Success reply
// means the credential is no longer accepted.
func (c *Client) Verify(ctx context.Context, cred domain.Credential) (domain.Principal, error) {
	const op = "verify"

	rep, err := c.call(ctx, epVerify, nil, cred)
	if err != nil {
		return domain.Principal{}, authFailure(op, err)
	}
	if !rep.env.succeeded() {
		return domain.Principal{}, &domain.AuthError{Kind: domain.KindUnauthorized, Op: op, Message: rep.env.Message}
	}

	principal, err := decodeData[domain.Principal](rep.env)
	if err == nil {
		err = c.check.check(principal)
	}
	if err != nil {
		return domain.Principal{}, &domain.AuthError{Kind: domain.KindMalformedResponse, Op: op, Err: err}
	}
	return principal, nil
}
