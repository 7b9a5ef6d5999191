package backend

import (
	"context"
	"errors"

	"github.com/99minutos/presencectl/internal/core/domain"
)

func presenceFailure(op string, err error) *domain.PresenceError {
	var ce *callError
	if errors.As(err, &ce) {
		return &domain.PresenceError{Kind: ce.kind, Op: op, Err: ce.err}
	}
	return &domain.PresenceError{Kind: domain.KindUnreachable, Op: op, Err: err}
}

// rejected classifies a non-Success presence reply.
func rejected(op string, rep reply) *domain.PresenceError {
	kind := domain.KindPresenceUnavailable
	if rep.unauthorized() {
		kind = domain.KindUnauthorized
	}
	return &domain.PresenceError{Kind: kind, Op: op, Message: rep.env.Message}
}

// RegisterConnection announces the current session to the Presence service.
// Repeating it for the same credential is harmless.
func (c *Client) RegisterConnection(ctx context.Context) error {
	const op = "connection_start"

	cred, err := c.sessionCredential(ctx)
	if err != nil {
		return &domain.PresenceError{Kind: domain.KindNotAuthenticated, Op: op, Err: err}
	}

	rep, err := c.call(ctx, epStart, nil, cred)
	if err != nil {
		return presenceFailure(op, err)
	}
	if !rep.env.succeeded() {
		return rejected(op, rep)
	}
	return nil
}

// ListConnections fetches the directory in server order. On failure it
// returns an empty, non-nil slice alongside the error; it never invents
// entries.
func (c *Client) ListConnections(ctx context.Context) ([]domain.ConnectionRecord, error) {
	const op = "list_users"
	empty := []domain.ConnectionRecord{}

	cred, err := c.sessionCredential(ctx)
	if err != nil {
		return empty, &domain.PresenceError{Kind: domain.KindNotAuthenticated, Op: op, Err: err}
	}

	rep, err := c.call(ctx, epListUsers, nil, cred)
	if err != nil {
		return empty, presenceFailure(op, err)
	}
	if !rep.env.succeeded() {
		return empty, rejected(op, rep)
	}

	payload, err := decodeData[[]connectionPayload](rep.env)
	if errors.Is(err, errNoData) {
		return empty, nil
	}
	if err != nil {
		return empty, &domain.PresenceError{Kind: domain.KindMalformedResponse, Op: op, Err: err}
	}

	records := make([]domain.ConnectionRecord, 0, len(payload))
	for _, p := range payload {
		if err := c.check.check(p); err != nil {
			return empty, &domain.PresenceError{Kind: domain.KindMalformedResponse, Op: op, Err: err}
		}
		records = append(records, domain.ConnectionRecord{
			Username:    p.Username,
			Address:     p.Address,
			ConnectedAt: p.ConnectedAt.Time,
		})
	}
	return records, nil
}
