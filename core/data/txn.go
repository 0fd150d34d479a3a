package data

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/relabs-tech/docquery/core/logger"
)

// SessionStarter starts sessions. *mongo.Client implements it.
type SessionStarter interface {
	StartSession(opts ...*options.SessionOptions) (mongo.Session, error)
}

// ContextWithTxn returns a context that carries txn. Operations called with this context
// run inside txn.
func ContextWithTxn(ctx context.Context, txn mongo.Session) context.Context {
	return mongo.NewSessionContext(ctx, txn)
}

// TxnFromContext returns the session carried by ctx, or nil
func TxnFromContext(ctx context.Context) mongo.Session {
	return mongo.SessionFromContext(ctx)
}

// TxnOptions control how WithTxn finds a session
type TxnOptions struct {
	// Reuse uses the session carried by the context if there is one
	Reuse bool
	// Existing is used instead of starting a new session
	Existing mongo.Session
}

// WithTxn runs fn inside a transaction.
//
// If an existing session is given, or opts.Reuse is set and ctx carries a session, fn
// runs directly with a context carrying that session and the caller owns the
// transaction. Otherwise a new session is started, fn runs inside its transaction and the
// session is ended afterwards. The context passed to fn carries the session, so nested
// WithTxn calls with Reuse join the same transaction.
func WithTxn[R any](ctx context.Context, starter SessionStarter, fn func(ctx context.Context) (R, error), opts TxnOptions) (R, error) {
	var result R

	existing := opts.Existing
	if existing == nil && opts.Reuse {
		existing = TxnFromContext(ctx)
	}
	if existing != nil {
		return fn(ContextWithTxn(ctx, existing))
	}

	session, err := starter.StartSession()
	if err != nil {
		return result, fmt.Errorf("cannot start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		r, err := fn(sc)
		if err != nil {
			return nil, err
		}
		result = r
		return nil, nil
	})
	if err != nil {
		logger.FromContext(ctx).WithError(err).Debug("transaction aborted")
		return result, err
	}
	return result, nil
}
