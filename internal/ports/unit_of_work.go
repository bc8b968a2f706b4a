package ports

import "context"

// Tx is an opaque transaction handle for repositories. Infrastructure decides
// the concrete type (here, *gorm.DB).
type Tx interface{}

// UnitOfWork is the transaction boundary every state transition runs under:
// the status re-check, the request mutation and the audit append commit
// together or not at all. Returning an error from fn rolls back.
type UnitOfWork interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type txKey struct{}

// WithTxContext stores a transaction handle in context.
func WithTxContext(ctx context.Context, tx Tx) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

// TxFromContext reads a transaction handle from context.
func TxFromContext(ctx context.Context) Tx {
	return ctx.Value(txKey{})
}
