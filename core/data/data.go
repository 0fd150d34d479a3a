/*
Package data provides data providers that run semantic queries against a document store.

Every query argument is a query.Query. Providers translate it with query.Translate right
before it is handed to the driver, so callers never build native filters themselves.
MongoProvider is the MongoDB implementation of Provider.
*/
package data

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/relabs-tech/docquery/core/query"
)

// ErrNotFound is returned by the Assert operations when no document matches
var ErrNotFound = errors.New("not found")

// SortOrder is the direction of a sort field
type SortOrder int

// Sort orders
const (
	Ascending  SortOrder = 1
	Descending SortOrder = -1
)

// SortField sorts by a single, possibly dotted, field
type SortField struct {
	Field string    `json:"field"`
	Order SortOrder `json:"order"`
}

// Sort is an ordered list of sort fields
type Sort []SortField

func (s Sort) bson() bson.D {
	if len(s) == 0 {
		return nil
	}
	d := make(bson.D, 0, len(s))
	for _, f := range s {
		d = append(d, bson.E{Key: f.Field, Value: int(f.Order)})
	}
	return d
}

// OpParams are the parameters every operation accepts.
//
// If Txn is set, the operation runs inside that session. Otherwise a session carried by
// the context, see ContextWithTxn, is used.
type OpParams struct {
	Txn mongo.Session
}

// QueryParams are the parameters of operations returning documents
type QueryParams struct {
	OpParams
	// Projection selects the returned fields, e.g. bson.M{"name": 1}
	Projection bson.M
}

// ListParams are the parameters of operations returning lists of documents
type ListParams struct {
	QueryParams
	// Page is zero-based. Negative pages are treated as 0
	Page *int
	// PageSize defaults to the maximum page size if only Page is set
	PageSize *int
	// MaxPageSize overrides MaxPageSize when positive
	MaxPageSize int
	Sort        Sort
}

// Update lists the fields an update sets. Fields not listed are left untouched.
type Update map[string]interface{}

// Provider runs semantic queries against a collection of documents of type T
type Provider[T any] interface {
	InsertItem(ctx context.Context, item T, params ...OpParams) (T, error)
	InsertList(ctx context.Context, items []T, params ...OpParams) error
	GetManyByQuery(ctx context.Context, q query.Query, params ...ListParams) ([]T, error)
	// GetOneByQuery returns nil and no error if nothing matches
	GetOneByQuery(ctx context.Context, q query.Query, params ...QueryParams) (*T, error)
	AssertGetOneByQuery(ctx context.Context, q query.Query, params ...QueryParams) (*T, error)
	UpdateManyByQuery(ctx context.Context, q query.Query, update Update, params ...OpParams) error
	UpdateOneByQuery(ctx context.Context, q query.Query, update Update, params ...OpParams) error
	// GetAndUpdateOneByQuery returns the document after the update, or nil if nothing matches
	GetAndUpdateOneByQuery(ctx context.Context, q query.Query, update Update, params ...QueryParams) (*T, error)
	AssertGetAndUpdateOneByQuery(ctx context.Context, q query.Query, update Update, params ...QueryParams) (*T, error)
	ExistsByQuery(ctx context.Context, q query.Query, params ...OpParams) (bool, error)
	CountByQuery(ctx context.Context, q query.Query, params ...OpParams) (int64, error)
	DeleteManyByQuery(ctx context.Context, q query.Query, params ...OpParams) error
	DeleteOneByQuery(ctx context.Context, q query.Query, params ...OpParams) error
	BulkWrite(ctx context.Context, ops []BulkOp[T], params ...OpParams) error
}
