package data

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/relabs-tech/docquery/core/logger"
	"github.com/relabs-tech/docquery/core/query"
)

// Collection is the subset of *mongo.Collection that MongoProvider uses
type Collection interface {
	Name() string
	InsertMany(ctx context.Context, documents []interface{}, opts ...*options.InsertManyOptions) (*mongo.InsertManyResult, error)
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) (*mongo.Cursor, error)
	FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) *mongo.SingleResult
	FindOneAndUpdate(ctx context.Context, filter interface{}, update interface{}, opts ...*options.FindOneAndUpdateOptions) *mongo.SingleResult
	UpdateMany(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error)
	UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error)
	CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error)
	DeleteMany(ctx context.Context, filter interface{}, opts ...*options.DeleteOptions) (*mongo.DeleteResult, error)
	DeleteOne(ctx context.Context, filter interface{}, opts ...*options.DeleteOptions) (*mongo.DeleteResult, error)
	BulkWrite(ctx context.Context, models []mongo.WriteModel, opts ...*options.BulkWriteOptions) (*mongo.BulkWriteResult, error)
}

// MongoProvider implements Provider on top of a MongoDB collection
type MongoProvider[T any] struct {
	collection Collection
	notFound   error
}

var _ Provider[bson.M] = (*MongoProvider[bson.M])(nil)

// MongoProviderOption configures a MongoProvider
type MongoProviderOption func(*mongoProviderOptions)

type mongoProviderOptions struct {
	notFound error
}

// WithNotFoundError sets the error the Assert operations return when nothing matches
func WithNotFoundError(err error) MongoProviderOption {
	return func(o *mongoProviderOptions) {
		o.notFound = err
	}
}

// NewMongoProvider returns a provider for the documents in collection
func NewMongoProvider[T any](collection Collection, opts ...MongoProviderOption) *MongoProvider[T] {
	o := mongoProviderOptions{notFound: ErrNotFound}
	for _, opt := range opts {
		opt(&o)
	}
	return &MongoProvider[T]{collection: collection, notFound: o.notFound}
}

// InsertItem inserts a single item and returns it
func (p *MongoProvider[T]) InsertItem(ctx context.Context, item T, params ...OpParams) (T, error) {
	if err := p.InsertList(ctx, []T{item}, params...); err != nil {
		var zero T
		return zero, err
	}
	return item, nil
}

// InsertList inserts items in order
func (p *MongoProvider[T]) InsertList(ctx context.Context, items []T, params ...OpParams) error {
	if len(items) == 0 {
		return nil
	}
	ctx = p.opContext(ctx, opParams(params))
	docs := make([]interface{}, len(items))
	for i := range items {
		docs[i] = items[i]
	}
	if _, err := p.collection.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("cannot insert into %s: %w", p.collection.Name(), err)
	}
	return nil
}

// GetManyByQuery returns all documents matching q, paginated and sorted as requested
func (p *MongoProvider[T]) GetManyByQuery(ctx context.Context, q query.Query, params ...ListParams) ([]T, error) {
	var lp ListParams
	if len(params) > 0 {
		lp = params[0]
	}
	ctx = p.opContext(ctx, lp.OpParams)
	filter := p.filter(ctx, "find", q)

	opts := options.Find()
	skip, limit := skipAndLimit(lp)
	if skip > 0 {
		opts.SetSkip(skip)
	}
	if limit > 0 {
		opts.SetLimit(limit)
	}
	if lp.Projection != nil {
		opts.SetProjection(lp.Projection)
	}
	if sort := lp.Sort.bson(); sort != nil {
		opts.SetSort(sort)
	}

	cursor, err := p.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("cannot find in %s: %w", p.collection.Name(), err)
	}
	items := []T{}
	if err := cursor.All(ctx, &items); err != nil {
		return nil, fmt.Errorf("cannot decode documents from %s: %w", p.collection.Name(), err)
	}
	return items, nil
}

// GetOneByQuery returns the first document matching q, or nil
func (p *MongoProvider[T]) GetOneByQuery(ctx context.Context, q query.Query, params ...QueryParams) (*T, error) {
	qp := queryParams(params)
	ctx = p.opContext(ctx, qp.OpParams)
	filter := p.filter(ctx, "findOne", q)

	opts := options.FindOne()
	if qp.Projection != nil {
		opts.SetProjection(qp.Projection)
	}
	return p.decodeOne(p.collection.FindOne(ctx, filter, opts))
}

// AssertGetOneByQuery is like GetOneByQuery, but returns the not found error if nothing matches
func (p *MongoProvider[T]) AssertGetOneByQuery(ctx context.Context, q query.Query, params ...QueryParams) (*T, error) {
	item, err := p.GetOneByQuery(ctx, q, params...)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, p.notFound
	}
	return item, nil
}

// UpdateManyByQuery sets the fields of update on all documents matching q
func (p *MongoProvider[T]) UpdateManyByQuery(ctx context.Context, q query.Query, update Update, params ...OpParams) error {
	ctx = p.opContext(ctx, opParams(params))
	if _, err := p.collection.UpdateMany(ctx, p.filter(ctx, "updateMany", q), setUpdate(update)); err != nil {
		return fmt.Errorf("cannot update %s: %w", p.collection.Name(), err)
	}
	return nil
}

// UpdateOneByQuery sets the fields of update on the first document matching q
func (p *MongoProvider[T]) UpdateOneByQuery(ctx context.Context, q query.Query, update Update, params ...OpParams) error {
	ctx = p.opContext(ctx, opParams(params))
	if _, err := p.collection.UpdateOne(ctx, p.filter(ctx, "updateOne", q), setUpdate(update)); err != nil {
		return fmt.Errorf("cannot update %s: %w", p.collection.Name(), err)
	}
	return nil
}

// GetAndUpdateOneByQuery sets the fields of update on the first document matching q and
// returns the updated document, or nil if nothing matches
func (p *MongoProvider[T]) GetAndUpdateOneByQuery(ctx context.Context, q query.Query, update Update, params ...QueryParams) (*T, error) {
	qp := queryParams(params)
	ctx = p.opContext(ctx, qp.OpParams)
	filter := p.filter(ctx, "findOneAndUpdate", q)

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	if qp.Projection != nil {
		opts.SetProjection(qp.Projection)
	}
	return p.decodeOne(p.collection.FindOneAndUpdate(ctx, filter, setUpdate(update), opts))
}

// AssertGetAndUpdateOneByQuery is like GetAndUpdateOneByQuery, but returns the not found
// error if nothing matches
func (p *MongoProvider[T]) AssertGetAndUpdateOneByQuery(ctx context.Context, q query.Query, update Update, params ...QueryParams) (*T, error) {
	item, err := p.GetAndUpdateOneByQuery(ctx, q, update, params...)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, p.notFound
	}
	return item, nil
}

// ExistsByQuery returns true if at least one document matches q
func (p *MongoProvider[T]) ExistsByQuery(ctx context.Context, q query.Query, params ...OpParams) (bool, error) {
	ctx = p.opContext(ctx, opParams(params))
	filter := p.filter(ctx, "exists", q)

	opts := options.FindOne().SetProjection(bson.M{"_id": 1})
	err := p.collection.FindOne(ctx, filter, opts).Err()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cannot find in %s: %w", p.collection.Name(), err)
	}
	return true, nil
}

// CountByQuery returns the number of documents matching q
func (p *MongoProvider[T]) CountByQuery(ctx context.Context, q query.Query, params ...OpParams) (int64, error) {
	ctx = p.opContext(ctx, opParams(params))
	count, err := p.collection.CountDocuments(ctx, p.filter(ctx, "count", q))
	if err != nil {
		return 0, fmt.Errorf("cannot count %s: %w", p.collection.Name(), err)
	}
	return count, nil
}

// DeleteManyByQuery deletes all documents matching q
func (p *MongoProvider[T]) DeleteManyByQuery(ctx context.Context, q query.Query, params ...OpParams) error {
	ctx = p.opContext(ctx, opParams(params))
	if _, err := p.collection.DeleteMany(ctx, p.filter(ctx, "deleteMany", q)); err != nil {
		return fmt.Errorf("cannot delete from %s: %w", p.collection.Name(), err)
	}
	return nil
}

// DeleteOneByQuery deletes the first document matching q
func (p *MongoProvider[T]) DeleteOneByQuery(ctx context.Context, q query.Query, params ...OpParams) error {
	ctx = p.opContext(ctx, opParams(params))
	if _, err := p.collection.DeleteOne(ctx, p.filter(ctx, "deleteOne", q)); err != nil {
		return fmt.Errorf("cannot delete from %s: %w", p.collection.Name(), err)
	}
	return nil
}

// BulkWrite runs ops in order. Operations of unknown type are skipped.
func (p *MongoProvider[T]) BulkWrite(ctx context.Context, ops []BulkOp[T], params ...OpParams) error {
	models := writeModels(ops)
	if len(models) == 0 {
		return nil
	}
	ctx = p.opContext(ctx, opParams(params))
	logger.FromContext(ctx).Debugf("bulk write of %d operations on %s", len(models), p.collection.Name())
	if _, err := p.collection.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(true)); err != nil {
		return fmt.Errorf("cannot bulk write to %s: %w", p.collection.Name(), err)
	}
	return nil
}

func (p *MongoProvider[T]) filter(ctx context.Context, operation string, q query.Query) query.Filter {
	filter := query.Translate(q)
	logger.FromContext(ctx).WithField("operation", operation).Debugf("filter on %s: %v", p.collection.Name(), filter)
	return filter
}

func (p *MongoProvider[T]) decodeOne(result *mongo.SingleResult) (*T, error) {
	var item T
	err := result.Decode(&item)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cannot decode document from %s: %w", p.collection.Name(), err)
	}
	return &item, nil
}

// opContext returns a context carrying the session of params, if any
func (p *MongoProvider[T]) opContext(ctx context.Context, params OpParams) context.Context {
	if params.Txn != nil {
		return ContextWithTxn(ctx, params.Txn)
	}
	return ctx
}

func opParams(params []OpParams) OpParams {
	if len(params) > 0 {
		return params[0]
	}
	return OpParams{}
}

func queryParams(params []QueryParams) QueryParams {
	if len(params) > 0 {
		return params[0]
	}
	return QueryParams{}
}
