package data

import (
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/relabs-tech/docquery/core/query"
)

// BulkOpType is the kind of a bulk operation
type BulkOpType int

// Bulk operation kinds. ReplaceOne is reserved and skipped by BulkWrite.
const (
	BulkInsertOne BulkOpType = iota + 1
	BulkReplaceOne
	BulkUpdateOne
	BulkUpdateMany
	BulkDeleteOne
	BulkDeleteMany
)

// BulkOp is one operation of a bulk write. Which fields are used depends on Type:
// Item for inserts, Query for updates and deletes, Update and Upsert for updates.
type BulkOp[T any] struct {
	Type   BulkOpType
	Item   T
	Query  query.Query
	Update Update
	// Upsert only applies to BulkUpdateOne
	Upsert bool
}

// InsertOneOp returns a bulk operation inserting item
func InsertOneOp[T any](item T) BulkOp[T] {
	return BulkOp[T]{Type: BulkInsertOne, Item: item}
}

// UpdateOneOp returns a bulk operation updating the first document matching q
func UpdateOneOp[T any](q query.Query, update Update, upsert bool) BulkOp[T] {
	return BulkOp[T]{Type: BulkUpdateOne, Query: q, Update: update, Upsert: upsert}
}

// UpdateManyOp returns a bulk operation updating all documents matching q
func UpdateManyOp[T any](q query.Query, update Update) BulkOp[T] {
	return BulkOp[T]{Type: BulkUpdateMany, Query: q, Update: update}
}

// DeleteOneOp returns a bulk operation deleting the first document matching q
func DeleteOneOp[T any](q query.Query) BulkOp[T] {
	return BulkOp[T]{Type: BulkDeleteOne, Query: q}
}

// DeleteManyOp returns a bulk operation deleting all documents matching q
func DeleteManyOp[T any](q query.Query) BulkOp[T] {
	return BulkOp[T]{Type: BulkDeleteMany, Query: q}
}

// writeModels converts ops into driver write models. Operations of unknown type are skipped.
func writeModels[T any](ops []BulkOp[T]) []mongo.WriteModel {
	models := make([]mongo.WriteModel, 0, len(ops))
	for _, op := range ops {
		switch op.Type {
		case BulkInsertOne:
			models = append(models, mongo.NewInsertOneModel().SetDocument(op.Item))
		case BulkUpdateOne:
			models = append(models, mongo.NewUpdateOneModel().
				SetFilter(query.Translate(op.Query)).
				SetUpdate(setUpdate(op.Update)).
				SetUpsert(op.Upsert))
		case BulkUpdateMany:
			models = append(models, mongo.NewUpdateManyModel().
				SetFilter(query.Translate(op.Query)).
				SetUpdate(setUpdate(op.Update)))
		case BulkDeleteOne:
			models = append(models, mongo.NewDeleteOneModel().SetFilter(query.Translate(op.Query)))
		case BulkDeleteMany:
			models = append(models, mongo.NewDeleteManyModel().SetFilter(query.Translate(op.Query)))
		}
	}
	return models
}

func setUpdate(update Update) bson.M {
	return bson.M{"$set": update}
}
