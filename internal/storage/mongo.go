package storage

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Mongo is a Collection stored in a MongoDB collection. The schema key is
// stored as the document _id. Rename needs a replica set for transactions.
type Mongo[T any] struct {
	col    *mongo.Collection
	schema Schema[T]
}

// NewMongo binds schema to the collection of the same name in db
func NewMongo[T any](db *mongo.Database, schema Schema[T]) (*Mongo[T], error) {
	if err := schema.check(); err != nil {
		return nil, err
	}
	return &Mongo[T]{col: db.Collection(schema.Name), schema: schema}, nil
}

// MapMongoError converts driver errors into storage sentinels
func MapMongoError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	}
	return err
}

func (m *Mongo[T]) docField(field string) string {
	if field == m.schema.Key {
		return "_id"
	}
	return field
}

func (m *Mongo[T]) document(rec T) bson.D {
	vals := m.schema.Values(rec)
	doc := make(bson.D, 0, len(vals))
	doc = append(doc, bson.E{Key: "_id", Value: normalize(vals[m.schema.keyIndex()])})
	for i, f := range m.schema.Fields {
		if f == m.schema.Key {
			continue
		}
		doc = append(doc, bson.E{Key: f, Value: normalize(vals[i])})
	}
	return doc
}

var mongoOps = map[Op]string{
	OpEq: "$eq",
	OpNe: "$ne",
	OpLt: "$lt",
	OpLe: "$lte",
	OpGt: "$gt",
	OpGe: "$gte",
}

func (m *Mongo[T]) filter(f Filter) (bson.M, error) {
	switch node := f.(type) {
	case nil:
		return bson.M{}, nil
	case Compare:
		field := m.docField(node.Field)
		if node.Op == OpLike {
			sub, ok := node.Value.(string)
			if !ok {
				return nil, fmt.Errorf("%w: like needs a string value, got %T", ErrInvalidQuery, node.Value)
			}
			return bson.M{field: bson.M{"$regex": regexp.QuoteMeta(sub)}}, nil
		}
		op, ok := mongoOps[node.Op]
		if !ok {
			return nil, fmt.Errorf("%w: unsupported operator %q", ErrInvalidQuery, node.Op)
		}
		return bson.M{field: bson.M{op: normalize(node.Value)}}, nil
	case And:
		if len(node.Filters) == 0 {
			return bson.M{}, nil
		}
		parts, err := m.filters(node.Filters)
		if err != nil {
			return nil, err
		}
		return bson.M{"$and": parts}, nil
	case Or:
		if len(node.Filters) == 0 {
			return bson.M{"$expr": false}, nil
		}
		parts, err := m.filters(node.Filters)
		if err != nil {
			return nil, err
		}
		return bson.M{"$or": parts}, nil
	}
	return nil, fmt.Errorf("%w: unsupported filter node %T", ErrInvalidQuery, f)
}

func (m *Mongo[T]) filters(fs []Filter) (bson.A, error) {
	parts := make(bson.A, 0, len(fs))
	for _, child := range fs {
		part, err := m.filter(child)
		if err != nil {
			return nil, err
		}
		parts = append(parts, part)
	}
	return parts, nil
}

// fromBSON maps decoded driver values onto the kinds assign understands
func fromBSON(v any) any {
	switch x := v.(type) {
	case primitive.DateTime:
		return x.Time().UTC()
	case primitive.A:
		return []any(x)
	case int32:
		return int64(x)
	}
	return v
}

func (m *Mongo[T]) decode(doc bson.M) (T, error) {
	vals := make([]any, len(m.schema.Fields))
	for i, f := range m.schema.Fields {
		vals[i] = fromBSON(doc[m.docField(f)])
	}
	return m.schema.Scan(scanValues(vals))
}

func (m *Mongo[T]) Store(ctx context.Context, rec T) error {
	doc := m.document(rec)
	_, err := m.col.ReplaceOne(ctx, bson.M{"_id": doc[0].Value}, doc, options.Replace().SetUpsert(true))
	return MapMongoError(err)
}

func (m *Mongo[T]) Insert(ctx context.Context, rec T) error {
	_, err := m.col.InsertOne(ctx, m.document(rec))
	return MapMongoError(err)
}

func (m *Mongo[T]) Get(ctx context.Context, q Query) ([]T, error) {
	if err := m.schema.validateQuery(q); err != nil {
		return nil, err
	}
	filter, err := m.filter(q.Where())
	if err != nil {
		return nil, err
	}

	opts := options.Find()
	if sort := q.Sort(); sort != nil {
		dir := 1
		if sort.Order == Desc {
			dir = -1
		}
		opts.SetSort(bson.D{{Key: m.docField(sort.Field), Value: dir}})
	}
	offset, limit := q.Page()
	if offset > 0 {
		opts.SetSkip(int64(offset))
	}
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cur, err := m.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, MapMongoError(err)
	}
	defer cur.Close(ctx)

	var docs []bson.M
	if err := cur.All(ctx, &docs); err != nil {
		return nil, MapMongoError(err)
	}
	out := make([]T, 0, len(docs))
	for _, doc := range docs {
		rec, err := m.decode(doc)
		if err != nil {
			return nil, fmt.Errorf("storage: decode %s: %w", m.schema.Name, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

func (m *Mongo[T]) Delete(ctx context.Context, f Filter) (int64, error) {
	if err := m.schema.validateFilter(f); err != nil {
		return 0, err
	}
	filter, err := m.filter(f)
	if err != nil {
		return 0, err
	}
	res, err := m.col.DeleteMany(ctx, filter)
	if err != nil {
		return 0, MapMongoError(err)
	}
	return res.DeletedCount, nil
}

func (m *Mongo[T]) Count(ctx context.Context, f Filter) (int64, error) {
	if err := m.schema.validateFilter(f); err != nil {
		return 0, err
	}
	filter, err := m.filter(f)
	if err != nil {
		return 0, err
	}
	n, err := m.col.CountDocuments(ctx, filter)
	return n, MapMongoError(err)
}

func (m *Mongo[T]) Rename(ctx context.Context, oldKey any, rec T) error {
	session, err := m.col.Database().Client().StartSession()
	if err != nil {
		return err
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (any, error) {
		res, err := m.col.DeleteOne(sc, bson.M{"_id": normalize(oldKey)})
		if err != nil {
			return nil, MapMongoError(err)
		}
		if res.DeletedCount == 0 {
			return nil, fmt.Errorf("%w: %s %v", ErrNotFound, m.schema.Name, oldKey)
		}
		if _, err := m.col.InsertOne(sc, m.document(rec)); err != nil {
			return nil, MapMongoError(err)
		}
		return nil, nil
	})
	return err
}
