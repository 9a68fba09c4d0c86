package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/diagnosis/luxsuv-tours/internal/domain"
	"github.com/diagnosis/luxsuv-tours/internal/query"
)

const (
	ToursCollection    = "tours"
	UsersCollection    = "users"
	ReviewsCollection  = "reviews"
	BookingsCollection = "bookings"
)

const opTimeout = 5 * time.Second

// Collection is a scoped generic document store. Every read and write is
// restricted by the collection scope and never returns hidden fields.
type Collection struct {
	db     *mongo.Database
	coll   *mongo.Collection
	scope  bson.M
	hidden []string
}

func NewCollection(db *mongo.Database, name string, opts query.Options) *Collection {
	return &Collection{
		db:     db,
		coll:   db.Collection(name),
		scope:  opts.Scope,
		hidden: opts.Hidden,
	}
}

func (c *Collection) Name() string { return c.coll.Name() }

// ParseID converts a hex id, reporting malformed input as InvalidIDError.
func ParseID(id string) (bson.ObjectID, error) {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return bson.ObjectID{}, &domain.InvalidIDError{Value: id}
	}
	return oid, nil
}

func (c *Collection) scoped(filter bson.M) bson.M {
	if len(c.scope) == 0 {
		if filter == nil {
			return bson.M{}
		}
		return filter
	}
	if len(filter) == 0 {
		return c.scope
	}
	return bson.M{"$and": bson.A{c.scope, filter}}
}

func (c *Collection) projection() bson.M {
	proj := bson.M{query.VersionField: 0}
	for _, h := range c.hidden {
		proj[h] = 0
	}
	return proj
}

// Find runs a composed list query. The filter in q is used as is: the caller
// applies the scope through the query builder.
func (c *Collection) Find(ctx context.Context, q query.Query, rels ...query.Relation) ([]bson.M, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	cur, err := c.coll.Find(ctx, q.Filter, q.FindOptions())
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", c.Name(), err)
	}
	docs := []bson.M{}
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode %s: %w", c.Name(), err)
	}
	if err := c.populate(ctx, docs, rels); err != nil {
		return nil, err
	}
	return docs, nil
}

func (c *Collection) FindByID(ctx context.Context, id string, rels ...query.Relation) (bson.M, error) {
	oid, err := ParseID(id)
	if err != nil {
		return nil, err
	}
	return c.FindOne(ctx, bson.M{"_id": oid}, rels...)
}

func (c *Collection) FindOne(ctx context.Context, filter bson.M, rels ...query.Relation) (bson.M, error) {
	return c.findOne(ctx, c.scoped(filter), rels)
}

func (c *Collection) findOne(ctx context.Context, filter bson.M, rels []query.Relation) (bson.M, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var doc bson.M
	err := c.coll.FindOne(ctx, filter, options.FindOne().SetProjection(c.projection())).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find one %s: %w", c.Name(), err)
	}
	if err := c.populate(ctx, []bson.M{doc}, rels); err != nil {
		return nil, err
	}
	return doc, nil
}

// Insert stores doc and returns it as read back from the store, so the
// response carries exactly what a later Get would.
func (c *Collection) Insert(ctx context.Context, doc bson.M) (bson.M, error) {
	id, ok := doc["_id"].(bson.ObjectID)
	if !ok || id.IsZero() {
		id = bson.NewObjectID()
		doc["_id"] = id
	}
	if _, ok := doc[query.VersionField]; !ok {
		doc[query.VersionField] = 0
	}

	insertCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	if _, err := c.coll.InsertOne(insertCtx, doc); err != nil {
		return nil, fmt.Errorf("insert %s: %w", c.Name(), err)
	}
	return c.findOne(ctx, bson.M{"_id": id}, nil)
}

// UpdateByID applies $set and returns the updated document.
func (c *Collection) UpdateByID(ctx context.Context, id string, set bson.M) (bson.M, error) {
	oid, err := ParseID(id)
	if err != nil {
		return nil, err
	}
	if len(set) == 0 {
		return c.FindOne(ctx, bson.M{"_id": oid})
	}
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var doc bson.M
	err = c.coll.FindOneAndUpdate(ctx, c.scoped(bson.M{"_id": oid}), bson.M{"$set": set},
		options.FindOneAndUpdate().
			SetReturnDocument(options.After).
			SetProjection(c.projection()),
	).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update %s: %w", c.Name(), err)
	}
	return doc, nil
}

// DeleteByID removes the document and returns what was deleted.
func (c *Collection) DeleteByID(ctx context.Context, id string) (bson.M, error) {
	oid, err := ParseID(id)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var doc bson.M
	err = c.coll.FindOneAndDelete(ctx, c.scoped(bson.M{"_id": oid})).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("delete %s: %w", c.Name(), err)
	}
	return doc, nil
}

func (c *Collection) Count(ctx context.Context, filter bson.M) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	n, err := c.coll.CountDocuments(ctx, c.scoped(filter))
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", c.Name(), err)
	}
	return n, nil
}

// Aggregate runs pipeline with the collection scope in front. A leading
// $geoNear must stay first, so the scope is merged into its query instead.
func (c *Collection) Aggregate(ctx context.Context, pipeline mongo.Pipeline, out any) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if len(c.scope) > 0 {
		pipeline = c.scopePipeline(pipeline)
	}
	cur, err := c.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return fmt.Errorf("aggregate %s: %w", c.Name(), err)
	}
	if err := cur.All(ctx, out); err != nil {
		return fmt.Errorf("decode aggregate %s: %w", c.Name(), err)
	}
	return nil
}

func (c *Collection) scopePipeline(pipeline mongo.Pipeline) mongo.Pipeline {
	if len(pipeline) > 0 && len(pipeline[0]) > 0 && pipeline[0][0].Key == "$geoNear" {
		if stage, ok := pipeline[0][0].Value.(bson.D); ok {
			merged := make(bson.D, 0, len(stage)+1)
			found := false
			for _, e := range stage {
				if e.Key == "query" {
					if q, ok := e.Value.(bson.M); ok && len(q) > 0 {
						e.Value = bson.M{"$and": bson.A{c.scope, q}}
					} else {
						e.Value = c.scope
					}
					found = true
				}
				merged = append(merged, e)
			}
			if !found {
				merged = append(merged, bson.E{Key: "query", Value: c.scope})
			}
			out := make(mongo.Pipeline, len(pipeline))
			copy(out, pipeline)
			out[0] = bson.D{{Key: "$geoNear", Value: merged}}
			return out
		}
	}
	return append(mongo.Pipeline{{{Key: "$match", Value: c.scope}}}, pipeline...)
}
