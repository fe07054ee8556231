// Package mongo implements the store capability on MongoDB. Scripted
// mutations compile to aggregation-pipeline updates, which MongoDB
// applies atomically per document.
package mongo

import (
	"context"
	"errors"

	"fleetdex/internal/store/config"
	"fleetdex/internal/store/types"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
)

// Backend is a MongoDB-backed store. One collection per index name.
type Backend struct {
	client *mongo.Client
	db     *mongo.Database
}

// New connects to MongoDB and verifies the connection.
func New(ctx context.Context, cfg config.MongoConfig) (*Backend, error) {
	clientOpts := options.Client().
		ApplyURI(cfg.URI).
		SetConnectTimeout(cfg.ConnectTimeout)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, err
	}

	return &Backend{
		client: client,
		db:     client.Database(cfg.Database),
	}, nil
}

// collection returns the collection for an index name. Sync writes use
// majority write concern so the change is observable by an immediately
// following read anywhere in the replica set.
func (b *Backend) collection(index string, sync bool) *mongo.Collection {
	if sync {
		return b.db.Collection(index, options.Collection().SetWriteConcern(writeconcern.Majority()))
	}
	return b.db.Collection(index)
}

func (b *Backend) Index(ctx context.Context, index, id string, doc types.Document, opts types.WriteOptions) error {
	coll := b.collection(index, opts.Sync)

	body := bson.M{"_id": id}
	for k, v := range doc {
		body[k] = v
	}

	if opts.CreateOnly {
		_, err := coll.InsertOne(ctx, body)
		if mongo.IsDuplicateKeyError(err) {
			return types.ErrConflict
		}
		return err
	}

	_, err := coll.ReplaceOne(ctx, bson.M{"_id": id}, body, options.Replace().SetUpsert(true))
	return err
}

func (b *Backend) Get(ctx context.Context, index, id string) (types.Document, error) {
	var raw bson.M
	err := b.collection(index, false).FindOne(ctx, bson.M{"_id": id}).Decode(&raw)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, types.ErrNotFound
		}
		return nil, err
	}
	return sourceOf(raw), nil
}

func (b *Backend) Update(ctx context.Context, index, id string, partial types.Document) error {
	set := bson.M{}
	flattenInto("", partial, set)
	if len(set) == 0 {
		// Nothing to merge; still report missing documents.
		if _, err := b.Get(ctx, index, id); err != nil {
			return err
		}
		return nil
	}

	res, err := b.collection(index, false).UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return types.ErrNotFound
	}
	return nil
}

func (b *Backend) DeleteByQuery(ctx context.Context, indexes []string, ids []string, opts types.DeleteOptions) error {
	// MongoDB deletes do not surface per-document conflicts, so the
	// proceed-on-conflict policy is inherently satisfied.
	filter := bson.M{"_id": bson.M{"$in": ids}}
	for _, index := range indexes {
		if _, err := b.collection(index, opts.Sync).DeleteMany(ctx, filter); err != nil {
			return err
		}
	}
	return nil
}

func (b *Backend) Search(ctx context.Context, index string, q types.Query) ([]types.Hit, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	filter := filterBSON(q.Filter)
	if q.Text != "" {
		filter["$text"] = bson.M{"$search": q.Text}
	}

	findOpts := options.Find()
	if proj := projectionBSON(q.Include, q.Exclude); proj != nil {
		findOpts.SetProjection(proj)
	}
	if len(q.Sort) > 0 {
		sort := bson.D{}
		for _, s := range q.Sort {
			dir := 1
			if s.Direction == types.Desc {
				dir = -1
			}
			sort = append(sort, bson.E{Key: s.Field, Value: dir})
		}
		findOpts.SetSort(sort)
	}
	if q.From > 0 {
		findOpts.SetSkip(int64(q.From))
	}
	if q.Size > 0 {
		findOpts.SetLimit(int64(q.Size))
	}

	cursor, err := b.collection(index, false).Find(ctx, filter, findOpts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var hits []types.Hit
	for cursor.Next(ctx) {
		var raw bson.M
		if err := cursor.Decode(&raw); err != nil {
			return nil, err
		}
		id, _ := raw["_id"].(string)
		hits = append(hits, types.Hit{ID: id, Source: sourceOf(raw)})
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}
	return hits, nil
}

func (b *Backend) UpdateByScript(ctx context.Context, index string, filter types.Filter, script types.Script) error {
	pipeline, err := scriptPipeline(script)
	if err != nil {
		return err
	}
	_, err = b.collection(index, false).UpdateMany(ctx, filterBSON(filter), pipeline)
	return err
}

// EnsureIndexes creates the wildcard text index backing free-text
// search on the given collections. Called once at wiring time.
func (b *Backend) EnsureIndexes(ctx context.Context, indexes ...string) error {
	for _, index := range indexes {
		_, err := b.db.Collection(index).Indexes().CreateOne(ctx, mongo.IndexModel{
			Keys: bson.D{{Key: "$**", Value: "text"}},
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (b *Backend) Close(ctx context.Context) error {
	return b.client.Disconnect(ctx)
}
