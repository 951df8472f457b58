package catalog

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore is the production Store backed by a single products
// collection.
type MongoStore struct {
	client              *mongo.Client
	coll                *mongo.Collection
	softDeleteRetention time.Duration
}

// NewMongoStore connects, verifies the connection and ensures indexes.
func NewMongoStore(ctx context.Context, uri, dbName, collName string, softDeleteRetention time.Duration) (*MongoStore, error) {
	clientOpts := options.Client().ApplyURI(uri)
	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, err
	}

	store := &MongoStore{
		client:              client,
		coll:                client.Database(dbName).Collection(collName),
		softDeleteRetention: softDeleteRetention,
	}
	store.EnsureIndexes(ctx)
	return store, nil
}

// EnsureIndexes creates necessary indexes.
func (m *MongoStore) EnsureIndexes(ctx context.Context) error {
	for _, field := range []string{"sku", "category"} {
		_, err := m.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
			Keys:    bson.D{{Key: field, Value: 1}},
			Options: options.Index().SetUnique(field == "sku"),
		})
		if err != nil {
			return err
		}
	}

	// Soft-delete retention TTL index
	_, err := m.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "sys_expires_at", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(0),
	})
	return err
}

func (m *MongoStore) Get(ctx context.Context, sku string) (*Product, error) {
	var p Product
	err := m.coll.FindOne(ctx, bson.M{"_id": ProductID(sku), "deleted": bson.M{"$ne": true}}).Decode(&p)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (m *MongoStore) List(ctx context.Context, q Query) ([]*Product, error) {
	filter := bson.M{}
	if q.Category != "" {
		filter["category"] = q.Category
	}
	if !q.ShowDeleted {
		filter["deleted"] = bson.M{"$ne": true}
	}

	findOptions := options.Find().SetSort(bson.D{{Key: "sku", Value: 1}})
	if q.Limit > 0 {
		findOptions.SetLimit(int64(q.Limit))
	}

	cursor, err := m.coll.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var products []*Product
	if err := cursor.All(ctx, &products); err != nil {
		return nil, err
	}
	return products, nil
}

func (m *MongoStore) Create(ctx context.Context, p *Product) error {
	p.ID = ProductID(p.SKU)
	p.Deleted = false

	_, err := m.coll.InsertOne(ctx, p)
	if mongo.IsDuplicateKeyError(err) {
		// Check if the product exists but is soft-deleted
		var existing Product
		if findErr := m.coll.FindOne(ctx, bson.M{"_id": p.ID}).Decode(&existing); findErr == nil {
			if existing.Deleted {
				// Overwrite the soft-deleted product
				_, replaceErr := m.coll.ReplaceOne(ctx, bson.M{"_id": p.ID}, p)
				return replaceErr
			}
		}
		return ErrExists
	}
	return err
}

func (m *MongoStore) Update(ctx context.Context, sku string, fields map[string]any) (*Product, error) {
	sets := bson.M{"updated_at": time.Now().UnixMilli()}
	for k, v := range fields {
		sets[k] = v
	}
	update := bson.M{
		"$set": sets,
		"$inc": bson.M{"version": 1},
	}

	return m.findAndApply(ctx, sku, bson.M{"deleted": bson.M{"$ne": true}}, update)
}

func (m *MongoStore) Delete(ctx context.Context, sku string) (*Product, error) {
	update := bson.M{
		"$set": bson.M{
			"deleted":        true,
			"updated_at":     time.Now().UnixMilli(),
			"sys_expires_at": time.Now().Add(m.softDeleteRetention),
		},
		"$inc": bson.M{"version": 1},
	}
	return m.findAndApply(ctx, sku, bson.M{"deleted": bson.M{"$ne": true}}, update)
}

func (m *MongoStore) Restore(ctx context.Context, sku string) (*Product, error) {
	update := bson.M{
		"$set":   bson.M{"deleted": false, "updated_at": time.Now().UnixMilli()},
		"$unset": bson.M{"sys_expires_at": ""},
		"$inc":   bson.M{"version": 1},
	}
	return m.findAndApply(ctx, sku, bson.M{"deleted": true}, update)
}

// findAndApply runs a conditional FindOneAndUpdate keyed by SKU hash and
// maps a miss to ErrNotFound.
func (m *MongoStore) findAndApply(ctx context.Context, sku string, cond bson.M, update bson.M) (*Product, error) {
	filter := bson.M{"_id": ProductID(sku)}
	for k, v := range cond {
		filter[k] = v
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var p Product
	err := m.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&p)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (m *MongoStore) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

// Compile-time check
var _ Store = (*MongoStore)(nil)
