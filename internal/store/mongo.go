package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const mongoCollection = "analyses"

// Mongo stores analyses as documents keyed by ID.
type Mongo struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// ConnectMongo connects, pings and ensures the owner/created index.
func ConnectMongo(ctx context.Context, uri, database string) (*Mongo, error) {
	if uri == "" {
		return nil, errors.New("MONGO_URI is required")
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	coll := client.Database(database).Collection(mongoCollection)
	_, err = coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "owner_id", Value: 1}, {Key: "created_at", Value: -1}},
	})
	if err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("mongo index: %w", err)
	}

	slog.Info("store: mongo connected", slog.String("db", database))
	return &Mongo{client: client, collection: coll}, nil
}

func (m *Mongo) Create(ctx context.Context, a SavedAnalysis) (SavedAnalysis, error) {
	a, err := prepare(a, now())
	if err != nil {
		return SavedAnalysis{}, err
	}
	if _, err := m.collection.InsertOne(ctx, a); err != nil {
		return SavedAnalysis{}, persistErr("insert", err)
	}
	return a, nil
}

func (m *Mongo) List(ctx context.Context, ownerID string) ([]SavedAnalysis, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	cursor, err := m.collection.Find(ctx, bson.M{"owner_id": ownerID}, opts)
	if err != nil {
		return nil, persistErr("list", err)
	}
	defer cursor.Close(ctx)

	out := make([]SavedAnalysis, 0)
	for cursor.Next(ctx) {
		var a SavedAnalysis
		if err := cursor.Decode(&a); err != nil {
			return nil, persistErr("decode", err)
		}
		out = append(out, normalizeMongo(a))
	}
	if err := cursor.Err(); err != nil {
		return nil, persistErr("cursor", err)
	}
	return out, nil
}

func (m *Mongo) Get(ctx context.Context, ownerID, id string) (SavedAnalysis, error) {
	var a SavedAnalysis
	err := m.collection.FindOne(ctx, bson.M{"_id": id, "owner_id": ownerID}).Decode(&a)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return SavedAnalysis{}, ErrNotFound
	}
	if err != nil {
		return SavedAnalysis{}, persistErr("get", err)
	}
	return normalizeMongo(a), nil
}

func (m *Mongo) UpdateAnalysis(ctx context.Context, ownerID, id, analysis string) (SavedAnalysis, error) {
	if err := checkEdit(analysis); err != nil {
		return SavedAnalysis{}, err
	}
	var a SavedAnalysis
	err := m.collection.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "owner_id": ownerID},
		bson.M{"$set": bson.M{"analysis": analysis, "updated_at": now()}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&a)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return SavedAnalysis{}, ErrNotFound
	}
	if err != nil {
		return SavedAnalysis{}, persistErr("update", err)
	}
	return normalizeMongo(a), nil
}

func (m *Mongo) Delete(ctx context.Context, ownerID, id string) error {
	res, err := m.collection.DeleteOne(ctx, bson.M{"_id": id, "owner_id": ownerID})
	if err != nil {
		return persistErr("delete", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (m *Mongo) Close() error {
	return m.client.Disconnect(context.Background())
}

func normalizeMongo(a SavedAnalysis) SavedAnalysis {
	a.CreatedAt = a.CreatedAt.UTC()
	a.UpdatedAt = a.UpdatedAt.UTC()
	return a
}
