// Package mongostore implements store.Store on MongoDB.
package mongostore

import (
	"context"

	"github.com/VanitasCaesar1/clinic/store"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
	"go.uber.org/zap"
)

const (
	usersCollection        = "users"
	doctorsCollection      = "doctors"
	appointmentsCollection = "appointments"
	chatsCollection        = "chats"
	medicinesCollection    = "medicines"
	ordersCollection       = "orders"
)

type Store struct {
	client *mongo.Client
	db     *mongo.Database
	logger *zap.Logger

	users        *mongo.Collection
	doctors      *mongo.Collection
	appointments *mongo.Collection
	chats        *mongo.Collection
	medicines    *mongo.Collection
	orders       *mongo.Collection
}

var _ store.Store = (*Store)(nil)

func New(client *mongo.Client, dbName string, logger *zap.Logger) *Store {
	db := client.Database(dbName)
	return &Store{
		client:       client,
		db:           db,
		logger:       logger,
		users:        db.Collection(usersCollection),
		doctors:      db.Collection(doctorsCollection),
		appointments: db.Collection(appointmentsCollection),
		chats:        db.Collection(chatsCollection),
		medicines:    db.Collection(medicinesCollection),
		orders:       db.Collection(ordersCollection),
	}
}

// EnsureIndexes creates the unique indexes the store relies on.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	indexes := map[*mongo.Collection][]mongo.IndexModel{
		s.users: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		s.doctors: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		s.appointments: {
			{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "date", Value: -1}}},
			{Keys: bson.D{{Key: "docId", Value: 1}, {Key: "date", Value: -1}}},
		},
		s.chats: {
			{Keys: bson.D{{Key: "appointmentId", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "patientId", Value: 1}, {Key: "lastMessageTime", Value: -1}}},
			{Keys: bson.D{{Key: "doctorId", Value: 1}, {Key: "lastMessageTime", Value: -1}}},
		},
		s.medicines: {
			{Keys: bson.D{{Key: "name", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		s.orders: {
			{Keys: bson.D{{Key: "userId", Value: 1}}},
		},
	}

	for coll, models := range indexes {
		names, err := coll.Indexes().CreateMany(ctx, models)
		if err != nil {
			return errors.Wrapf(err, "failed to create indexes on %s", coll.Name())
		}
		s.logger.Info("indexes verified",
			zap.String("collection", coll.Name()),
			zap.Strings("indexes", names))
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// mapErr translates driver errors into store sentinels.
func mapErr(err error, msg string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return errors.Wrap(store.ErrNotFound, msg)
	case mongo.IsDuplicateKeyError(err):
		return errors.Wrap(store.ErrDuplicate, msg)
	default:
		return errors.Wrap(err, msg)
	}
}

func findAll[T any](ctx context.Context, coll *mongo.Collection, filter any, opts ...options.Lister[options.FindOptions]) ([]T, error) {
	cursor, err := coll.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0)
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
