package mongostore

import (
	"context"

	"github.com/VanitasCaesar1/clinic/models"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	if user.ID.IsZero() {
		user.ID = bson.NewObjectID()
	}
	_, err := s.users.InsertOne(ctx, user)
	return mapErr(err, "failed to create user")
}

func (s *Store) GetUser(ctx context.Context, id bson.ObjectID) (*models.User, error) {
	var user models.User
	if err := s.users.FindOne(ctx, bson.M{"_id": id}).Decode(&user); err != nil {
		return nil, mapErr(err, "failed to find user")
	}
	return &user, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := s.users.FindOne(ctx, bson.M{"email": email}).Decode(&user); err != nil {
		return nil, mapErr(err, "failed to find user by email")
	}
	return &user, nil
}

func (s *Store) UpdateUserProfile(ctx context.Context, id bson.ObjectID, update models.UserProfileUpdate) (*models.User, error) {
	set := bson.M{
		"name":    update.Name,
		"phone":   update.Phone,
		"address": update.Address,
		"gender":  update.Gender,
		"dob":     update.DOB,
	}
	if update.Image != "" {
		set["image"] = update.Image
	}

	var user models.User
	err := s.users.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&user)
	if err != nil {
		return nil, mapErr(err, "failed to update user profile")
	}
	return &user, nil
}

func (s *Store) CountUsers(ctx context.Context) (int64, error) {
	n, err := s.users.CountDocuments(ctx, bson.M{})
	return n, mapErr(err, "failed to count users")
}
