package mongostore

import (
	"context"
	"time"

	"github.com/VanitasCaesar1/clinic/models"
	"github.com/VanitasCaesar1/clinic/store"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

func (s *Store) CreateMedicine(ctx context.Context, medicine *models.Medicine) error {
	if medicine.ID.IsZero() {
		medicine.ID = bson.NewObjectID()
	}
	_, err := s.medicines.InsertOne(ctx, medicine)
	return mapErr(err, "failed to create medicine")
}

func (s *Store) GetMedicine(ctx context.Context, id bson.ObjectID) (*models.Medicine, error) {
	var medicine models.Medicine
	if err := s.medicines.FindOne(ctx, bson.M{"_id": id}).Decode(&medicine); err != nil {
		return nil, mapErr(err, "failed to find medicine")
	}
	return &medicine, nil
}

func (s *Store) GetMedicineByName(ctx context.Context, name string) (*models.Medicine, error) {
	var medicine models.Medicine
	if err := s.medicines.FindOne(ctx, bson.M{"name": name}).Decode(&medicine); err != nil {
		return nil, mapErr(err, "failed to find medicine by name")
	}
	return &medicine, nil
}

func (s *Store) ListMedicines(ctx context.Context) ([]models.Medicine, error) {
	medicines, err := findAll[models.Medicine](ctx, s.medicines, bson.M{},
		options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, mapErr(err, "failed to list medicines")
	}
	return medicines, nil
}

func (s *Store) UpdateMedicine(ctx context.Context, id bson.ObjectID, update models.MedicineUpdate) (*models.Medicine, error) {
	set := bson.M{}
	if update.Name != nil {
		set["name"] = *update.Name
	}
	if update.Image != nil {
		set["image"] = *update.Image
	}
	if update.Brand != nil {
		set["brand"] = *update.Brand
	}
	if update.Form != nil {
		set["form"] = *update.Form
	}
	if update.Dose != nil {
		set["dose"] = *update.Dose
	}
	if update.Price != nil {
		set["price"] = *update.Price
	}
	if update.Stock != nil {
		set["stock"] = *update.Stock
	}
	if update.ExpiryDate != nil {
		set["expiryDate"] = *update.ExpiryDate
	}
	if len(set) == 0 {
		return s.GetMedicine(ctx, id)
	}

	var medicine models.Medicine
	err := s.medicines.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&medicine)
	if err != nil {
		return nil, mapErr(err, "failed to update medicine")
	}
	return &medicine, nil
}

func (s *Store) AdjustStock(ctx context.Context, id bson.ObjectID, delta int) error {
	res, err := s.medicines.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$inc": bson.M{"stock": delta}})
	if err != nil {
		return mapErr(err, "failed to adjust stock")
	}
	if res.MatchedCount == 0 {
		return errors.Wrap(store.ErrNotFound, "medicine not found")
	}
	return nil
}

func (s *Store) DeleteMedicine(ctx context.Context, id bson.ObjectID) error {
	res, err := s.medicines.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return mapErr(err, "failed to delete medicine")
	}
	if res.DeletedCount == 0 {
		return errors.Wrap(store.ErrNotFound, "medicine not found")
	}
	return nil
}

func (s *Store) CreateOrder(ctx context.Context, order *models.Order) error {
	if order.ID.IsZero() {
		order.ID = bson.NewObjectID()
	}
	if order.OrderedAt.IsZero() {
		order.OrderedAt = time.Now().UTC()
	}
	_, err := s.orders.InsertOne(ctx, order)
	return mapErr(err, "failed to create order")
}

func (s *Store) GetOrder(ctx context.Context, id bson.ObjectID) (*models.Order, error) {
	var order models.Order
	if err := s.orders.FindOne(ctx, bson.M{"_id": id}).Decode(&order); err != nil {
		return nil, mapErr(err, "failed to find order")
	}
	return &order, nil
}

func (s *Store) ListOrders(ctx context.Context, userID *bson.ObjectID) ([]models.Order, error) {
	filter := bson.M{}
	if userID != nil {
		filter["userId"] = *userID
	}
	orders, err := findAll[models.Order](ctx, s.orders, filter,
		options.Find().SetSort(bson.D{{Key: "orderedAt", Value: -1}}))
	if err != nil {
		return nil, mapErr(err, "failed to list orders")
	}
	return orders, nil
}

func (s *Store) ConfirmOrderPayment(ctx context.Context, id bson.ObjectID, payment models.PaymentConfirmation) (*models.Order, error) {
	var order models.Order
	err := s.orders.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "payment": false},
		bson.M{"$set": bson.M{
			"payment":            true,
			"paymentId":          payment.PaymentID,
			"razorpay_signature": payment.Signature,
			"status":             models.OrderConfirmed,
		}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&order)
	if err == nil {
		return &order, nil
	}
	if !errors.Is(mapErr(err, ""), store.ErrNotFound) {
		return nil, mapErr(err, "failed to confirm order payment")
	}
	if _, getErr := s.GetOrder(ctx, id); getErr != nil {
		return nil, getErr
	}
	return nil, store.ErrAlreadyPaid
}
