package mongostore

import (
	"context"

	"github.com/VanitasCaesar1/clinic/models"
	"github.com/VanitasCaesar1/clinic/store"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

func (s *Store) CreateAppointment(ctx context.Context, appointment *models.Appointment) error {
	if appointment.ID.IsZero() {
		appointment.ID = bson.NewObjectID()
	}
	_, err := s.appointments.InsertOne(ctx, appointment)
	return mapErr(err, "failed to create appointment")
}

func (s *Store) GetAppointment(ctx context.Context, id bson.ObjectID) (*models.Appointment, error) {
	var appointment models.Appointment
	if err := s.appointments.FindOne(ctx, bson.M{"_id": id}).Decode(&appointment); err != nil {
		return nil, mapErr(err, "failed to find appointment")
	}
	return &appointment, nil
}

func (s *Store) ListAppointments(ctx context.Context, filter store.AppointmentFilter) ([]models.Appointment, error) {
	query := bson.M{}
	if filter.UserID != nil {
		query["userId"] = *filter.UserID
	}
	if filter.DocID != nil {
		query["docId"] = *filter.DocID
	}
	if filter.IDs != nil {
		query["_id"] = bson.M{"$in": filter.IDs}
	}

	opts := options.Find()
	if filter.NewestFirst {
		opts.SetSort(bson.D{{Key: "date", Value: -1}})
	} else {
		opts.SetSort(bson.D{{Key: "date", Value: 1}})
	}
	if filter.Limit > 0 {
		opts.SetLimit(filter.Limit)
	}

	appointments, err := findAll[models.Appointment](ctx, s.appointments, query, opts)
	if err != nil {
		return nil, mapErr(err, "failed to list appointments")
	}
	return appointments, nil
}

func (s *Store) MarkCancelled(ctx context.Context, id bson.ObjectID) (bool, error) {
	res, err := s.appointments.UpdateOne(ctx,
		bson.M{"_id": id, "cancelled": false},
		bson.M{"$set": bson.M{"cancelled": true}},
	)
	if err != nil {
		return false, mapErr(err, "failed to cancel appointment")
	}
	return res.ModifiedCount == 1, nil
}

func (s *Store) MarkCompleted(ctx context.Context, id, doctorID bson.ObjectID) error {
	res, err := s.appointments.UpdateOne(ctx,
		bson.M{"_id": id, "docId": doctorID},
		bson.M{"$set": bson.M{"isCompleted": true}},
	)
	if err != nil {
		return mapErr(err, "failed to complete appointment")
	}
	if res.MatchedCount == 0 {
		return errors.Wrap(store.ErrNotFound, "appointment not found for doctor")
	}
	return nil
}

func (s *Store) SetPaymentOrder(ctx context.Context, id bson.ObjectID, orderID string) error {
	res, err := s.appointments.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"razorpay_order_id": orderID}},
	)
	if err != nil {
		return mapErr(err, "failed to record payment order")
	}
	if res.MatchedCount == 0 {
		return errors.Wrap(store.ErrNotFound, "appointment not found")
	}
	return nil
}

func (s *Store) MarkPaid(ctx context.Context, id bson.ObjectID, payment models.PaymentConfirmation) (*models.Appointment, error) {
	var appointment models.Appointment
	err := s.appointments.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{
			"payment":            true,
			"paymentId":          payment.PaymentID,
			"razorpay_order_id":  payment.OrderID,
			"razorpay_signature": payment.Signature,
		}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&appointment)
	if err != nil {
		return nil, mapErr(err, "failed to mark appointment paid")
	}
	return &appointment, nil
}

func (s *Store) CountAppointments(ctx context.Context) (int64, error) {
	n, err := s.appointments.CountDocuments(ctx, bson.M{})
	return n, mapErr(err, "failed to count appointments")
}
