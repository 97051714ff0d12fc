package mongostore

import (
	"context"

	"github.com/VanitasCaesar1/clinic/models"
	"github.com/VanitasCaesar1/clinic/store"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.uber.org/zap"
)

func (s *Store) CreateDoctor(ctx context.Context, doctor *models.Doctor) error {
	if doctor.ID.IsZero() {
		doctor.ID = bson.NewObjectID()
	}
	// $push on a null ledger fails, so the map must exist from the start.
	if doctor.SlotsBooked == nil {
		doctor.SlotsBooked = models.SlotLedger{}
	}
	_, err := s.doctors.InsertOne(ctx, doctor)
	return mapErr(err, "failed to create doctor")
}

func (s *Store) GetDoctor(ctx context.Context, id bson.ObjectID) (*models.Doctor, error) {
	var doctor models.Doctor
	if err := s.doctors.FindOne(ctx, bson.M{"_id": id}).Decode(&doctor); err != nil {
		return nil, mapErr(err, "failed to find doctor")
	}
	return &doctor, nil
}

func (s *Store) GetDoctorByEmail(ctx context.Context, email string) (*models.Doctor, error) {
	var doctor models.Doctor
	if err := s.doctors.FindOne(ctx, bson.M{"email": email}).Decode(&doctor); err != nil {
		return nil, mapErr(err, "failed to find doctor by email")
	}
	return &doctor, nil
}

func (s *Store) ListDoctors(ctx context.Context, onlyAvailable bool) ([]models.Doctor, error) {
	filter := bson.M{}
	if onlyAvailable {
		filter["available"] = true
	}
	doctors, err := findAll[models.Doctor](ctx, s.doctors, filter,
		options.Find().SetSort(bson.D{{Key: "date", Value: -1}}))
	if err != nil {
		return nil, mapErr(err, "failed to list doctors")
	}
	return doctors, nil
}

func (s *Store) SetAvailability(ctx context.Context, id bson.ObjectID, available bool) error {
	res, err := s.doctors.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"available": available}})
	if err != nil {
		return mapErr(err, "failed to change availability")
	}
	if res.MatchedCount == 0 {
		return errors.Wrap(store.ErrNotFound, "doctor not found")
	}
	return nil
}

func (s *Store) UpdateDoctorProfile(ctx context.Context, id bson.ObjectID, update models.DoctorProfileUpdate) error {
	res, err := s.doctors.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"fees":      update.Fees,
		"address":   update.Address,
		"available": update.Available,
	}})
	if err != nil {
		return mapErr(err, "failed to update doctor profile")
	}
	if res.MatchedCount == 0 {
		return errors.Wrap(store.ErrNotFound, "doctor not found")
	}
	return nil
}

func (s *Store) CountDoctors(ctx context.Context) (int64, error) {
	n, err := s.doctors.CountDocuments(ctx, bson.M{})
	return n, mapErr(err, "failed to count doctors")
}

func (s *Store) ReserveSlot(ctx context.Context, doctorID bson.ObjectID, date, time string) error {
	if !store.ValidSlotDate(date) {
		return errors.Wrapf(store.ErrInvalidSlot, "%q", date)
	}
	field := "slots_booked." + date

	res, err := s.doctors.UpdateOne(ctx,
		bson.M{
			"_id":       doctorID,
			"available": true,
			field:       bson.M{"$ne": time},
		},
		bson.M{"$push": bson.M{field: time}},
	)
	if err != nil {
		return mapErr(err, "failed to reserve slot")
	}
	if res.MatchedCount == 1 {
		return nil
	}

	// Nothing matched: either the doctor cannot take bookings or the slot is gone.
	var doctor models.Doctor
	err = s.doctors.FindOne(ctx, bson.M{"_id": doctorID},
		options.FindOne().SetProjection(bson.M{"available": 1})).Decode(&doctor)
	if err != nil {
		if errors.Is(mapErr(err, ""), store.ErrNotFound) {
			return store.ErrDoctorUnavailable
		}
		return mapErr(err, "failed to inspect doctor after reserve")
	}
	if !doctor.Available {
		return store.ErrDoctorUnavailable
	}
	s.logger.Debug("slot conflict",
		zap.String("doctor_id", doctorID.Hex()),
		zap.String("slot_date", date),
		zap.String("slot_time", time))
	return store.ErrSlotTaken
}

func (s *Store) ReleaseSlot(ctx context.Context, doctorID bson.ObjectID, date, time string) error {
	if !store.ValidSlotDate(date) {
		return errors.Wrapf(store.ErrInvalidSlot, "%q", date)
	}
	res, err := s.doctors.UpdateOne(ctx,
		bson.M{"_id": doctorID},
		bson.M{"$pull": bson.M{"slots_booked." + date: time}},
	)
	if err != nil {
		return mapErr(err, "failed to release slot")
	}
	if res.MatchedCount == 0 {
		return errors.Wrap(store.ErrNotFound, "doctor not found")
	}
	return nil
}
