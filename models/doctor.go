package models

import "go.mongodb.org/mongo-driver/v2/bson"

// DoctorProfile is the part of a doctor record that is safe to hand out and
// to snapshot into appointments.
type DoctorProfile struct {
	ID         bson.ObjectID `json:"_id" bson:"_id,omitempty"`
	Name       string        `json:"name" bson:"name"`
	Email      string        `json:"email" bson:"email"`
	Image      string        `json:"image" bson:"image"`
	Speciality string        `json:"speciality" bson:"speciality"`
	Degree     string        `json:"degree" bson:"degree"`
	Experience string        `json:"experience" bson:"experience"`
	About      string        `json:"about" bson:"about"`
	Available  bool          `json:"available" bson:"available"`
	Fees       float64       `json:"fees" bson:"fees"`
	Address    Address       `json:"address" bson:"address"`
	Date       int64         `json:"date" bson:"date"`
}

// SlotLedger maps a slot date to the times already booked on it.
type SlotLedger map[string][]string

// Has reports whether the time is booked on the given date.
func (l SlotLedger) Has(date, time string) bool {
	for _, t := range l[date] {
		if t == time {
			return true
		}
	}
	return false
}

type Doctor struct {
	DoctorProfile `bson:",inline"`
	Password      string     `json:"-" bson:"password"`
	SlotsBooked   SlotLedger `json:"slots_booked" bson:"slots_booked"`
}

// DoctorListing is what the public doctor list exposes.
type DoctorListing struct {
	ID          bson.ObjectID `json:"_id"`
	Name        string        `json:"name"`
	Image       string        `json:"image"`
	Speciality  string        `json:"speciality"`
	Degree      string        `json:"degree"`
	Experience  string        `json:"experience"`
	About       string        `json:"about"`
	Available   bool          `json:"available"`
	Fees        float64       `json:"fees"`
	Address     Address       `json:"address"`
	SlotsBooked SlotLedger    `json:"slots_booked"`
}

func (d *Doctor) Listing() DoctorListing {
	return DoctorListing{
		ID:          d.ID,
		Name:        d.Name,
		Image:       d.Image,
		Speciality:  d.Speciality,
		Degree:      d.Degree,
		Experience:  d.Experience,
		About:       d.About,
		Available:   d.Available,
		Fees:        d.Fees,
		Address:     d.Address,
		SlotsBooked: d.SlotsBooked,
	}
}

type DoctorProfileUpdate struct {
	Fees      float64
	Address   Address
	Available bool
}
