package models

import "go.mongodb.org/mongo-driver/v2/bson"

type Appointment struct {
	ID                bson.ObjectID `json:"_id" bson:"_id,omitempty"`
	UserID            bson.ObjectID `json:"userId" bson:"userId"`
	DocID             bson.ObjectID `json:"docId" bson:"docId"`
	SlotDate          string        `json:"slotDate" bson:"slotDate"`
	SlotTime          string        `json:"slotTime" bson:"slotTime"`
	UserData          UserProfile   `json:"userData" bson:"userData"`
	DocData           DoctorProfile `json:"docData" bson:"docData"`
	Amount            float64       `json:"amount" bson:"amount"`
	Date              int64         `json:"date" bson:"date"`
	Cancelled         bool          `json:"cancelled" bson:"cancelled"`
	Payment           bool          `json:"payment" bson:"payment"`
	IsCompleted       bool          `json:"isCompleted" bson:"isCompleted"`
	PaymentID         string        `json:"paymentId,omitempty" bson:"paymentId,omitempty"`
	RazorpayOrderID   string        `json:"razorpay_order_id,omitempty" bson:"razorpay_order_id,omitempty"`
	RazorpaySignature string        `json:"razorpay_signature,omitempty" bson:"razorpay_signature,omitempty"`
}

// HasParticipant reports whether the principal is the appointment's user or doctor.
func (a *Appointment) HasParticipant(p Principal) bool {
	switch p.Role {
	case RoleUser:
		return a.UserID.Hex() == p.ID
	case RoleDoctor:
		return a.DocID.Hex() == p.ID
	}
	return false
}

// PaymentConfirmation carries the gateway identifiers of a verified payment.
type PaymentConfirmation struct {
	PaymentID string
	OrderID   string
	Signature string
}

// AdminDashboard and DoctorDashboard are aggregate views served to the panels.
type AdminDashboard struct {
	Doctors            int64         `json:"doctors"`
	Users              int64         `json:"users"`
	Appointments       int64         `json:"appointments"`
	LatestAppointments []Appointment `json:"latestAppointments"`
}

type DoctorDashboard struct {
	Earnings           float64       `json:"earnings"`
	Appointments       int           `json:"appointments"`
	Patients           int           `json:"patients"`
	LatestAppointments []Appointment `json:"latestAppointments"`
}
