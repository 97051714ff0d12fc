package models

import "go.mongodb.org/mongo-driver/v2/bson"

const (
	DefaultUserImage = "https://static.clinic.local/profile-pics/default-user.png"
	NotSelected      = "Not Selected"
)

type Address struct {
	Line1 string `json:"line1" bson:"line1"`
	Line2 string `json:"line2" bson:"line2"`
}

// UserProfile is the public part of a user record. Appointments embed a copy of it.
type UserProfile struct {
	ID      bson.ObjectID `json:"_id" bson:"_id,omitempty"`
	Name    string        `json:"name" bson:"name"`
	Email   string        `json:"email" bson:"email"`
	Image   string        `json:"image" bson:"image"`
	Phone   string        `json:"phone" bson:"phone"`
	Address Address       `json:"address" bson:"address"`
	Gender  string        `json:"gender" bson:"gender"`
	DOB     string        `json:"dob" bson:"dob"`
}

type User struct {
	UserProfile `bson:",inline"`
	Password    string `json:"-" bson:"password"`
}

type UserProfileUpdate struct {
	Name    string
	Phone   string
	Address Address
	Gender  string
	DOB     string
	// Image is left untouched when empty.
	Image string
}
