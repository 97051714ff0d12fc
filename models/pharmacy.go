package models

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

type MedicineForm string

const (
	FormTablet MedicineForm = "Tablet"
	FormSyrup  MedicineForm = "Syrup"
)

type Medicine struct {
	ID         bson.ObjectID `json:"_id" bson:"_id,omitempty"`
	Name       string        `json:"name" bson:"name"`
	Image      string        `json:"image" bson:"image"`
	Brand      string        `json:"brand" bson:"brand"`
	Form       MedicineForm  `json:"form" bson:"form"`
	Dose       string        `json:"dose" bson:"dose"`
	Price      float64       `json:"price" bson:"price"`
	Stock      int           `json:"stock" bson:"stock"`
	ExpiryDate time.Time     `json:"expiryDate" bson:"expiryDate"`
}

// MedicineUpdate holds the editable medicine fields; nil means unchanged.
type MedicineUpdate struct {
	Name       *string
	Image      *string
	Brand      *string
	Form       *MedicineForm
	Dose       *string
	Price      *float64
	Stock      *int
	ExpiryDate *time.Time
}

type OrderStatus string

const (
	OrderPending   OrderStatus = "Pending"
	OrderConfirmed OrderStatus = "Confirmed"
	OrderShipped   OrderStatus = "Shipped"
	OrderDelivered OrderStatus = "Delivered"
	OrderCancelled OrderStatus = "Cancelled"
)

type OrderItem struct {
	MedicineID bson.ObjectID `json:"medicineId" bson:"medicineId"`
	Name       string        `json:"name" bson:"name"`
	Price      float64       `json:"price" bson:"price"`
	Quantity   int           `json:"quantity" bson:"quantity"`
	Subtotal   float64       `json:"subtotal" bson:"subtotal"`
}

type Order struct {
	ID                bson.ObjectID `json:"_id" bson:"_id,omitempty"`
	UserID            bson.ObjectID `json:"userId" bson:"userId"`
	Medicines         []OrderItem   `json:"medicines" bson:"medicines"`
	TotalAmount       float64       `json:"totalAmount" bson:"totalAmount"`
	Payment           bool          `json:"payment" bson:"payment"`
	PaymentID         string        `json:"paymentId,omitempty" bson:"paymentId,omitempty"`
	RazorpayOrderID   string        `json:"razorpay_order_id,omitempty" bson:"razorpay_order_id,omitempty"`
	RazorpaySignature string        `json:"razorpay_signature,omitempty" bson:"razorpay_signature,omitempty"`
	PaymentMethod     string        `json:"paymentMethod" bson:"paymentMethod"`
	Status            OrderStatus   `json:"status" bson:"status"`
	DeliveryAddress   string        `json:"deliveryAddress" bson:"deliveryAddress"`
	PhoneNumber       string        `json:"phoneNumber" bson:"phoneNumber"`
	DeliveredAt       *time.Time    `json:"deliveredAt,omitempty" bson:"deliveredAt,omitempty"`
	OrderedAt         time.Time     `json:"orderedAt" bson:"orderedAt"`
}
