package model

import (
	"math"
	"time"

	"github.com/google/uuid"
)

type BillStatus string

const (
	BillStatusPending   BillStatus = "pending"
	BillStatusPaid      BillStatus = "paid"
	BillStatusPartial   BillStatus = "partial"
	BillStatusCancelled BillStatus = "cancelled"
	BillStatusRefunded  BillStatus = "refunded"
)

type BillItemCategory string

const (
	BillItemConsultation BillItemCategory = "consultation"
	BillItemProcedure    BillItemCategory = "procedure"
	BillItemMedicine     BillItemCategory = "medicine"
	BillItemRoomCharge   BillItemCategory = "room-charge"
	BillItemOther        BillItemCategory = "other"
)

type BillItem struct {
	Name      string           `db:"name" json:"name"`
	Quantity  int              `db:"quantity" json:"quantity"`
	UnitPrice float64          `db:"unit_price" json:"unit_price"`
	Category  BillItemCategory `db:"category" json:"category"`
}

// Total returns quantity times unit price, rounded to cents.
func (i BillItem) Total() float64 {
	return roundCents(float64(i.Quantity) * i.UnitPrice)
}

type Bill struct {
	Base
	BillNumber    string     `db:"bill_number" json:"bill_number"`
	PatientID     uuid.UUID  `db:"patient_id" json:"patient_id"`
	AppointmentID *uuid.UUID `db:"appointment_id" json:"appointment_id,omitempty"`
	Items         []BillItem `json:"items"`
	Subtotal      float64    `db:"subtotal" json:"subtotal"`
	Tax           float64    `db:"tax" json:"tax"`
	Discount      float64    `db:"discount" json:"discount"`
	Total         float64    `db:"total" json:"total"`
	Status        BillStatus `db:"status" json:"status"`
	PaymentMethod *string    `db:"payment_method" json:"payment_method,omitempty"`
	PaymentDate   *time.Time `db:"payment_date" json:"payment_date,omitempty"`
	DueDate       time.Time  `db:"due_date" json:"due_date"`
	CreatedBy     uuid.UUID  `db:"created_by" json:"created_by"`
}

// Recompute rewrites subtotal and total from the current items in one step so
// the two derived fields never disagree.
func (b *Bill) Recompute() {
	var subtotal float64
	for _, item := range b.Items {
		subtotal += item.Total()
	}
	b.Subtotal = roundCents(subtotal)
	b.Total = roundCents(b.Subtotal + b.Tax - b.Discount)
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

type CreateBillRequest struct {
	PatientID     uuid.UUID         `json:"patient_id" binding:"required"`
	AppointmentID *uuid.UUID        `json:"appointment_id"`
	Items         []BillItemRequest `json:"items" binding:"required,min=1,dive"`
	Tax           float64           `json:"tax" validate:"gte=0"`
	Discount      float64           `json:"discount" validate:"gte=0"`
	DueDate       time.Time         `json:"due_date" binding:"required"`
}

type BillItemRequest struct {
	Name      string  `json:"name" binding:"required"`
	Quantity  int     `json:"quantity" binding:"required,gte=1"`
	UnitPrice float64 `json:"unit_price" validate:"gte=0"`
	Category  string  `json:"category" validate:"required,oneof=consultation procedure medicine room-charge other"`
}

type UpdateBillItemsRequest struct {
	Items    []BillItemRequest `json:"items" binding:"required,min=1,dive"`
	Tax      *float64          `json:"tax" validate:"omitempty,gte=0"`
	Discount *float64          `json:"discount" validate:"omitempty,gte=0"`
}

type PayBillRequest struct {
	Method         string  `json:"method" binding:"required,oneof=cash card insurance transfer"`
	AmountTendered float64 `json:"amount_tendered" binding:"required,gt=0"`
	// ContactEmail, when present, is where the receipt goes.
	ContactEmail string `json:"contact_email" validate:"omitempty,email"`
}
