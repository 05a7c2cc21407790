package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPaymentStatus_Valid(t *testing.T) {
	tests := []struct {
		name   string
		status PaymentStatus
		want   bool
	}{
		{name: "pending", status: StatusPending, want: true},
		{name: "overdue", status: StatusOverdue, want: true},
		{name: "paid", status: StatusPaid, want: true},
		{name: "empty", status: PaymentStatus(""), want: false},
		{name: "unknown", status: PaymentStatus("Cancelled"), want: false},
		{name: "wrong case", status: PaymentStatus("paid"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.status.Valid())
		})
	}
}

func TestPaymentStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		name string
		from PaymentStatus
		to   PaymentStatus
		want bool
	}{
		{name: "pending to overdue", from: StatusPending, to: StatusOverdue, want: true},
		{name: "pending to paid", from: StatusPending, to: StatusPaid, want: true},
		{name: "overdue to paid", from: StatusOverdue, to: StatusPaid, want: true},
		{name: "overdue back to pending", from: StatusOverdue, to: StatusPending, want: true},
		{name: "paid is final", from: StatusPaid, to: StatusPending, want: false},
		{name: "paid to overdue", from: StatusPaid, to: StatusOverdue, want: false},
		{name: "unknown source", from: PaymentStatus("x"), to: StatusPaid, want: false},
		{name: "unknown target", from: StatusPending, to: PaymentStatus("x"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestAmount(t *testing.T) {
	tests := []struct {
		name     string
		cost     int64
		discount int64
		want     int64
	}{
		{name: "no discount", cost: 1000, discount: 0, want: 1000},
		{name: "partial discount", cost: 1500, discount: 100, want: 1400},
		{name: "discount exceeds cost floors at zero", cost: 50, discount: 80, want: 0},
		{name: "discount equals cost", cost: 50, discount: 50, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Amount(tt.cost, tt.discount))
		})
	}
}
