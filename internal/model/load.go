package model

import "time"

const (
	LoadStatusPending   = "pending"
	LoadStatusInTransit = "in_transit"
	LoadStatusDelivered = "delivered"
	LoadStatusInvoiced  = "invoiced"
	LoadStatusCancelled = "cancelled"
)

var ValidLoadStatuses = map[string]bool{
	LoadStatusPending:   true,
	LoadStatusInTransit: true,
	LoadStatusDelivered: true,
	LoadStatusInvoiced:  true,
	LoadStatusCancelled: true,
}

// Load is a shipment tracked by a team.
type Load struct {
	ID          int64     `json:"id"`
	TeamID      int64     `json:"team_id"`
	Reference   string    `json:"reference"`
	Origin      string    `json:"origin"`
	Destination string    `json:"destination"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
