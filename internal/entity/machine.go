package entity

import (
	"time"
)

type Machine struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Size          string    `json:"size"`
	Capacity      *int      `json:"capacity"`
	Description   string    `json:"description"`
	AvailableDays *int      `json:"available_days"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
