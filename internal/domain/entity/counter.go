package entity

import "time"

// ProFormaCounter is the singleton row holding the last issued pro-forma number
type ProFormaCounter struct {
	Number    string    `json:"number"`
	UpdatedAt time.Time `json:"updated_at"`
}
