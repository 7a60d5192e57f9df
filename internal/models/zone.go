package models

// Zone is a geographic service region used to match trainers to clients.
type Zone struct {
	ID   int64  `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
}
