package models

import "time"

type Location struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lng"`
}

// RiderLocation is the rider-moved payload.
type RiderLocation struct {
	OrderID   string    `json:"orderId"`
	RiderID   string    `json:"riderId,omitempty"`
	Lat       float64   `json:"lat"`
	Lon       float64   `json:"lng"`
	Heading   float64   `json:"heading,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func (l RiderLocation) Location() Location {
	return Location{Lat: l.Lat, Lon: l.Lon}
}
