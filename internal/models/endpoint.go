package models

import "time"

// Endpoint is the last appliance address found by discovery.
type Endpoint struct {
	Host         string    `json:"host"`
	Port         int       `json:"port"`
	DiscoveredAt time.Time `json:"discovered_at"`
}
