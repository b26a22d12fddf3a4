// Package models holds the request payloads the smoke runner sends and the
// typed records it expects back from the waste-management API.
package models

import "time"

// Waste categories accepted by the classification and truck endpoints.
const (
	WasteBiodegradable = "biodegradable"
	WasteRecyclable    = "recyclable"
	WasteHazardous     = "hazardous"
	WasteUnknown       = "unknown"
	WasteMixed         = "mixed"
)

// Truck statuses.
const (
	TruckActive      = "active"
	TruckInactive    = "inactive"
	TruckMaintenance = "maintenance"
)

// User roles.
const (
	RoleUser      = "user"
	RoleAdmin     = "admin"
	RoleCollector = "collector"
)

// Envelope is the outer body every endpoint answers with. Count is only set
// by the list endpoints; Error only on failures.
type Envelope[T any] struct {
	Success bool   `json:"success"`
	Count   *int   `json:"count,omitempty"`
	Data    T      `json:"data"`
	Error   string `json:"error,omitempty"`
}

type UserPayload struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phoneNumber,omitempty"`
	Address     string `json:"address,omitempty"`
	Role        string `json:"role,omitempty"`
}

type User struct {
	ID                   string    `json:"_id,omitempty"`
	Name                 string    `json:"name"`
	Email                string    `json:"email"`
	PhoneNumber          string    `json:"phoneNumber,omitempty"`
	Address              string    `json:"address,omitempty"`
	Role                 string    `json:"role,omitempty"`
	TotalWasteClassified float64   `json:"totalWasteClassified"`
	Points               float64   `json:"points"`
	CreatedAt            time.Time `json:"createdAt,omitempty"`
}

type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Address   string  `json:"address,omitempty"`
}

type ClassificationPayload struct {
	WasteType   string    `json:"wasteType"`
	Confidence  float64   `json:"confidence"`
	ImageURL    string    `json:"imageUrl,omitempty"`
	UserID      string    `json:"userId,omitempty"`
	Location    *Location `json:"location,omitempty"`
	Weight      float64   `json:"weight,omitempty"`
	BarcodeData string    `json:"barcodeData,omitempty"`
}

type Classification struct {
	ID          string    `json:"_id,omitempty"`
	WasteType   string    `json:"wasteType"`
	Confidence  float64   `json:"confidence"`
	ImageURL    string    `json:"imageUrl,omitempty"`
	UserID      string    `json:"userId,omitempty"`
	Location    *Location `json:"location,omitempty"`
	Weight      float64   `json:"weight,omitempty"`
	BarcodeData string    `json:"barcodeData,omitempty"`
	CreatedAt   time.Time `json:"createdAt,omitempty"`
}

type TruckPayload struct {
	TruckID   string  `json:"truckId"`
	TruckName string  `json:"truckName"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Status    string  `json:"status,omitempty"`
	WasteLoad int     `json:"wasteLoad"`
	WasteType string  `json:"wasteType"`
	Route     string  `json:"route,omitempty"`
	Speed     float64 `json:"speed,omitempty"`
}

type Truck struct {
	ID          string    `json:"_id,omitempty"`
	TruckID     string    `json:"truckId"`
	TruckName   string    `json:"truckName"`
	Latitude    float64   `json:"latitude"`
	Longitude   float64   `json:"longitude"`
	Status      string    `json:"status"`
	WasteLoad   float64   `json:"wasteLoad"` // percent; stored as a plain number
	WasteType   string    `json:"wasteType"`
	Route       string    `json:"route,omitempty"`
	Speed       float64   `json:"speed,omitempty"`
	LastUpdated time.Time `json:"lastUpdated,omitempty"`
}

// TypeStat is one group of the by-type aggregation.
type TypeStat struct {
	WasteType     string  `json:"wasteType"`
	Count         int     `json:"count"`
	AvgConfidence float64 `json:"avgConfidence"`
	TotalWeight   float64 `json:"totalWeight"`
}

type RecentClassification struct {
	ID         string    `json:"_id,omitempty"`
	WasteType  string    `json:"wasteType"`
	Confidence float64   `json:"confidence"`
	CreatedAt  time.Time `json:"createdAt,omitempty"`
}

type Stats struct {
	TotalCount int                    `json:"totalCount"`
	ByType     []TypeStat             `json:"byType"`
	Recent     []RecentClassification `json:"recent,omitempty"`
}

// Health is the body of GET /health. It is not wrapped in an Envelope.
type Health struct {
	Status      string   `json:"status"`
	Message     string   `json:"message"`
	Database    string   `json:"database,omitempty"`
	Collections []string `json:"collections,omitempty"`
	Timestamp   string   `json:"timestamp,omitempty"`
	Error       string   `json:"error,omitempty"`
}
