package testing

import (
	"time"

	"github.com/aristath/dealeval/internal/domain"
)

// FixtureVIN is a structurally valid VIN
const FixtureVIN = "1HGCM82633A004352"

// NewDealFixture returns a $25,000 2022 sedan with 15,000 miles
func NewDealFixture() *domain.Deal {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	return &domain.Deal{
		ID:             "deal-1",
		UserID:         "user-1",
		VehicleMake:    "Honda",
		VehicleModel:   "Accord",
		VehicleYear:    2022,
		VehicleMileage: 15000,
		VIN:            FixtureVIN,
		AskingPrice:    25000,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// NewDealFixtures returns deals spanning the risk bands
func NewDealFixtures() []*domain.Deal {
	sedan := NewDealFixture()

	truck := NewDealFixture()
	truck.ID = "deal-2"
	truck.VehicleMake = "Ford"
	truck.VehicleModel = "F-150"
	truck.VehicleYear = 2012
	truck.VehicleMileage = 160000
	truck.AskingPrice = 14500
	truck.VIN = "1FTFW1ET5CFC10312"

	coupe := NewDealFixture()
	coupe.ID = "deal-3"
	coupe.UserID = "user-2"
	coupe.VehicleMake = "Mazda"
	coupe.VehicleModel = "MX-5"
	coupe.VehicleYear = 2016
	coupe.VehicleMileage = 82000
	coupe.AskingPrice = 17800
	coupe.VIN = ""

	return []*domain.Deal{sedan, truck, coupe}
}
