package factories

import (
	"fmt"

	"github.com/chrisdamba/chowrider/internal/models"
)

var restaurantNames = []string{
	"Mama Tega Kitchen", "Chicken Republic", "Sweet Sensation", "Item 7 Go", "The Place",
	"Yellow Chilli", "Bukka Hut", "Kilimanjaro", "Amala Shitta", "Ofada Hut",
}

var neighbourhoods = []string{"Yaba", "Surulere", "Ikeja GRA", "Lekki Phase 1", "Victoria Island", "Ikoyi", "Gbagada", "Ajah"}

type RestaurantFactory struct{}

func (rf *RestaurantFactory) CreateRestaurant() models.RiderRestaurant {
	loc := (&DeliveryPartnerFactory{}).CreateLocation()
	return models.RiderRestaurant{
		Name:      fake.RandomStringElement(restaurantNames),
		Address:   Address(),
		Latitude:  loc.Lat,
		Longitude: loc.Lon,
		Phone:     NigerianPhone(),
	}
}

// Address returns a street address in a Lagos neighbourhood.
func Address() string {
	return fmt.Sprintf("%d %s, %s", fake.IntBetween(1, 120), fake.Address().StreetName(), fake.RandomStringElement(neighbourhoods))
}
