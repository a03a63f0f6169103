package factories

import (
	"math"
	"time"

	"github.com/chrisdamba/chowrider/internal/models"
)

type DeliveryPartnerFactory struct{}

func (df *DeliveryPartnerFactory) CreateRider() *models.User {
	return (&UserFactory{}).CreateUser(models.RoleRider)
}

func (df *DeliveryPartnerFactory) CreateAssignedRider() *models.AssignedRider {
	return &models.AssignedRider{
		Name:  fake.Person().Name(),
		Phone: NigerianPhone(),
	}
}

// CreateLocation returns a point within the service area.
func (df *DeliveryPartnerFactory) CreateLocation() models.Location {
	latRange := cityRadiusK / 111.0 // approx. km to degrees
	lonRange := latRange / math.Cos(cityLat*math.Pi/180.0)
	return models.Location{
		Lat: cityLat + (fake.Float64(6, 0, 2)-1)*latRange,
		Lon: cityLon + (fake.Float64(6, 0, 2)-1)*lonRange,
	}
}

// CreateRiderLocation returns a rider-moved sample for orderID taken at ts.
func (df *DeliveryPartnerFactory) CreateRiderLocation(orderID string, ts time.Time) models.RiderLocation {
	loc := df.CreateLocation()
	return models.RiderLocation{
		OrderID:   orderID,
		Lat:       loc.Lat,
		Lon:       loc.Lon,
		Heading:   fake.Float64(1, 0, 359),
		Timestamp: ts,
	}
}
