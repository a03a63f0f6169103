package factories

import (
	"fmt"
	"strings"
	"time"

	"github.com/lucsky/cuid"

	"github.com/chrisdamba/chowrider/internal/models"
)

type OrderFactory struct{}

// CreateRiderOrder returns an order as the rider app receives it.
func (of *OrderFactory) CreateRiderOrder(status string) models.RiderOrder {
	dest := (&DeliveryPartnerFactory{}).CreateLocation()
	return models.RiderOrder{
		ID:                cuid.New(),
		Reference:         "ORD-" + strings.ToUpper(fake.Lexify("??????")),
		TotalAmount:       float64(fake.IntBetween(15, 250)) * 100,
		DeliveryFee:       float64(fake.IntBetween(5, 25)) * 100,
		CreatedAt:         fake.Time().TimeBetween(time.Now().Add(-2*time.Hour), time.Now()),
		Restaurant:        (&RestaurantFactory{}).CreateRestaurant(),
		Customer:          models.RiderCustomer{Name: fake.Person().Name(), Address: Address(), Phone: NigerianPhone()},
		DeliveryAddress:   Address(),
		DeliveryLatitude:  dest.Lat,
		DeliveryLongitude: dest.Lon,
		Items:             (&MenuItemFactory{}).CreateOrderItems(fake.IntBetween(1, 4)),
		Status:            status,
	}
}

// CreateDispatcherRequest returns a request awaiting dispatcher acceptance.
func (of *OrderFactory) CreateDispatcherRequest() models.DispatcherOrderRequest {
	r := (&RestaurantFactory{}).CreateRestaurant()
	return models.DispatcherOrderRequest{
		ID:              cuid.New(),
		Vendor:          r.Name,
		VendorAddress:   r.Address,
		VendorPhone:     r.Phone,
		Customer:        fake.Person().Name(),
		CustomerAddress: Address(),
		CustomerPhone:   NigerianPhone(),
		Amount:          float64(fake.IntBetween(5, 25)) * 100,
		Time:            fmt.Sprintf("%d mins ago", fake.IntBetween(1, 59)),
		Status:          models.OrderStatusPending,
	}
}

// CreateActiveTrip returns an accepted request carrying a tracking id.
func (of *OrderFactory) CreateActiveTrip() models.DispatcherOrderRequest {
	o := of.CreateDispatcherRequest()
	o.Status = models.OrderStatusDispatcherAccepted
	o.TrackingID = "task-" + cuid.Slug()
	o.DeliveryCode = fake.Numerify("####")
	o.Rider = (&DeliveryPartnerFactory{}).CreateAssignedRider()
	return o
}
