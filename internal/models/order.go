package models

import "time"

// DispatcherStats is the header block of the dispatcher dashboard.
type DispatcherStats struct {
	Completed int     `json:"completed"`
	Revenue   float64 `json:"revenue"`
	Active    int     `json:"active"`
}

type AssignedRider struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// DispatcherOrderRequest is an order as the dispatcher sees it. TrackingID is
// empty until the dispatcher accepts the order.
type DispatcherOrderRequest struct {
	ID               string         `json:"id"`
	Vendor           string         `json:"vendor"`
	VendorAddress    string         `json:"vendorAddress"`
	VendorPhone      string         `json:"vendorPhone,omitempty"`
	VendorLocation   *Location      `json:"vendorLocation,omitempty"`
	Customer         string         `json:"customer,omitempty"`
	CustomerAddress  string         `json:"customerAddress"`
	CustomerPhone    string         `json:"customerPhone,omitempty"`
	CustomerLocation *Location      `json:"customerLocation,omitempty"`
	Amount           float64        `json:"amount"`
	Time             string         `json:"time"`
	Status           string         `json:"status"`
	TrackingID       string         `json:"trackingId,omitempty"`
	DeliveryCode     string         `json:"deliveryCode,omitempty"`
	Rider            *AssignedRider `json:"rider,omitempty"`
}

// IsRequest reports whether the order still awaits dispatcher acceptance.
func (o DispatcherOrderRequest) IsRequest() bool {
	return o.TrackingID == ""
}

type Partner struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type DashboardData struct {
	Stats          DispatcherStats          `json:"stats"`
	Requests       []DispatcherOrderRequest `json:"requests"`
	Partner        *Partner                 `json:"partner,omitempty"`
	Balance        float64                  `json:"balance"`
	PendingBalance float64                  `json:"pendingBalance"`
}

type AcceptOrderPayload struct {
	OrderID string `json:"orderId"`
}

type AcceptOrderResponse struct {
	Success bool                    `json:"success"`
	Message string                  `json:"message"`
	Data    *DispatcherOrderRequest `json:"data,omitempty"`
}

type RiderRestaurant struct {
	Name      string  `json:"name"`
	Address   string  `json:"address"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	ImageURL  string  `json:"imageUrl,omitempty"`
	Phone     string  `json:"phone"`
}

type RiderCustomer struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	Phone   string `json:"phone,omitempty"`
}

type RiderOrderItem struct {
	Quantity     int    `json:"quantity"`
	MenuItemName string `json:"menuItemName"`
}

// RiderOrder is an order as the rider sees it.
type RiderOrder struct {
	ID                string           `json:"id"`
	Reference         string           `json:"reference"`
	TotalAmount       float64          `json:"totalAmount"`
	DeliveryFee       float64          `json:"deliveryFee"`
	CreatedAt         time.Time        `json:"createdAt"`
	Restaurant        RiderRestaurant  `json:"restaurant"`
	Customer          RiderCustomer    `json:"customer"`
	DeliveryAddress   string           `json:"deliveryAddress"`
	DeliveryLatitude  float64          `json:"deliveryLatitude"`
	DeliveryLongitude float64          `json:"deliveryLongitude"`
	Items             []RiderOrderItem `json:"items"`
	Status            string           `json:"status,omitempty"`
	DeliveryCode      string           `json:"deliveryCode,omitempty"`
}

type RejectOrderPayload struct {
	Reason string `json:"reason,omitempty"`
}

type DeliverOrderPayload struct {
	Code string `json:"code"`
}

// NewDeliveryPayload is what new_delivery_available carries.
type NewDeliveryPayload struct {
	Type  string     `json:"type"`
	Order RiderOrder `json:"order"`
}

// OrderRefPayload is the shape of order_taken, order_updated and order_delivered.
type OrderRefPayload struct {
	OrderID string `json:"orderId"`
	Status  string `json:"status,omitempty"`
}
