package models

const (
	OrderStatusPending            = "PENDING"
	OrderStatusDispatcherAccepted = "DISPATCHER_ACCEPTED"
	OrderStatusReady              = "READY_FOR_PICKUP"
	OrderStatusRiderAccepted      = "RIDER_ACCEPTED"
	OrderStatusOutForDelivery     = "OUT_FOR_DELIVERY"
	OrderStatusDelivered          = "DELIVERED"
	OrderStatusCancelled          = "CANCELLED"

	RoleDispatcher = "DISPATCHER"
	RoleRider      = "RIDER"

	TransactionCredit = "CREDIT"
	TransactionDebit  = "DEBIT"

	TransactionPending = "PENDING"
	TransactionSuccess = "SUCCESS"
	TransactionFailed  = "FAILED"
)

// Realtime event names emitted by the backend.
const (
	EventNewDeliveryAvailable = "new_delivery_available"
	EventOrderTaken           = "order_taken"
	EventNewDispatcherRequest = "new_dispatcher_request"
	EventOrderDelivered       = "order_delivered"
	EventOrderUpdated         = "order_updated"
	EventRiderMoved           = "rider-moved"

	EventJoinRoom = "join_room"
)

// Storage keys for the little bit of state the client persists.
const (
	KeyAuthToken      = "auth_token"
	KeyOnboardingSeen = "onboarding_seen"
	// KeyPendingOTP holds the email and temp token of a login awaiting its
	// OTP, so verification can happen in a later process.
	KeyPendingOTP     = "pending_otp"
)

// ClientType is sent with auth calls so the backend issues mobile tokens.
const ClientType = "mobile"

func IsTerminalStatus(status string) bool {
	return status == OrderStatusDelivered || status == OrderStatusCancelled
}
