package realtime

import "github.com/chrisdamba/chowrider/internal/models"

// Actor is who the connection belongs to.
type Actor struct {
	ID           string
	Role         string
	RestaurantID string
}

func ActorFromUser(u *models.User) Actor {
	if u == nil {
		return Actor{}
	}
	return Actor{ID: u.ID, Role: u.Role, RestaurantID: u.RestaurantID}
}

const (
	RoomDispatchers = "dispatchers"
	RoomRiders      = "riders"
)

// RoomsFor is the only place room names are built. Actors join both the
// shared role room and their own room, so a broadcast to either reaches them.
func RoomsFor(a Actor) []string {
	var rooms []string
	switch a.Role {
	case models.RoleDispatcher:
		rooms = append(rooms, RoomDispatchers)
		if a.ID != "" {
			rooms = append(rooms, "dispatcher_"+a.ID)
		}
	case models.RoleRider:
		rooms = append(rooms, RoomRiders)
		if a.ID != "" {
			rooms = append(rooms, "rider_"+a.ID)
		}
	}
	if a.RestaurantID != "" {
		rooms = append(rooms, "restaurant_"+a.RestaurantID)
	}
	return rooms
}
