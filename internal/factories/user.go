// Package factories builds realistic fake domain objects for tests and demos.
package factories

import (
	"time"

	"github.com/jaswdr/faker"
	"github.com/lucsky/cuid"

	"github.com/chrisdamba/chowrider/internal/models"
)

var fake = faker.New()

// Lagos, the service area the client ships to.
const (
	cityLat     = 6.5244
	cityLon     = 3.3792
	cityRadiusK = 15.0
)

type UserFactory struct{}

func (uf *UserFactory) CreateUser(role string) *models.User {
	name := fake.Person().Name()
	return &models.User{
		ID:         cuid.New(),
		Name:       name,
		Email:      fake.Internet().Email(),
		Phone:      NigerianPhone(),
		Address:    fake.Address().StreetAddress(),
		Role:       role,
		IsVerified: true,
		IsOnline:   fake.Bool(),
		CreatedAt:  fake.Time().TimeBetween(time.Now().AddDate(-2, 0, 0), time.Now()),
	}
}

// CreateDispatcher returns a dispatcher affiliated with a logistics partner.
func (uf *UserFactory) CreateDispatcher() *models.User {
	u := uf.CreateUser(models.RoleDispatcher)
	u.RestaurantID = cuid.New()
	return u
}

// NigerianPhone returns an 11 digit local mobile number.
func NigerianPhone() string {
	prefixes := []string{"0803", "0806", "0810", "0813", "0816", "0703", "0706", "0903", "0906", "0805", "0807", "0815", "0905"}
	return fake.RandomStringElement(prefixes) + fake.Numerify("#######")
}
