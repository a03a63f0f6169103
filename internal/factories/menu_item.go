package factories

import "github.com/chrisdamba/chowrider/internal/models"

var menuItems = []string{
	"Jollof Rice", "Fried Rice", "Pounded Yam & Egusi", "Amala & Ewedu", "Suya Platter",
	"Moi Moi", "Plantain (Dodo)", "Pepper Soup", "Ofada Rice", "Chicken Shawarma", "Meat Pie",
}

type MenuItemFactory struct{}

func (mf *MenuItemFactory) CreateOrderItem() models.RiderOrderItem {
	return models.RiderOrderItem{
		Quantity:     fake.IntBetween(1, 4),
		MenuItemName: fake.RandomStringElement(menuItems),
	}
}

func (mf *MenuItemFactory) CreateOrderItems(n int) []models.RiderOrderItem {
	items := make([]models.RiderOrderItem, n)
	for i := range items {
		items[i] = mf.CreateOrderItem()
	}
	return items
}
