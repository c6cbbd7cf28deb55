package negotiation

import "github.com/example/ride-negotiation/internal/models"

// DemoAccounts are the fixed accounts a demo instance starts with: one admin,
// one passenger and two drivers.
func DemoAccounts() []models.Account {
	return []models.Account{
		{ID: "admin-1", Name: "Leandro", Email: "admin@ride.local", Role: models.RoleAdmin, Phone: "15981677695"},
		{ID: "u1", Name: "Maria Silva", Email: "maria@email.com", Role: models.RolePassenger, Phone: "11999999999"},
		{ID: "d1", Name: "João Souza", Email: "joao@email.com", Role: models.RoleDriver, Phone: "11888888888",
			Vehicle: &models.Vehicle{Model: "VW Jetta", Plate: "ABC-1234"}},
		{ID: "d2", Name: "Pedro Santos", Email: "pedro@email.com", Role: models.RoleDriver, Phone: "11777777777",
			Vehicle: &models.Vehicle{Model: "Honda Civic", Plate: "XYZ-9876"}},
	}
}
