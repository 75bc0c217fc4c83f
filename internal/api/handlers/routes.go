package handlers

import (
	"github.com/gofiber/fiber/v2"
)

// Register mounts every endpoint under router, normally the /api/v1 group.
func Register(router fiber.Router, locations *LocationHandler, cards *CardHandler, health *HealthHandler) {
	router.Get("/health", health.Health)
	router.Get("/ready", health.Ready)

	loc := router.Group("/locations")
	loc.Post("/resolve", locations.Resolve)
	loc.Post("/smart-query", locations.SmartQuery)
	loc.Post("/advice", locations.Advice)
	loc.Get("/nearest", locations.Nearest)
	loc.Get("/hot", cards.HotLocations)

	router.Post("/cards", cards.ReportFound)
	router.Get("/cards", cards.QueryLostCard)
	router.Get("/cards/:id", cards.GetCard)
}
