package handlers

import (
	"invest-tournament-system/middleware"
	"invest-tournament-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupEligibilityRoutes(app *fiber.App, eligibility *services.EligibilityService) {
	user := middleware.RequireUser()
	admin := middleware.RequireAdmin()

	app.Post("/reading/sessions", user, eligibility.RecordSessionEndpoint)
	app.Post("/authors/:author_id/articles", user, eligibility.RecordArticleEndpoint)
	app.Get("/authors/:author_id/eligibility", eligibility.GetEligibilityEndpoint)
	app.Post("/authors/:author_id/eligibility/evaluate", user, eligibility.EvaluateEndpoint)

	app.Post("/authors/:author_id/violations", user, admin, eligibility.CreateViolationEndpoint)
	app.Post("/authors/:author_id/violations/:violation_id/resolve", user, admin, eligibility.ResolveViolationEndpoint)
}
