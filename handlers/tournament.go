package handlers

import (
	"invest-tournament-system/middleware"
	"invest-tournament-system/services"

	"github.com/gofiber/fiber/v2"
)

// TournamentHandlers bundles the services behind the tournament routes.
type TournamentHandlers struct {
	Tournaments *services.TournamentService
	Trades      *services.TradeService
	Rankings    *services.RankingService
	Settlement  *services.SettlementEngine
	AuthClient  middleware.TokenValidator
}

func SetupTournamentRoutes(app *fiber.App, h TournamentHandlers) {
	user := middleware.RequireUser()
	admin := middleware.RequireAdmin()

	// 🔓 Reads (static paths before :id)
	app.Get("/tournaments", h.Tournaments.ListTournamentsEndpoint)
	app.Get("/tournaments/featured", h.Tournaments.FeaturedTournamentsEndpoint)
	app.Get("/tournaments/statistics", h.Tournaments.PlatformStatisticsEndpoint)
	app.Get("/tournaments/:id", h.Tournaments.GetTournamentEndpoint)
	app.Get("/tournaments/:id/participants", h.Tournaments.ParticipantsEndpoint)
	app.Get("/tournaments/:id/activities", h.Tournaments.ActivitiesEndpoint)
	app.Get("/tournaments/:id/rankings", h.Rankings.GetRankingsEndpoint)
	app.Get("/tournaments/:id/statistics", h.Rankings.GetStatisticsEndpoint)
	app.Get("/tournaments/:id/results", h.Settlement.GetResultsEndpoint)

	// 📡 Live ranking stream, authenticated by query token
	if h.AuthClient != nil {
		app.Get("/tournaments/:id/rankings/stream", middleware.SSEAuthMiddleware(h.AuthClient), h.Rankings.StreamRankingsSSE)
	} else {
		app.Get("/tournaments/:id/rankings/stream", user, h.Rankings.StreamRankingsSSE)
	}

	// 🔐 Participant actions
	app.Post("/tournaments/:id/join", user, h.Tournaments.JoinTournamentEndpoint)
	app.Post("/tournaments/:id/trades", user, h.Trades.ExecuteTradeEndpoint)
	app.Get("/tournaments/:id/trades", user, h.Trades.ListTradesEndpoint)
	app.Get("/tournaments/:id/portfolio", user, h.Trades.GetPortfolioEndpoint)
	app.Post("/tournaments/:id/rankings/refresh", user, h.Rankings.RefreshRankingsEndpoint)

	// 🛠️ Admin
	app.Post("/tournaments", user, admin, h.Tournaments.CreateTournamentEndpoint)
	app.Delete("/tournaments/:id", user, admin, h.Tournaments.DeleteTournamentEndpoint)
	app.Patch("/tournaments/:id/status", user, admin, h.Tournaments.UpdateStatusEndpoint)
	app.Post("/tournaments/:id/settle", user, admin, h.Settlement.SettleEndpoint)
}
