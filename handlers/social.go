package handlers

import (
	"invest-tournament-system/middleware"
	"invest-tournament-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupSocialRoutes(
	app *fiber.App,
	friends *services.FriendService,
	performance *services.PerformanceService,
	achievements *services.AchievementService,
	wallets *services.WalletService,
) {
	user := middleware.RequireUser()

	app.Get("/users/search", user, friends.SearchUsersEndpoint)
	app.Get("/users/:user_id/performance", performance.PersonalPerformanceEndpoint)
	app.Get("/users/:user_id/achievements", achievements.GetUserAchievementsEndpoint)
	app.Get("/wallet", user, wallets.GetMyWalletEndpoint)

	// 🤝 Friend graph
	app.Get("/friends", user, friends.ListFriendsEndpoint)
	app.Get("/friends/requests", user, friends.ListRequestsEndpoint)
	app.Get("/friends/activities", user, friends.FriendActivitiesEndpoint)
	app.Post("/friends/requests", user, friends.SendRequestEndpoint)
	app.Post("/friends/requests/:id/accept", user, friends.AcceptRequestEndpoint)
	app.Post("/friends/requests/:id/decline", user, friends.DeclineRequestEndpoint)
	app.Delete("/friends/:friend_id", user, friends.RemoveFriendEndpoint)
}
