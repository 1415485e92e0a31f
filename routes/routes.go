package routes

import (
	"github.com/P1T0NN/cristian-website-sub000/handlers"
	"github.com/P1T0NN/cristian-website-sub000/middleware"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger"
)

// SetupRoutes собирает всю карту маршрутов приложения.
func SetupRoutes(
	router *chi.Mux,
	jwtSecret []byte,
	authHandler *handlers.AuthHandler,
	matchHandler *handlers.MatchHandler,
	rosterHandler *handlers.RosterHandler,
	userHandler *handlers.UserHandler,
	webSocketHandler *handlers.WebSocketHandler,
) {
	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	authenticate := middleware.NewAuthenticator(jwtSecret)

	router.Post("/auth/register", authHandler.Register)
	router.Post("/auth/login", authHandler.Login)

	router.Get("/swagger/*", httpSwagger.WrapHandler)

	router.Get("/ws/matches/{matchID}", webSocketHandler.Subscribe)

	router.Route("/matches", func(r chi.Router) {
		r.Get("/", matchHandler.List)
		r.Get("/{matchID}", matchHandler.Get)

		r.Group(func(r chi.Router) {
			r.Use(authenticate)

			r.Post("/", matchHandler.Create)
			r.Put("/{matchID}", matchHandler.Edit)
			r.Post("/{matchID}/finish", matchHandler.Finish)
			r.Delete("/{matchID}", matchHandler.Delete)

			r.Post("/{matchID}/join", rosterHandler.Join)
			r.Post("/{matchID}/friends", rosterHandler.AddFriend)
			r.Post("/{matchID}/players", rosterHandler.AdminAddPlayers)
			r.Delete("/{matchID}/players", rosterHandler.Leave)
			r.Delete("/{matchID}/players/{entryID}", rosterHandler.Leave)

			r.Post("/{matchID}/players/{entryID}/payment", rosterHandler.SetPaymentFlag)
			r.Post("/{matchID}/players/{entryID}/substitute", rosterHandler.RequestSubstitute)
			r.Delete("/{matchID}/players/{entryID}/substitute", rosterHandler.CancelSubstituteRequest)
			r.Post("/{matchID}/players/{entryID}/replace", rosterHandler.ReplacePlayer)
			r.Post("/{matchID}/players/{entryID}/switch-team", rosterHandler.SwitchTeam)
			r.Post("/{matchID}/players/{entryID}/match-admin", rosterHandler.SetMatchAdmin)

			r.Post("/{matchID}/teams/{team}/extra-spots", rosterHandler.AdjustExtraSpots)
			r.Post("/{matchID}/teams/{team}/blocked-spots", rosterHandler.SetBlockedSpots)
		})
	})

	router.Route("/users", func(r chi.Router) {
		r.Use(authenticate)

		r.Get("/", userHandler.Search)
		r.Get("/me", userHandler.MyProfile)
		r.Get("/me/ledger", userHandler.MyLedger)
		r.Put("/me/avatar", userHandler.UploadAvatar)
		r.Delete("/me/avatar", userHandler.DeleteAvatar)

		r.Get("/{userID}", userHandler.Profile)
		r.Get("/{userID}/ledger", userHandler.LedgerHistory)
		r.Post("/{userID}/balance", userHandler.TopUpBalance)
		r.Post("/{userID}/debt/settle", userHandler.SettleDebt)
	})
}
