package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/skyfare-io/skyfare-backend/api/controllers"
	webhookcontrollers "github.com/skyfare-io/skyfare-backend/api/controllers/webhooks"
	"github.com/skyfare-io/skyfare-backend/api/middleware"
	"github.com/skyfare-io/skyfare-backend/internal/bookings"
	checkoutsvc "github.com/skyfare-io/skyfare-backend/internal/checkout"
	"github.com/skyfare-io/skyfare-backend/internal/users"
	"github.com/skyfare-io/skyfare-backend/pkg/config"
	"github.com/skyfare-io/skyfare-backend/pkg/db"
	"github.com/skyfare-io/skyfare-backend/pkg/logger"
	"github.com/skyfare-io/skyfare-backend/pkg/redis"
	"github.com/skyfare-io/skyfare-backend/pkg/stripe"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisP redis.Pinger,
	txRunner controllers.TxRunner,
	bookingRepo bookings.Repository,
	checkoutService checkoutsvc.Service,
	bookingsService bookings.Service,
	usersService users.Service,
	stripeWebhookService webhookcontrollers.StripeWebhookService,
	stripeClient *stripe.Client,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisP))
	})

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/stripe", webhookcontrollers.StripeWebhook(stripeWebhookService, stripeClient, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", controllers.Register(usersService, logg))
			r.Post("/login", controllers.Login(usersService, logg))
			r.Post("/verify-password", controllers.VerifyPassword(usersService, logg))
		})
		r.Post("/checkout", controllers.Checkout(checkoutService, logg))
		r.Get("/bookings/{reference}", controllers.BookingDetail(bookingsService, logg))
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Post("/bookings/{reference}/transition", controllers.AdminBookingTransition(txRunner, bookingRepo, bookingsService, logg))
	})

	return r
}
