package main

import (
	"context"
	"errors"
	"expvar"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"marketplace/docs"
	"marketplace/internal/auth"
	"marketplace/internal/mailer"
	"marketplace/internal/notifications"
	"marketplace/internal/ratelimiter"
	"marketplace/internal/store"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"go.uber.org/zap"
)

type application struct {
	config        config
	store         store.Storage
	logger        *zap.SugaredLogger
	cld           *cloudinary.Cloudinary
	mailer        mailer.Client
	push          notifications.PushSender
	authenticator auth.Authenticator
	rateLimiter   ratelimiter.Limiter
}

type config struct {
	addr        string
	db          dbConfig
	env         string
	apiURL      string
	frontendURL string
	auth        authConfig
	mail        mailConfig
	rateLimiter ratelimiter.Config
}

type authConfig struct {
	basic basicConfig
	token tokenConfig
}

type tokenConfig struct {
	secret string
	iss    string
}

type basicConfig struct {
	user string
	pass string
}

type mailConfig struct {
	host      string
	port      int
	username  string
	password  string
	fromEmail string
}

type dbConfig struct {
	addr        string
	maxConns    int32
	maxIdleTime string
}

func (app *application) mount() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(app.RateLimiterMiddleware)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Use(middleware.Timeout(60 * time.Second))

	r.Route("/v1", func(r chi.Router) {
		r.With(app.BasicAuthMiddleware()).Get("/health", app.healthCheckHandler)
		docsURL := fmt.Sprintf("%s/swagger/doc.json", app.config.addr)
		r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL(docsURL)))

		r.With(app.BasicAuthMiddleware()).Get("/debug/vars", expvar.Handler().ServeHTTP)

		// Public routes
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", app.registerUserHandler)
			r.Post("/login", app.loginHandler)
			r.With(app.AuthTokenMiddleware).Get("/me", app.currentUserHandler)
		})

		r.Route("/products", func(r chi.Router) {
			r.Get("/", app.listProductsHandler)
			r.Get("/search", app.searchProductsHandler)

			r.With(app.AuthTokenMiddleware, app.RequireSeller).Post("/", app.createProductHandler)
			r.With(app.AuthTokenMiddleware, app.RequireSeller).Get("/seller/me", app.sellerProductsHandler)

			r.With(app.AuthTokenMiddleware).Post("/reviews", app.createReviewHandler)
			r.With(app.AuthTokenMiddleware).Post("/reports", app.createReportHandler)

			r.Route("/{productID}", func(r chi.Router) {
				r.Get("/", app.getProductHandler)
				r.Get("/reviews", app.getProductReviewsHandler)

				r.With(app.AuthTokenMiddleware, app.RequireSeller).Put("/", app.updateProductHandler)
				// delete is owner-or-admin, checked against the loaded product
				r.With(app.AuthTokenMiddleware).Delete("/", app.deleteProductHandler)

				r.With(app.AuthTokenMiddleware, app.RequireSeller).Post("/images", app.uploadProductImageHandler)
				r.With(app.AuthTokenMiddleware, app.RequireSeller).Delete("/images", app.deleteProductImageHandler)
			})
		})

		r.Route("/orders", func(r chi.Router) {
			r.Use(app.AuthTokenMiddleware)

			r.Post("/", app.createOrderHandler)
			r.Get("/user/me", app.userOrdersHandler)
			r.With(app.RequireSeller).Get("/seller/me", app.sellerOrdersHandler)
			r.With(app.RequireAdmin).Get("/admin/all", app.adminOrdersHandler)

			r.Route("/{orderID}", func(r chi.Router) {
				r.Get("/", app.getOrderHandler)
				r.With(app.RequireSeller).Put("/status", app.updateOrderStatusHandler)
			})
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(app.AuthTokenMiddleware, app.RequireAdmin)

			r.Get("/users", app.adminListUsersHandler)
			r.Delete("/users/{userID}", app.adminDeleteUserHandler)
			r.Put("/users/{userID}/role", app.adminUpdateUserRoleHandler)
			r.Get("/reports", app.adminListReportsHandler)
			r.Put("/reports/{reportID}/status", app.adminUpdateReportStatusHandler)
			r.Get("/dashboard", app.adminDashboardHandler)
		})

		r.With(app.AuthTokenMiddleware, app.RequireSeller).Get("/seller/dashboard", app.sellerDashboardHandler)

		r.Route("/users", func(r chi.Router) {
			r.Use(app.AuthTokenMiddleware)
			r.Post("/push-token", app.registerPushTokenHandler)
			r.Delete("/push-token", app.removePushTokenHandler)
		})
	})
	return r
}

func (app *application) run(mux http.Handler) error {
	docs.SwaggerInfo.Version = version
	docs.SwaggerInfo.Host = app.config.apiURL
	docs.SwaggerInfo.BasePath = "/v1"

	srv := &http.Server{
		Addr:         app.config.addr,
		Handler:      mux,
		WriteTimeout: time.Second * 30,
		ReadTimeout:  time.Second * 10,
		IdleTimeout:  time.Minute,
	}

	shutdown := make(chan error)

	go func() {
		quit := make(chan os.Signal, 1)

		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		s := <-quit

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		app.logger.Infow("signal caught", "signal", s.String())

		shutdown <- srv.Shutdown(ctx)
	}()

	app.logger.Infow("server has started", "addr", app.config.addr, "env", app.config.env)

	err := srv.ListenAndServe()
	if !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	err = <-shutdown
	if err != nil {
		return err
	}

	app.logger.Infow("server has stopped", "addr", app.config.addr, "env", app.config.env)

	return nil
}
