package cmd

import (
	"net/http"
	"os"
	"path/filepath"

	"caotun-spin-backend/internal/config"
	"caotun-spin-backend/internal/handlers"
	"caotun-spin-backend/internal/middleware"
	"caotun-spin-backend/internal/repository"
	"caotun-spin-backend/internal/services"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// app holds the wired services behind the router
type app struct {
	router http.Handler
	hub    *services.WSHub
}

// newApp wires services and routes over stores. db and presigner may be nil.
func newApp(
	cfg *config.Config,
	stores repository.Stores,
	db handlers.Pinger,
	presigner services.ImagePresigner,
	notifier services.MealPeriodNotifier,
	now services.Clock,
) (*app, error) {
	loc, err := cfg.Coupon.Location()
	if err != nil {
		return nil, err
	}

	// Initialize services
	resolver := services.NewMealPeriodResolver(now)
	expiry := services.NewExpiryEvaluator(now, loc)
	userService := services.NewUserService(stores.Users, cfg.JWT.Secret, cfg.JWT.ExpDays, now)
	couponService := services.NewCouponService(stores.Coupons, expiry, cfg.Coupon.HideAfterDays, now)
	spinService := services.NewSpinService(stores.Coupons, stores.Restaurants, resolver, couponService, now)
	checkInService := services.NewCheckInService(stores.CheckIns, stores.Coupons, stores.Restaurants, resolver, couponService, now)
	merchantService := services.NewMerchantService(stores.Restaurants, presigner, now)
	wsHub := services.NewWSHub(resolver, notifier)

	// Initialize handlers
	userHandler := handlers.NewUserHandler(userService)
	couponHandler := handlers.NewCouponHandler(couponService, spinService, checkInService)
	merchantHandler := handlers.NewMerchantHandler(merchantService, couponService)
	mealPeriodHandler := handlers.NewMealPeriodHandler(resolver, cfg.Offline.CacheVersion)
	wsHandler := handlers.NewWebSocketHandler(wsHub)
	healthHandler := handlers.NewHealthHandler(db, cfg.Database.Driver)

	loginLimiter := middleware.NewIPRateLimiter(cfg.Server.LoginRPS, cfg.Server.LoginBurst)

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(corsMiddleware)

	r.Get("/health", healthHandler.Health)
	r.Get("/health/db", healthHandler.Database)
	r.Handle("/metrics", promhttp.Handler())

	// Routes
	r.Route("/api/v1", func(r chi.Router) {
		// Public routes
		r.With(loginLimiter.Middleware).Post("/auth/login", userHandler.Login)
		r.Get("/meal-period", mealPeriodHandler.Current)
		r.Get("/offline/manifest", mealPeriodHandler.OfflineManifest)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.AuthMiddleware(userService))
			r.Get("/coupons", couponHandler.ListCoupons)
			r.Get("/coupons/{coupon_id}/share", couponHandler.ShareCoupon)
			r.Post("/spins", couponHandler.Spin)
			r.Post("/check-ins", couponHandler.CheckIn)
			r.Put("/users/me/push-token", userHandler.UpdatePushToken)
		})

		// Merchant portal
		r.Route("/merchant", func(r chi.Router) {
			r.Use(middleware.MerchantAuth(cfg.Merchant.APIKey))
			r.Post("/restaurants", merchantHandler.CreateRestaurant)
			r.Get("/restaurants", merchantHandler.ListRestaurants)
			r.Route("/restaurants/{restaurant_id}", func(r chi.Router) {
				r.Get("/", merchantHandler.GetRestaurant)
				r.Post("/templates", merchantHandler.CreateTemplate)
				r.Get("/templates", merchantHandler.ListTemplates)
				r.Post("/image", merchantHandler.RequestImageUpload)
				r.Post("/redeem", merchantHandler.RedeemCoupon)
			})
		})
	})

	// WebSocket route
	r.Get("/ws/meal-period", wsHandler.HandleWebSocket)

	// Web client build, served last so API routes win
	if cfg.Server.StaticDir != "" {
		r.Handle("/*", staticHandler(cfg.Server.StaticDir))
	}

	return &app{router: r, hub: wsHub}, nil
}

// corsMiddleware handles CORS
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Merchant-Key")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// staticHandler serves the web client build. /index.html is answered in place instead of
// being redirected to /.
func staticHandler(dir string) http.Handler {
	files := http.FileServer(http.Dir(dir))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/index.html" {
			files.ServeHTTP(w, r)
			return
		}

		f, err := os.Open(filepath.Join(dir, "index.html"))
		if err != nil {
			http.NotFound(w, r)
			return
		}
		defer f.Close()

		info, err := f.Stat()
		if err != nil {
			http.NotFound(w, r)
			return
		}
		http.ServeContent(w, r, "index.html", info.ModTime(), f)
	})
}
