package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/buscoapp/busco/internal/billing"
	"github.com/buscoapp/busco/internal/handler"
	"github.com/buscoapp/busco/internal/imagestore"
	"github.com/buscoapp/busco/internal/middleware"
	"github.com/buscoapp/busco/internal/push"
	"github.com/buscoapp/busco/internal/store"
	ws "github.com/buscoapp/busco/internal/websocket"
)

// Config collects the runtime settings the server needs beyond the database.
type Config struct {
	JWTSecret       string
	SetupToken      string
	AllowedOrigins  []string
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	Billing         billing.Config
	Images          imagestore.Config
}

type Server struct {
	db          *sql.DB
	hub         *ws.Hub
	userStore   *store.UserStore
	authH       *handler.AuthHandler
	userH       *handler.UserHandler
	productH    *handler.ProductHandler
	marketH     *handler.MarketHandler
	priceH      *handler.PriceHandler
	listH       *handler.ShoppingListHandler
	pushH       *handler.PushHandler
	billingH    *handler.BillingHandler
	rateLimiter *middleware.RateLimiter
	cfg         Config
	logger      *slog.Logger
}

func New(db *sql.DB, cfg Config, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))

	userStore := store.NewUserStore(db)
	productStore := store.NewProductStore(db)
	marketStore := store.NewMarketStore(db)
	priceStore := store.NewPriceStore(db)
	listStore := store.NewShoppingListStore(db)
	pushStore := store.NewPushStore(db)

	images := imagestore.New(cfg.Images, logger.With("component", "imagestore"))
	pushSvc := push.NewService(cfg.VAPIDPublicKey, cfg.VAPIDPrivateKey)
	notifier := push.NewNotifier(pushSvc, pushStore, logger.With("component", "push"))
	billingClient := billing.NewClient(cfg.Billing)

	return &Server{
		db:          db,
		hub:         hub,
		userStore:   userStore,
		authH:       handler.NewAuthHandler(userStore, cfg.JWTSecret, cfg.SetupToken, logger.With("component", "auth")),
		userH:       handler.NewUserHandler(userStore, logger.With("component", "user")),
		productH:    handler.NewProductHandler(productStore, images, hub, logger.With("component", "product")),
		marketH:     handler.NewMarketHandler(marketStore, hub, logger.With("component", "market")),
		priceH:      handler.NewPriceHandler(priceStore, productStore, marketStore, hub, notifier, logger.With("component", "price")),
		listH:       handler.NewShoppingListHandler(listStore, productStore, priceStore, logger.With("component", "shopping_list")),
		pushH:       handler.NewPushHandler(pushStore, pushSvc, logger.With("component", "push_handler")),
		billingH:    handler.NewBillingHandler(billingClient, userStore, logger.With("component", "billing")),
		rateLimiter: middleware.NewRateLimiter(),
		cfg:         cfg,
		logger:      logger,
	}
}

// RateLimiter exposes the limiter for periodic cleanup.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes
	outerMux.HandleFunc("POST /api/auth/register", s.rateLimited(s.authH.Register))
	outerMux.HandleFunc("POST /api/auth/register-admin", s.rateLimited(s.authH.RegisterAdmin))
	outerMux.HandleFunc("POST /api/auth/login", s.rateLimited(s.authH.Login))
	outerMux.HandleFunc("GET /api/products", s.productH.List)
	outerMux.HandleFunc("GET /api/products/{id}", s.productH.Get)
	outerMux.HandleFunc("GET /api/markets", s.marketH.List)
	outerMux.HandleFunc("GET /api/markets/{id}", s.marketH.Get)
	outerMux.HandleFunc("GET /api/prices/product/{id}", s.priceH.ListByProduct)
	outerMux.HandleFunc("GET /api/prices/market/{id}", s.priceH.ListByMarket)
	outerMux.HandleFunc("POST /api/prices/compare", s.priceH.Compare)
	outerMux.HandleFunc("POST /api/billing/webhook", s.billingH.Webhook)
	outerMux.HandleFunc("GET /ws", ws.Handler(s.hub, s.logger.With("component", "websocket"), s.cfg.AllowedOrigins))
	outerMux.HandleFunc("GET /health", s.healthHandler)

	// Authenticated routes
	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	requireAuth := middleware.RequireAuth(s.cfg.JWTSecret, s.userStore)
	outerMux.Handle("/api/", requireAuth(protectedMux))

	h := middleware.CORS(s.cfg.AllowedOrigins)(outerMux)
	return middleware.RequestLogger(s.logger.With("component", "http"))(h)
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	admin := func(h http.HandlerFunc) http.Handler { return middleware.RequireAdmin(h) }
	premium := func(h http.HandlerFunc) http.Handler { return middleware.RequirePremium(h) }

	// Users
	mux.Handle("GET /api/users", admin(s.userH.List))
	mux.HandleFunc("GET /api/users/{id}", s.userH.Get)
	mux.HandleFunc("PUT /api/users/{id}", s.userH.Update)
	mux.Handle("DELETE /api/users/{id}", admin(s.userH.Delete))

	// Catalog management (admin)
	mux.Handle("POST /api/products", admin(s.productH.Create))
	mux.Handle("PUT /api/products/{id}", admin(s.productH.Update))
	mux.Handle("DELETE /api/products/{id}", admin(s.productH.Delete))
	mux.Handle("POST /api/markets", admin(s.marketH.Create))
	mux.Handle("PUT /api/markets/{id}", admin(s.marketH.Update))
	mux.Handle("DELETE /api/markets/{id}", admin(s.marketH.Delete))
	mux.Handle("POST /api/prices", admin(s.priceH.Upsert))

	// Shopping lists (premium or admin)
	mux.Handle("POST /api/shopping-lists", premium(s.listH.Create))
	mux.Handle("GET /api/shopping-lists", premium(s.listH.List))
	mux.Handle("GET /api/shopping-lists/{id}", premium(s.listH.Get))
	mux.Handle("PUT /api/shopping-lists/{id}", premium(s.listH.Update))
	mux.Handle("DELETE /api/shopping-lists/{id}", premium(s.listH.Delete))
	mux.Handle("POST /api/shopping-lists/{id}/items", premium(s.listH.AddItem))
	mux.Handle("PUT /api/shopping-lists/{id}/items/{productId}", premium(s.listH.UpdateItem))
	mux.Handle("DELETE /api/shopping-lists/{id}/items/{productId}", premium(s.listH.RemoveItem))
	mux.Handle("PUT /api/shopping-lists/{id}/finalize", premium(s.listH.Finalize))
	mux.Handle("PUT /api/shopping-lists/{id}/checked-items", premium(s.listH.SetCheckedItems))

	// Billing
	mux.HandleFunc("POST /api/billing/checkout", s.billingH.Checkout)
	mux.HandleFunc("POST /api/billing/portal", s.billingH.Portal)

	// Push notifications
	mux.HandleFunc("POST /api/push/subscribe", s.pushH.Subscribe)
	mux.HandleFunc("DELETE /api/push/subscriptions/{id}", s.pushH.Unsubscribe)
	mux.HandleFunc("GET /api/push/vapid-key", s.pushH.GetVAPIDKey)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) rateLimited(h http.HandlerFunc) http.HandlerFunc {
	keyFunc := func(r *http.Request) string {
		return middleware.RealIP(r)
	}
	rl := middleware.RateLimit(s.rateLimiter, keyFunc, 10, time.Minute)
	return func(w http.ResponseWriter, r *http.Request) {
		rl(h).ServeHTTP(w, r)
	}
}
