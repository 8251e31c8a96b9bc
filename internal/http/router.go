package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/middleware"
)

type RouterOptions struct {
	CORSAllowOrigins []string
	Logger           *zap.Logger
}

func NewRouter(h *Handler, opts RouterOptions) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	origins := opts.CORSAllowOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.CorrelationID)
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.Recover(logger))
	r.Use(middleware.CORS(origins))

	r.Get("/health", h.Health)
	r.Get("/health/ready", h.Ready)

	r.Route("/api", func(r chi.Router) {
		r.Get("/products/trending", h.Trending)
		r.Get("/products/{id}", h.GetProduct)
		r.Get("/categories/{categoryId}/products", h.ProductsByCategory)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireSessionID)

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", h.GetCart)
				r.Delete("/", h.ClearCart)
				r.Get("/summary", h.GetCartSummary)
				r.Post("/items", h.AddCartItem)
				r.Patch("/items/{productId}", h.UpdateCartItem)
				r.Delete("/items/{productId}", h.RemoveCartItem)
			})

			r.Route("/addresses", func(r chi.Router) {
				r.Get("/", h.ListAddresses)
				r.Post("/", h.CreateAddress)
				r.Get("/selected", h.GetSelectedAddress)
				r.Put("/selected", h.SelectAddress)
			})

			r.Route("/checkout", func(r chi.Router) {
				r.Get("/", h.GetCheckout)
				r.Put("/payment-method", h.SelectPaymentMethod)
				r.Post("/pay", h.Pay)
				r.Post("/callback/success", h.PaymentSucceeded)
				r.Post("/callback/failure", h.PaymentFailed)
				r.Post("/callback/error", h.PaymentErrored)
				r.Post("/dismiss", h.DismissPayment)
				r.Get("/confirmation", h.GetConfirmation)
			})
		})
	})

	return otelhttp.NewHandler(r, "storefront",
		otelhttp.WithSpanNameFormatter(func(_ string, req *http.Request) string {
			return req.Method + " " + req.URL.Path
		}),
	)
}
