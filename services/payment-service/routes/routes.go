package routes

import (
	"github.com/PraiaOps/PraiAtiva-sub001/services/common/auth"
	"github.com/PraiaOps/PraiAtiva-sub001/services/payment-service/controllers"
	"github.com/PraiaOps/PraiAtiva-sub001/services/payment-service/middleware"
	"github.com/gin-gonic/gin"
)

// Options carries the middleware the payment routes are wrapped in.
type Options struct {
	Auth gin.HandlerFunc
	// SessionLimiter throttles checkout session creation; nil disables it.
	SessionLimiter gin.HandlerFunc
}

func RegisterPaymentRoutes(r *gin.Engine, pc *controllers.PaymentController, opts Options) {
	r.GET("/health", pc.Health)

	api := r.Group("/api")

	// Stripe webhook (signature-verified, no auth)
	api.POST("/webhooks/stripe", pc.StripeWebhook)

	session := []gin.HandlerFunc{}
	if opts.SessionLimiter != nil {
		session = append(session, opts.SessionLimiter)
	}
	api.POST("/create-payment-session", append(session, pc.CreatePaymentSession)...)

	protected := api.Group("")
	protected.Use(opts.Auth)
	{
		protected.POST("/payments", middleware.RequireRoles(auth.RoleStudent, auth.RoleAdmin), pc.CreatePayment)
		protected.GET("/payments/:id", pc.GetPayment)
		protected.POST("/payments/:id/refund", middleware.RequireRoles(auth.RoleAdmin), pc.RefundPayment)
		protected.GET("/enrollments/:id/transactions", middleware.RequireRoles(auth.RoleAdmin, auth.RoleInstructor), pc.ListEnrollmentTransactions)
		protected.GET("/transactions/:id/receipt", middleware.RequireRoles(auth.RoleAdmin), pc.GetReceipt)
	}
}
