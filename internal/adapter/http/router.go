package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/simaogato/settlement-backend/internal/domain"
)

// PaymentDecider applies verification decisions
type PaymentDecider interface {
	HandleVerificationDecision(ctx context.Context, paymentID uuid.UUID, approved bool) (*domain.Payment, error)
	RejectPayment(ctx context.Context, paymentID uuid.UUID, reason string) (*domain.Payment, error)
}

// ExerciseCompleter finishes an option exercise once its payment succeeded
type ExerciseCompleter interface {
	HandleExerciseSuccessfulPayment(ctx context.Context, trackedPaymentID uuid.UUID) error
}

// TrackedPaymentReader looks up tracked payments
type TrackedPaymentReader interface {
	Get(ctx context.Context, id uuid.UUID) (*domain.TrackedPayment, error)
}

// Dependencies wires the router to the usecases
type Dependencies struct {
	Payments  PaymentDecider
	Exercises ExerciseCompleter
	Tracked   TrackedPaymentReader
	Outcomes  domain.OutcomePublisher
	Gatherer  prometheus.Gatherer
	Ready     func(ctx context.Context) error
	Token     string
	Logger    *zap.Logger
}

type handler struct {
	deps Dependencies
}

// NewRouter builds the internal HTTP surface: health, metrics and the
// callback endpoints used by the verification authority and the payment pipeline
func NewRouter(deps Dependencies) *gin.Engine {
	router := gin.New()
	router.Use(ginzap.Ginzap(deps.Logger, time.RFC3339, true))
	router.Use(ginzap.RecoveryWithZap(deps.Logger, true))

	h := &handler{deps: deps}
	router.GET("/healthz", h.health)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))

	internal := router.Group("/internal", requireToken(deps.Token))
	{
		internal.POST("/verifications/:paymentId/decision", h.verificationDecision)
		internal.POST("/payment-outcomes", h.paymentOutcome)
		internal.GET("/tracked-payments/:id", h.getTrackedPayment)
		internal.POST("/tracked-payments/:id/success", h.trackedPaymentSuccess)
	}
	return router
}

func requireToken(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			abortWithError(c, http.StatusUnauthorized, "UNAUTHENTICATED", "missing authorization header")
			return
		}
		if strings.TrimPrefix(header, "Bearer ") != token {
			abortWithError(c, http.StatusUnauthorized, "UNAUTHENTICATED", "invalid token")
			return
		}
		c.Next()
	}
}

func (h *handler) health(c *gin.Context) {
	if h.deps.Ready != nil {
		if err := h.deps.Ready(c.Request.Context()); err != nil {
			h.deps.Logger.Warn("readiness check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type decisionRequest struct {
	Approved *bool  `json:"approved" binding:"required"`
	Reason   string `json:"reason" binding:"max=255"`
}

type paymentJSON struct {
	ID            string `json:"id"`
	Kind          string `json:"kind"`
	Status        string `json:"status"`
	Amount        string `json:"amount"`
	FailureReason string `json:"failureReason,omitempty"`
}

func (h *handler) verificationDecision(c *gin.Context) {
	paymentID, ok := pathUUID(c, "paymentId")
	if !ok {
		return
	}

	var req decisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "INVALID_ARGUMENT", err.Error())
		return
	}

	var payment *domain.Payment
	var err error
	if !*req.Approved && req.Reason != "" {
		payment, err = h.deps.Payments.RejectPayment(c.Request.Context(), paymentID, req.Reason)
	} else {
		payment, err = h.deps.Payments.HandleVerificationDecision(c.Request.Context(), paymentID, *req.Approved)
	}
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, paymentJSON{
		ID:            payment.ID.String(),
		Kind:          string(payment.Kind),
		Status:        string(payment.Status),
		Amount:        payment.Amount.String(),
		FailureReason: payment.FailureReason,
	})
}

func (h *handler) paymentOutcome(c *gin.Context) {
	var outcome domain.PaymentOutcome
	if err := c.ShouldBindJSON(&outcome); err != nil {
		abortWithError(c, http.StatusBadRequest, "INVALID_ARGUMENT", err.Error())
		return
	}
	if outcome.PaymentID == uuid.Nil {
		abortWithError(c, http.StatusBadRequest, "INVALID_ARGUMENT", "paymentId is required")
		return
	}

	if err := h.deps.Outcomes.Publish(c.Request.Context(), outcome); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusAccepted)
}

func (h *handler) getTrackedPayment(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	tp, err := h.deps.Tracked.Get(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":              tp.ID.String(),
		"trackedEntityId": tp.TrackedEntityID.String(),
		"type":            string(tp.Type),
		"createdAt":       tp.CreatedAt,
	})
}

func (h *handler) trackedPaymentSuccess(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	if err := h.deps.Exercises.HandleExerciseSuccessfulPayment(c.Request.Context(), id); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func pathUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "INVALID_ARGUMENT", "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

var httpStatuses = map[string]int{
	"PAYMENT_NOT_FOUND":         http.StatusNotFound,
	"TRACKED_PAYMENT_NOT_FOUND": http.StatusNotFound,
	"OPTION_NOT_FOUND":          http.StatusNotFound,
	"OFFER_NOT_FOUND":           http.StatusNotFound,
	"ACCOUNT_NOT_FOUND":         http.StatusNotFound,
	"PAYMENT_NOT_PENDING":       http.StatusConflict,
	"PAYMENT_ALREADY_COMPLETED": http.StatusConflict,
	"ALREADY_EXERCISED":         http.StatusConflict,
	"EXERCISE_IN_PROGRESS":      http.StatusConflict,
	"PAYMENT_KIND_MISMATCH":     http.StatusUnprocessableEntity,
	"INSUFFICIENT_FUNDS":        http.StatusUnprocessableEntity,
	"INSUFFICIENT_SHARES":       http.StatusUnprocessableEntity,
	"BANK_ACCOUNT_NOT_FOUND":    http.StatusUnprocessableEntity,
	"EXCHANGE_RATE_UNAVAILABLE": http.StatusServiceUnavailable,
}

func (h *handler) respondError(c *gin.Context, err error) {
	code := domain.Code(err)
	httpStatus, ok := httpStatuses[code]
	if !ok {
		h.deps.Logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		abortWithError(c, http.StatusInternalServerError, "INTERNAL", "internal error")
		return
	}

	abortWithError(c, httpStatus, code, err.Error())
}

func abortWithError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{"code": code, "message": message})
}
