package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"ticketeer/internal/models"
	"ticketeer/internal/service"
	"ticketeer/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler contains HTTP handlers
type Handler struct {
	purchases   *service.PurchaseService
	ticketTypes *service.TicketTypeService
	tickets     *service.TicketService
	reconciler  *service.Reconciler
}

// NewHandler creates a new HTTP handler
func NewHandler(
	purchases *service.PurchaseService,
	ticketTypes *service.TicketTypeService,
	tickets *service.TicketService,
	reconciler *service.Reconciler,
) *Handler {
	return &Handler{
		purchases:   purchases,
		ticketTypes: ticketTypes,
		tickets:     tickets,
		reconciler:  reconciler,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.POST("/events/:id/ticket-types", h.createTicketType)
		v1.GET("/events/:id/ticket-types", h.listTicketTypes)
		v1.PATCH("/ticket-types/:id", h.updateTicketType)
		v1.GET("/ticket-types/:id/availability", h.ticketTypeAvailability)

		v1.POST("/purchases/validate", h.validatePurchase)
		v1.POST("/payments/:provider/verify", h.verifyPayment)
		v1.POST("/payments/webhook", h.paymentWebhook)

		v1.POST("/tickets/:id/check-in", h.checkIn)
		v1.POST("/check-ins", h.checkInByCredential)
		v1.GET("/tickets/:id", h.getTicket)
		v1.GET("/events/:id/tickets", h.listEventTickets)
		v1.GET("/events/:id/tickets/sold", h.ticketsSold)
		v1.GET("/events/:id/attendees", h.listAttendees)
		v1.GET("/users/:id/tickets", h.listUserTickets)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck handles readiness check requests
func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// createTicketType handles ticket type creation for an event
func (h *Handler) createTicketType(c *gin.Context) {
	var in service.TicketTypeInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	tt, err := h.ticketTypes.Create(c.Request.Context(), c.Param("id"), &in)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, tt)
}

// listTicketTypes returns an event's ticket types
func (h *Handler) listTicketTypes(c *gin.Context) {
	types, err := h.ticketTypes.ListForEvent(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"ticket_types": types})
}

// updateTicketType handles partial ticket type updates
func (h *Handler) updateTicketType(c *gin.Context) {
	var in service.UpdateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	tt, err := h.ticketTypes.Update(c.Request.Context(), c.Param("id"), &in)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, tt)
}

// ticketTypeAvailability reports remaining seats for a ticket type
func (h *Handler) ticketTypeAvailability(c *gin.Context) {
	available, err := h.purchases.Availability(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"available": available})
}

// validatePurchase quotes a cart before the client initiates payment
func (h *Handler) validatePurchase(c *gin.Context) {
	var req service.PurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	quote, err := h.purchases.Quote(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, quote)
}

// verifyPayment confirms a charge with the provider and completes the
// purchase on success.
func (h *Handler) verifyPayment(c *gin.Context) {
	var body struct {
		Reference string `json:"reference" binding:"required"`
		service.PurchaseRequest
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	result, err := h.reconciler.Confirm(c.Request.Context(),
		c.Param("provider"), body.Reference, &body.PurchaseRequest)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, result)
}

// paymentWebhook handles asynchronous provider confirmations. The raw body
// is needed for signature verification, so no binding here.
func (h *Handler) paymentWebhook(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read body"})
		return
	}

	result, err := h.reconciler.HandleWebhook(c.Request.Context(), body,
		c.GetHeader("X-Webhook-Signature"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// checkIn admits a ticket holder at the door
func (h *Handler) checkIn(c *gin.Context) {
	ticket, err := h.tickets.CheckIn(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, ticket)
}

// checkInByCredential admits a scanned credential payload at the door
func (h *Handler) checkInByCredential(c *gin.Context) {
	var body struct {
		Credential string `json:"credential" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	ticket, err := h.tickets.CheckInByCredential(c.Request.Context(), body.Credential)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, ticket)
}

// getTicket returns one ticket
func (h *Handler) getTicket(c *gin.Context) {
	ticket, err := h.tickets.GetTicket(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, ticket)
}

// listEventTickets returns the tickets issued for an event
func (h *Handler) listEventTickets(c *gin.Context) {
	tickets, err := h.tickets.ListEventTickets(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"tickets": tickets})
}

// ticketsSold reports seats sold for an event
func (h *Handler) ticketsSold(c *gin.Context) {
	sold, err := h.tickets.TicketsSold(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"sold": sold})
}

// listAttendees returns the attendee user ids for an event
func (h *Handler) listAttendees(c *gin.Context) {
	attendees, err := h.tickets.ListAttendees(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"attendees": attendees})
}

// listUserTickets returns a buyer's tickets
func (h *Handler) listUserTickets(c *gin.Context) {
	tickets, err := h.tickets.ListUserTickets(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"tickets": tickets})
}

// respondError maps domain errors to HTTP statuses
func respondError(c *gin.Context, err error) {
	var insufficient *models.InsufficientInventoryError
	var reconciliation *models.ReconciliationError

	switch {
	case errors.As(err, &reconciliation):
		// Money moved but no tickets were issued. The client must not
		// retry the purchase; this goes to support.
		c.JSON(http.StatusConflict, gin.H{
			"error":        "Payment received but ticket issuance failed. Do not retry; contact support.",
			"provider":     reconciliation.Provider,
			"provider_ref": reconciliation.ProviderRef,
		})
	case errors.As(err, &insufficient):
		c.JSON(http.StatusConflict, gin.H{
			"error":          err.Error(),
			"ticket_type_id": insufficient.TicketTypeID,
			"requested":      insufficient.Requested,
			"available":      insufficient.Available,
		})
	case errors.Is(err, models.ErrEventNotFound),
		errors.Is(err, models.ErrTicketNotFound),
		errors.Is(err, models.ErrTicketTypeNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrInvalidCart),
		errors.Is(err, models.ErrInvalidTicketType),
		errors.Is(err, models.ErrInvalidCredential):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrNotOrganizer):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidSignature):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrPaymentNotVerified):
		c.JSON(http.StatusPaymentRequired, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrAlreadyFulfilled):
		c.JSON(http.StatusOK, gin.H{"status": "already_fulfilled"})
	case errors.Is(err, models.ErrEventCancelled),
		errors.Is(err, models.ErrEventAlreadyStarted),
		errors.Is(err, models.ErrEventEnded),
		errors.Is(err, models.ErrTicketAlreadyUsed),
		errors.Is(err, models.ErrTicketCancelled),
		errors.Is(err, models.ErrDuplicateTicketType),
		errors.Is(err, models.ErrMaxTicketTypes),
		errors.Is(err, models.ErrResizeBelowSold),
		errors.Is(err, models.ErrExceedsEventLimit):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Internal server error",
			"details": err.Error(),
		})
	}
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
