package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"storebot/internal/models"
	"storebot/internal/redisclient"
	"storebot/internal/service"
	"storebot/internal/util"
)

// Handler contains HTTP handlers
type Handler struct {
	ledgerService    *service.LedgerService
	orderService     *service.OrderService
	preorderService  *service.PreorderService
	inventoryService *service.InventoryService
	redis            *redisclient.Client
	allocateNow      func()
	adminToken       string
	retryLimit       int
}

// NewHandler creates a new HTTP handler
func NewHandler(
	ledgerService *service.LedgerService,
	orderService *service.OrderService,
	preorderService *service.PreorderService,
	inventoryService *service.InventoryService,
	redis *redisclient.Client,
	allocateNow func(),
	adminToken string,
	retryLimit int,
) *Handler {
	if retryLimit < 1 {
		retryLimit = 1
	}
	return &Handler{
		ledgerService:    ledgerService,
		orderService:     orderService,
		preorderService:  preorderService,
		inventoryService: inventoryService,
		redis:            redis,
		allocateNow:      allocateNow,
		adminToken:       adminToken,
		retryLimit:       retryLimit,
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
		v1.GET("/products", h.listProducts)
		v1.GET("/products/:code/stock", h.productStock)
		v1.GET("/accounts/:user_id", h.getProfile)
		v1.GET("/orders/:id", h.trackOrder)
		v1.GET("/preorders/:id", h.preorderStatus)
		v1.GET("/leaderboard", h.leaderboard)

		gated := v1.Group("")
		gated.Use(h.maintenanceGate())
		{
			gated.POST("/accounts", h.register)
			gated.POST("/accounts/:user_id/redeem", h.redeemPoints)
			gated.POST("/purchases", h.purchase)
			gated.POST("/preorders", h.preorder)
		}

		admin := v1.Group("/admin")
		admin.Use(h.adminGate())
		{
			admin.POST("/stock", h.addStock)
			admin.PUT("/products/:code/price", h.setPrice)
			admin.DELETE("/products/:code", h.deleteProduct)
			admin.POST("/balance", h.adjustBalance)
			admin.POST("/points", h.awardPoints)
			admin.POST("/maintenance", h.toggleMaintenance)
			admin.POST("/allocate", h.triggerAllocation)
			admin.GET("/revenue", h.revenue)
		}
	}
}

func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "time": time.Now().Unix()})
}

func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ready", "time": time.Now().Unix()})
}

type registerRequest struct {
	UserID int64  `json:"user_id" binding:"required"`
	GrowID string `json:"growid" binding:"required"`
}

func (h *Handler) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	acc, created, err := h.ledgerService.Register(c.Request.Context(), req.UserID, req.GrowID)
	if err != nil {
		h.writeError(c, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, acc)
}

func (h *Handler) getProfile(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Param("user_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}
	acc, err := h.ledgerService.Profile(c.Request.Context(), userID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, acc)
}

func (h *Handler) redeemPoints(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Param("user_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}
	wlGained, pointsLeft, err := h.ledgerService.RedeemPoints(c.Request.Context(), userID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"wl_gained": wlGained, "points_left": pointsLeft})
}

type purchaseRequest struct {
	UserID   int64  `json:"user_id" binding:"required"`
	Code     string `json:"code" binding:"required"`
	Quantity int    `json:"quantity" binding:"required,min=1"`
}

func (h *Handler) purchase(c *gin.Context) {
	var req purchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	// A concurrent consumer can invalidate the reserve between read and
	// commit; the whole attempt is retried a bounded number of times.
	var receipt *service.Receipt
	var err error
	for attempt := 0; attempt < h.retryLimit; attempt++ {
		receipt, err = h.orderService.Purchase(c.Request.Context(), req.UserID, req.Code, req.Quantity)
		if !errors.Is(err, models.ErrStockChanged) {
			break
		}
	}
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, receipt)
}

type preorderRequest struct {
	UserID int64  `json:"user_id" binding:"required"`
	Code   string `json:"code" binding:"required"`
	Amount int    `json:"amount" binding:"required,min=1"`
}

func (h *Handler) preorder(c *gin.Context) {
	var req preorderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	ticket, err := h.preorderService.Enqueue(c.Request.Context(), req.UserID, req.Code, req.Amount)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, ticket)
}

func (h *Handler) preorderStatus(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid preorder id"})
		return
	}
	po, pos, err := h.preorderService.Status(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"preorder": po, "queue_position": pos})
}

func (h *Handler) listProducts(c *gin.Context) {
	products, err := h.inventoryService.ListProducts(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": products})
}

func (h *Handler) productStock(c *gin.Context) {
	count, err := h.inventoryService.StockCount(c.Request.Context(), c.Param("code"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": c.Param("code"), "count": count})
}

func (h *Handler) trackOrder(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order id"})
		return
	}
	txn, items, err := h.orderService.Track(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transaction": txn, "items": items})
}

func (h *Handler) leaderboard(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	rows, err := h.ledgerService.Leaderboard(c.Request.Context(), limit)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"leaderboard": rows})
}

type addStockRequest struct {
	Code  string   `json:"code" binding:"required"`
	Title string   `json:"title"`
	Items []string `json:"items" binding:"required,min=1"`
}

func (h *Handler) addStock(c *gin.Context) {
	var req addStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}
	result, err := h.inventoryService.AddStock(c.Request.Context(), req.Code, req.Title, req.Items)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type setPriceRequest struct {
	Price int64 `json:"price" binding:"min=0"`
}

func (h *Handler) setPrice(c *gin.Context) {
	var req setPriceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}
	if err := h.inventoryService.SetPrice(c.Request.Context(), c.Param("code"), req.Price); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": c.Param("code"), "price": req.Price})
}

func (h *Handler) deleteProduct(c *gin.Context) {
	removed, err := h.inventoryService.DeleteProduct(c.Request.Context(), c.Param("code"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": c.Param("code"), "items_removed": removed})
}

type adjustBalanceRequest struct {
	GrowID string `json:"growid" binding:"required"`
	Delta  int64  `json:"delta" binding:"required"`
}

func (h *Handler) adjustBalance(c *gin.Context) {
	var req adjustBalanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}
	balance, err := h.ledgerService.AdjustBalance(c.Request.Context(), req.GrowID, req.Delta)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"growid": req.GrowID, "balance": balance})
}

type awardPointsRequest struct {
	GrowID string `json:"growid" binding:"required"`
	Delta  int64  `json:"delta" binding:"required,min=1"`
}

func (h *Handler) awardPoints(c *gin.Context) {
	var req awardPointsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}
	wlGained, pointsLeft, err := h.ledgerService.AwardPoints(c.Request.Context(), req.GrowID, req.Delta)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"wl_gained": wlGained, "points_left": pointsLeft})
}

func (h *Handler) toggleMaintenance(c *gin.Context) {
	on, err := h.redis.ToggleMaintenance(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"maintenance": on})
}

func (h *Handler) triggerAllocation(c *gin.Context) {
	h.allocateNow()
	c.JSON(http.StatusAccepted, gin.H{"status": "allocation requested"})
}

func (h *Handler) revenue(c *gin.Context) {
	summary, err := h.orderService.Revenue(c.Request.Context(), c.DefaultQuery("period", "total"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// maintenanceGate refuses mutating user operations while maintenance mode
// is active. Lookups stay open.
func (h *Handler) maintenanceGate() gin.HandlerFunc {
	return func(c *gin.Context) {
		on, err := h.redis.IsMaintenance(c.Request.Context())
		if err != nil {
			// Redis being down should not take purchases with it.
			c.Next()
			return
		}
		if on {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
				"error": models.ErrMaintenance.Error(),
			})
			return
		}
		c.Next()
	}
}

func (h *Handler) adminGate() gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.adminToken == "" || c.GetHeader("X-Admin-Token") != h.adminToken {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		c.Next()
	}
}

func (h *Handler) writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, models.ErrNotRegistered),
		errors.Is(err, models.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, models.ErrInvalidProduct),
		errors.Is(err, models.ErrInvalidGrowID),
		errors.Is(err, models.ErrInvalidAmount):
		status = http.StatusBadRequest
	case errors.Is(err, models.ErrGrowIDTaken),
		errors.Is(err, models.ErrProductExists):
		status = http.StatusConflict
	case errors.Is(err, models.ErrInsufficientStock),
		errors.Is(err, models.ErrInsufficientFunds),
		errors.Is(err, models.ErrPreorderCapExceeded):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, models.ErrStockChanged):
		status = http.StatusConflict
	case errors.Is(err, models.ErrNotificationFailed):
		status = http.StatusBadGateway
	}
	c.JSON(status, gin.H{"error": err.Error()})
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
