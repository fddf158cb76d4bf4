package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"bitbucket.org/mmdatafocus/supplychain_backend/config"
	"bitbucket.org/mmdatafocus/supplychain_backend/middlewares"
	"bitbucket.org/mmdatafocus/supplychain_backend/models"
	"bitbucket.org/mmdatafocus/supplychain_backend/utils"
	"bitbucket.org/mmdatafocus/supplychain_backend/workflow"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
)

const defaultPort = "8080"

var tracer = otel.Tracer("supplychain-backend")

// Define a struct to represent the rate limiter.
type RateLimiter struct {
	client *redis.Client
	limit  int64
	window time.Duration
}

func getRedisClient(redisAddress string) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr: redisAddress,
	})
	return client
}

// respondLedgerError maps the ledger error taxonomy onto HTTP status codes.
// Unclassified errors are infrastructure failures: log and return 500.
func respondLedgerError(c *gin.Context, logger *logrus.Logger, err error) {
	switch models.KindOf(err) {
	case models.ErrorKindUnauthenticated:
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error(), "kind": models.ErrorKindUnauthenticated})
	case models.ErrorKindAuthorization:
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error(), "kind": models.ErrorKindAuthorization})
	case models.ErrorKindValidation:
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "kind": models.ErrorKindValidation})
	case models.ErrorKindState:
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "kind": models.ErrorKindState})
	case models.ErrorKindConsistency:
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error(), "kind": models.ErrorKindConsistency})
	case models.ErrorKindNotFound:
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error(), "kind": models.ErrorKindNotFound})
	default:
		config.LogError(logger, "server.go", "respondLedgerError", c.FullPath(), nil, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func correlationId(c *gin.Context) string {
	cid, _ := utils.GetCorrelationIdFromContext(c.Request.Context())
	return cid
}

func bindJSON(c *gin.Context, dest interface{}) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		if fields := utils.ProcessValidationErrors(err); len(fields) > 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "fields": fields})
			return false
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return false
	}
	return true
}

func pathId(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

/* Role registry */

type addressRequest struct {
	Address string `json:"address" binding:"required"`
}

func registerRoleHandler(logger *logrus.Logger, role models.LedgerRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req addressRequest
		if !bindJSON(c, &req) {
			return
		}
		member, err := models.RegisterRole(c.Request.Context(), role, req.Address)
		if err != nil {
			respondLedgerError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"member":         member,
			"correlation_id": correlationId(c),
		})
	}
}

func removeOwnerHandler(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		address := c.Param("address")
		if err := models.RemoveOwner(c.Request.Context(), address); err != nil {
			respondLedgerError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"address":        address,
			"correlation_id": correlationId(c),
		})
	}
}

func roleMembersHandler(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var role models.LedgerRole
		if err := role.Parse(c.Param("role")); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		members, err := models.GetRoleMembers(c.Request.Context(), role)
		if err != nil {
			respondLedgerError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"role": role, "members": members})
	}
}

func roleMembershipHandler(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var role models.LedgerRole
		if err := role.Parse(c.Param("role")); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		ok, err := models.HasRole(c.Request.Context(), role, c.Param("address"))
		if err != nil {
			respondLedgerError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"role": role, "address": c.Param("address"), "is_member": ok})
	}
}

/* Product lifecycle */

func createProductHandler(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracer.Start(c.Request.Context(), "CreateProduct")
		defer span.End()

		var req models.NewProduct
		if !bindJSON(c, &req) {
			return
		}
		product, err := models.CreateProduct(ctx, &req)
		if err != nil {
			respondLedgerError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"product":        product,
			"correlation_id": correlationId(c),
		})
	}
}

type sendToSupplierRequest struct {
	Supplier string `json:"supplier" binding:"required"`
}

func sendToSupplierHandler(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		var req sendToSupplierRequest
		if !bindJSON(c, &req) {
			return
		}
		product, err := models.SendToSupplier(c.Request.Context(), id, req.Supplier)
		if err != nil {
			respondLedgerError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"product": product, "correlation_id": correlationId(c)})
	}
}

func receiveProductHandler(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		product, err := models.ReceiveProduct(c.Request.Context(), id)
		if err != nil {
			respondLedgerError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"product": product, "correlation_id": correlationId(c)})
	}
}

type shippingInfoRequest struct {
	ShippingInfo string `json:"shipping_info"`
}

func updateShippingInfoHandler(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		var req shippingInfoRequest
		if !bindJSON(c, &req) {
			return
		}
		product, err := models.UpdateShippingInfo(c.Request.Context(), id, req.ShippingInfo)
		if err != nil {
			respondLedgerError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"product": product, "correlation_id": correlationId(c)})
	}
}

type sendToRetailerRequest struct {
	Retailer string `json:"retailer" binding:"required"`
}

func sendToRetailerHandler(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		var req sendToRetailerRequest
		if !bindJSON(c, &req) {
			return
		}
		product, err := models.SendToRetailer(c.Request.Context(), id, req.Retailer)
		if err != nil {
			respondLedgerError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"product": product, "correlation_id": correlationId(c)})
	}
}

func receiveFromSupplierHandler(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		product, err := models.ReceiveProductFromSupplier(c.Request.Context(), id)
		if err != nil {
			respondLedgerError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"product": product, "correlation_id": correlationId(c)})
	}
}

func addToStoreHandler(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		product, err := models.AddToStore(c.Request.Context(), id)
		if err != nil {
			respondLedgerError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"product": product, "correlation_id": correlationId(c)})
	}
}

type sellRequest struct {
	Consumer string `json:"consumer" binding:"required"`
	// Quantity 0 (or omitted) sells all remaining quantity.
	Quantity int64 `json:"quantity"`
}

func sellToConsumerHandler(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		var req sellRequest
		if !bindJSON(c, &req) {
			return
		}
		product, err := models.SellToConsumer(c.Request.Context(), id, req.Consumer, req.Quantity)
		if err != nil {
			respondLedgerError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"product": product, "correlation_id": correlationId(c)})
	}
}

/* Quotations */

func createQuotationHandler(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.NewQuotation
		if !bindJSON(c, &req) {
			return
		}
		quotation, err := models.CreateQuotation(c.Request.Context(), &req)
		if err != nil {
			respondLedgerError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"quotation": quotation, "correlation_id": correlationId(c)})
	}
}

type approveQuotationsRequest struct {
	QuotationIds  []int `json:"quotation_ids" binding:"required"`
	TotalQuantity int64 `json:"total_quantity" binding:"required"`
}

func approveQuotationsHandler(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracer.Start(c.Request.Context(), "ApproveQuotations")
		defer span.End()

		var req approveQuotationsRequest
		if !bindJSON(c, &req) {
			return
		}
		product, err := models.ApproveQuotations(ctx, req.QuotationIds, req.TotalQuantity)
		if err != nil {
			respondLedgerError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"product": product, "correlation_id": correlationId(c)})
	}
}

func rejectQuotationHandler(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		quotation, err := models.RejectQuotation(c.Request.Context(), id)
		if err != nil {
			respondLedgerError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"quotation": quotation, "correlation_id": correlationId(c)})
	}
}

type fulfillQuotationsRequest struct {
	QuotationIds []int `json:"quotation_ids" binding:"required"`
}

func fulfillQuotationsHandler(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracer.Start(c.Request.Context(), "FulfillQuotations")
		defer span.End()

		id, ok := pathId(c)
		if !ok {
			return
		}
		var req fulfillQuotationsRequest
		if !bindJSON(c, &req) {
			return
		}
		product, err := models.FulfillQuotations(ctx, id, req.QuotationIds)
		if err != nil {
			respondLedgerError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"product": product, "correlation_id": correlationId(c)})
	}
}

/* Surplus purchase + acknowledgement */

type purchaseRequest struct {
	Quantity int64 `json:"quantity" binding:"required"`
}

func purchaseFromSurplusHandler(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracer.Start(c.Request.Context(), "PurchaseFromSurplus")
		defer span.End()

		id, ok := pathId(c)
		if !ok {
			return
		}
		var req purchaseRequest
		if !bindJSON(c, &req) {
			return
		}
		product, err := models.PurchaseFromSurplus(ctx, id, req.Quantity)
		if err != nil {
			respondLedgerError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"product": product, "correlation_id": correlationId(c)})
	}
}

func acknowledgePurchaseHandler(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		purchase, err := models.AcknowledgePurchase(c.Request.Context(), id)
		if err != nil {
			respondLedgerError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"purchase": purchase, "correlation_id": correlationId(c)})
	}
}

/* Reads */

func getProductHandler(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		product, err := models.GetProduct(c.Request.Context(), id)
		if err != nil {
			respondLedgerError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"product": product})
	}
}

func getProductExtendedHandler(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		product, err := models.GetProductExtended(c.Request.Context(), id)
		if err != nil {
			respondLedgerError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"product": product})
	}
}

func productCountHandler(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		count, err := models.ProductCount(c.Request.Context())
		if err != nil {
			respondLedgerError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"count": count})
	}
}

func getProductQuotationsHandler(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		ids, err := models.GetProductQuotations(c.Request.Context(), id)
		if err != nil {
			respondLedgerError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"quotation_ids": ids})
	}
}

func getProductEventsHandler(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		events, err := models.GetProductEvents(c.Request.Context(), id)
		if err != nil {
			respondLedgerError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"events": events})
	}
}

func getConsumerPurchaseHandler(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		address := c.Param("address")
		quantity, err := models.GetConsumerPurchaseQuantity(c.Request.Context(), id, address)
		if err != nil {
			respondLedgerError(c, logger, err)
			return
		}
		acknowledged, err := models.IsPurchaseAcknowledged(c.Request.Context(), id, address)
		if err != nil {
			respondLedgerError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"product_id":   id,
			"address":      address,
			"quantity":     quantity,
			"acknowledged": acknowledged,
		})
	}
}

func getQuotationHandler(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		quotation, err := models.GetQuotation(c.Request.Context(), id)
		if err != nil {
			respondLedgerError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"quotation": quotation})
	}
}

func getConsumerQuotationsHandler(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ids, err := models.GetConsumerQuotations(c.Request.Context(), c.Param("address"))
		if err != nil {
			respondLedgerError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"quotation_ids": ids})
	}
}

func getPendingQuotationsHandler(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ids, err := models.GetPendingQuotations(c.Request.Context())
		if err != nil {
			respondLedgerError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"quotation_ids": ids})
	}
}

func getAvailableProductsByNameHandler(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		name := strings.TrimSpace(c.Query("name"))
		if name == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "name query parameter is required"})
			return
		}
		result, err := models.GetAvailableProductsByName(c.Request.Context(), name)
		if err != nil {
			respondLedgerError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func getRetailerStoreProductsHandler(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		result, err := models.GetRetailerStoreProducts(c.Request.Context(), c.Param("address"))
		if err != nil {
			respondLedgerError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func getLedgerEventsHandler(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		after, _ := strconv.Atoi(c.DefaultQuery("after", "0"))
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
		events, err := models.GetLedgerEvents(c.Request.Context(), after, limit)
		if err != nil {
			respondLedgerError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"events": events})
	}
}

func customNotFoundHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
}

func main() {
	port := os.Getenv("API_PORT")
	if port == "" {
		port = os.Getenv("PORT")
	}
	if port == "" {
		port = defaultPort
	}

	logger := config.GetLogger()

	// Shutdown coordination: handle SIGTERM for graceful drain.
	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	// Start the HTTP server ASAP so the startup probe passes.
	// Until DB/Redis are ready, we return 503 for app endpoints.
	r := gin.New()
	// Correlation IDs: generate once per request and attach to context.
	r.Use(func(c *gin.Context) {
		cid := c.GetHeader("x-correlation-id")
		if cid == "" {
			cid = uuid.NewString()
		}
		c.Request = c.Request.WithContext(utils.SetCorrelationIdInContext(c.Request.Context(), cid))
		c.Next()
	})
	r.Use(func(c *gin.Context) {
		// Always allow the startup probe.
		if c.Request.URL.Path == "/healthz" {
			c.Status(http.StatusNoContent)
			c.Abort()
			return
		}
		// Gate critical endpoints on dependency readiness.
		if config.GetDB() == nil {
			c.AbortWithStatus(http.StatusServiceUnavailable)
			return
		}
		c.Next()
	})

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	corsConfig := cors.DefaultConfig()
	// Production-safe CORS:
	// - In production, require explicit allowlist via CORS_ALLOWED_ORIGINS (comma-separated).
	// - In non-production, allow all (developer convenience).
	allowedOrigins := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production") {
		if allowedOrigins == "" {
			// Safer default: deny all if not configured in production.
			corsConfig.AllowOrigins = []string{}
		} else {
			corsConfig.AllowOrigins = splitAndTrim(allowedOrigins)
		}
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AddAllowMethods("GET", "POST", "PUT", "DELETE", "OPTIONS")
	corsConfig.AddAllowHeaders("token", "Origin", "Content-Type", "Authorization")
	corsConfig.AddExposeHeaders("Content-Length")
	corsConfig.AllowCredentials = true

	r.Use(cors.New(corsConfig))

	// Optional rate limiting (recommended for production).
	// Env:
	// - RATE_LIMIT_ENABLED=true
	// - RATE_LIMIT_WINDOW_SECONDS=60
	// - RATE_LIMIT_MAX_REQUESTS=600
	if strings.EqualFold(strings.TrimSpace(os.Getenv("RATE_LIMIT_ENABLED")), "true") {
		client := getRedisClient(os.Getenv("REDIS_ADDRESS"))
		limit := int64(600)
		if v := strings.TrimSpace(os.Getenv("RATE_LIMIT_MAX_REQUESTS")); v != "" {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
				limit = n
			}
		}
		windowSec := int64(60)
		if v := strings.TrimSpace(os.Getenv("RATE_LIMIT_WINDOW_SECONDS")); v != "" {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
				windowSec = n
			}
		}
		rateLimiter := NewRateLimiter(client, limit, time.Duration(windowSec)*time.Second)
		r.Use(rateLimiter.RateLimitMiddleware)
	}

	r.Use(middlewares.AuthMiddleware())
	r.Use(customErrorLogger(logger))
	r.Use(gin.Recovery())

	v1 := r.Group("/api/v1")
	{
		// Role registry.
		v1.POST("/roles/owners", registerRoleHandler(logger, models.LedgerRoleOwner))
		v1.DELETE("/roles/owners/:address", removeOwnerHandler(logger))
		v1.POST("/roles/producers", registerRoleHandler(logger, models.LedgerRoleProducer))
		v1.POST("/roles/suppliers", registerRoleHandler(logger, models.LedgerRoleSupplier))
		v1.POST("/roles/retailers", registerRoleHandler(logger, models.LedgerRoleRetailer))
		v1.POST("/roles/consumers", registerRoleHandler(logger, models.LedgerRoleConsumer))
		v1.GET("/roles/:role/members", roleMembersHandler(logger))
		v1.GET("/roles/:role/members/:address", roleMembershipHandler(logger))

		// Product lifecycle.
		v1.POST("/products", createProductHandler(logger))
		v1.POST("/products/:id/send-to-supplier", sendToSupplierHandler(logger))
		v1.POST("/products/:id/receive", receiveProductHandler(logger))
		v1.POST("/products/:id/shipping-info", updateShippingInfoHandler(logger))
		v1.POST("/products/:id/send-to-retailer", sendToRetailerHandler(logger))
		v1.POST("/products/:id/receive-from-supplier", receiveFromSupplierHandler(logger))
		v1.POST("/products/:id/add-to-store", addToStoreHandler(logger))
		v1.POST("/products/:id/sell", sellToConsumerHandler(logger))

		// Quotations.
		v1.POST("/quotations", createQuotationHandler(logger))
		v1.POST("/quotation-approvals", approveQuotationsHandler(logger))
		v1.POST("/quotations/:id/reject", rejectQuotationHandler(logger))
		v1.POST("/products/:id/fulfill", fulfillQuotationsHandler(logger))

		// Surplus purchase + acknowledgement.
		v1.POST("/products/:id/purchase", purchaseFromSurplusHandler(logger))
		v1.POST("/products/:id/acknowledge", acknowledgePurchaseHandler(logger))

		// Reads.
		v1.GET("/products/:id", getProductHandler(logger))
		v1.GET("/products/:id/extended", getProductExtendedHandler(logger))
		v1.GET("/products/:id/quotations", getProductQuotationsHandler(logger))
		v1.GET("/products/:id/events", getProductEventsHandler(logger))
		v1.GET("/products/:id/purchases/:address", getConsumerPurchaseHandler(logger))
		v1.GET("/product-count", productCountHandler(logger))
		v1.GET("/available-products", getAvailableProductsByNameHandler(logger))
		v1.GET("/retailers/:address/store-products", getRetailerStoreProductsHandler(logger))
		v1.GET("/quotations/:id", getQuotationHandler(logger))
		v1.GET("/consumers/:address/quotations", getConsumerQuotationsHandler(logger))
		v1.GET("/pending-quotations", getPendingQuotationsHandler(logger))
		v1.GET("/events", getLedgerEventsHandler(logger))
	}

	r.NoRoute(customNotFoundHandler)

	// Start listening immediately (startup probe is TCP based).
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		// ListenAndServe returns http.ErrServerClosed on graceful shutdown.
		serverErrCh <- srv.ListenAndServe()
	}()

	// Connect dependencies after the port is open.
	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()

	// Now DB is ready; run migrations.
	db := config.GetDB()
	sqlDB, _ := db.DB()
	defer func() {
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	}()
	// IMPORTANT: AutoMigrate can run DDL that blocks tables and causes 504/502 timeouts.
	// Allow disabling migrations on startup (run them as a separate job instead).
	if !strings.EqualFold(strings.TrimSpace(os.Getenv("SKIP_MIGRATIONS")), "true") {
		models.MigrateTable()
	} else {
		logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
	}

	// Optional owner bootstrap for fresh deploys.
	if addr := strings.TrimSpace(os.Getenv("BOOTSTRAP_OWNER_ADDRESS")); addr != "" {
		if _, err := models.EnsureBootstrapOwner(context.Background(), addr); err != nil {
			config.LogError(logger, "server.go", "main", "EnsureBootstrapOwner", addr, err)
		}
	}

	// Start event dispatcher (delivers AFTER commit).
	dispatcherCtx, cancelDispatcher := context.WithCancel(context.Background())
	defer cancelDispatcher()
	go workflow.NewEventDispatcher(db, logger, nil).Run(dispatcherCtx)

	// Set the session isolation level to READ COMMITTED
	for attempt := 1; ; attempt++ {
		err := db.Exec("SET SESSION TRANSACTION ISOLATION LEVEL READ COMMITTED").Error
		if err == nil {
			break
		}
		sleep := time.Second * time.Duration(1<<minInt(attempt, 5))
		if sleep > 30*time.Second {
			sleep = 30 * time.Second
		}
		logger.WithFields(logrus.Fields{
			"field":   "database",
			"attempt": attempt,
		}).Warn("failed to set isolation level; retrying in " + sleep.String() + ": " + err.Error())
		time.Sleep(sleep)
	}

	logger.WithFields(logrus.Fields{
		"info": "Connection Established",
	}).Info("listening on http://localhost:", port, "/")

	// Block until shutdown or server error.
	select {
	case <-sigCtx.Done():
		// graceful shutdown below
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "http"}).Error("server stopped unexpectedly: " + err.Error())
		}
	}

	// Stop background workers first so they don't start new work while we're draining.
	cancelDispatcher()

	// Drain HTTP requests.
	shutdownTimeout := 30 * time.Second
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "http"}).Error("graceful shutdown failed: " + err.Error())
	}

	// Close Redis (best-effort).
	if rdb := config.GetRedisDB(); rdb != nil {
		_ = rdb.Close()
	}
}

// customErrorLogger is a custom Gin middleware that logs only errors
func customErrorLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		// Only log when there are errors
		if len(c.Errors) > 0 {
			logger.Error(c.Errors.String())
		}
	}
}

// Initialize a new RateLimiter instance.
func NewRateLimiter(client *redis.Client, limit int64, window time.Duration) *RateLimiter {
	return &RateLimiter{
		client: client,
		limit:  limit,
		window: window,
	}
}

// Middleware function to check rate limits.
func (rl *RateLimiter) RateLimitMiddleware(c *gin.Context) {
	// Get the IP address or user identifier from the request.
	key := c.ClientIP()

	// Check if the key exists in Redis.
	exists, err := rl.client.Exists(c.Request.Context(), key).Result()
	if err != nil {
		c.AbortWithError(http.StatusInternalServerError, err)
		return
	}

	// If the key doesn't exist, create it and set expiry.
	if exists == 0 {
		err := rl.client.Set(c.Request.Context(), key, 1, rl.window).Err()
		if err != nil {
			c.AbortWithError(http.StatusInternalServerError, err)
			return
		}
		c.Next()
		return
	}

	// If the key exists, get the current count.
	count, err := rl.client.Incr(c.Request.Context(), key).Result()
	if err != nil {
		c.AbortWithError(http.StatusInternalServerError, err)
		return
	}

	// If the count exceeds the limit, return an error response.
	if count > rl.limit {
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error": fmt.Sprintf("Rate limit exceeded. Try again in %d seconds", int(rl.window.Seconds())),
		})
		return
	}

	c.Next()
}

func splitAndTrim(csv string) []string {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
