package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/beehive-lane/honeyshop-api/config"
	"github.com/beehive-lane/honeyshop-api/controllers"
	"github.com/beehive-lane/honeyshop-api/metrics"
	"github.com/beehive-lane/honeyshop-api/middleware"
	"github.com/beehive-lane/honeyshop-api/models"
	"github.com/beehive-lane/honeyshop-api/services"
	"github.com/beehive-lane/honeyshop-api/utils"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	config.SetConfig(cfg)
	config.SetupLogger(cfg)

	logrus.WithField("env", cfg.GoEnv).Info("Starting Honey Shop API server...")

	if err := config.ConnectDatabase(); err != nil {
		logrus.WithError(err).Fatal("Failed to connect to database")
	}

	db := config.GetDB()
	if err := db.AutoMigrate(models.All()...); err != nil {
		logrus.WithError(err).Fatal("Failed to migrate database")
	}
	logrus.Info("Database migration completed successfully")

	closeServices := initServices(cfg)
	defer closeServices()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	stopCleanup := make(chan struct{})
	loginLimiter := middleware.NewRateLimiter(cfg.LoginRatePerMinute)
	loginLimiter.StartCleanup(10*time.Minute, 10000, stopCleanup)
	defer close(stopCleanup)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           setupRouter(cfg, loginLimiter),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logrus.WithField("port", cfg.Port).Info("Server is running")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithError(err).Fatal("Failed to start server")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logrus.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Error("Server shutdown error")
	}
}

// initServices wires the storage, messaging and token backends chosen by the
// configuration and returns a function that releases them.
func initServices(cfg *config.Config) func() {
	var closers []func()

	if cfg.RedisURL != "" {
		store, err := services.NewRedisSessionStore(cfg.RedisURL, cfg.SessionTTL)
		if err != nil {
			logrus.WithError(err).Fatal("Failed to connect to Redis")
		}
		services.SetSessionStore(store)
		closers = append(closers, func() { _ = store.Close() })
	} else {
		logrus.Warn("REDIS_URL not set, session carts are kept in memory")
		store := services.NewMemorySessionStore(cfg.SessionTTL)
		stopCleanup := make(chan struct{})
		store.StartCleanup(10*time.Minute, stopCleanup)
		services.SetSessionStore(store)
		closers = append(closers, func() { close(stopCleanup) })
	}

	if cfg.RabbitMQURL != "" {
		publisher, err := services.NewAMQPPublisher(cfg.RabbitMQURL, cfg.RabbitMQExchange)
		if err != nil {
			logrus.WithError(err).Fatal("Failed to connect to RabbitMQ")
		}
		services.SetPublisher(publisher)
		closers = append(closers, publisher.Close)
	} else {
		services.SetPublisher(nil)
	}

	utils.UploadDir = cfg.UploadDir
	if cfg.UsesS3() {
		s3Service, err := services.InitS3Service(cfg)
		if err != nil {
			logrus.WithError(err).Fatal("Failed to initialize S3")
		}
		services.InitImageService(s3Service)
	} else {
		services.InitLocalImageService(cfg.UploadDir)
	}

	services.InitTokenService(cfg)
	utils.RegisterValidators()

	return func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
}

func corsConfig(cfg *config.Config) cors.Config {
	corsCfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.SessionHeader},
		ExposeHeaders: []string{"Content-Length", middleware.SessionHeader},
		MaxAge:        12 * time.Hour,
	}

	for _, origin := range cfg.CORSAllowedOrigins {
		if origin == "*" {
			corsCfg.AllowAllOrigins = true
			return corsCfg
		}
	}
	if len(cfg.CORSAllowedOrigins) == 0 {
		corsCfg.AllowAllOrigins = true
		return corsCfg
	}

	corsCfg.AllowOrigins = cfg.CORSAllowedOrigins
	corsCfg.AllowCredentials = true
	return corsCfg
}

// setupRouter builds the full HTTP surface
func setupRouter(cfg *config.Config, loginLimiter *middleware.RateLimiter) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger(), metrics.Middleware(), cors.New(corsConfig(cfg)))

	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	session := middleware.Session(cfg.SessionTTL, cfg.IsProduction())
	requireToken := middleware.EnsureValidToken(cfg)

	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", healthCheck)
		v1.GET("/database/status", databaseStatus)

		v1.GET("/products", controllers.ListProducts)
		v1.GET("/products/:id", controllers.GetProduct)
		v1.GET("/uploads/:filename", controllers.GetUploadedImage)

		sessionCart := v1.Group("/session/cart", session)
		{
			sessionCart.GET("", controllers.GetSessionCart)
			sessionCart.DELETE("", controllers.ClearSessionCart)
			sessionCart.POST("/:product_id", controllers.AddToSessionCart)
			sessionCart.DELETE("/:product_id", controllers.RemoveFromSessionCart)
		}

		auth := v1.Group("/auth", session, loginLimiter.Handler())
		{
			auth.POST("/register", controllers.Register)
			auth.POST("/login", controllers.Login)
		}

		users := v1.Group("/users", requireToken)
		{
			users.GET("/me", controllers.GetMyProfile)
			users.PUT("/me", controllers.UpdateMyProfile)
		}

		cart := v1.Group("/cart", requireToken)
		{
			cart.GET("", controllers.GetCart)
			cart.POST("/items/:product_id", controllers.AddCartItem)
			cart.DELETE("/items/:product_id", controllers.RemoveCartItem)
			cart.PUT("/items/:product_id/:direction", controllers.ChangeCartItemQuantity)
		}

		orders := v1.Group("/orders", requireToken)
		{
			orders.GET("/form", controllers.GetOrderForm)
			orders.POST("", controllers.CreateOrder)
			orders.GET("", controllers.ListOrders)
			orders.GET("/:number", controllers.GetOrder)
		}

		admin := v1.Group("/admin", requireToken, middleware.RequireRole(models.RoleAdmin))
		{
			admin.POST("/products", controllers.CreateProduct)
			admin.PATCH("/products/:id", controllers.UpdateProduct)
			admin.GET("/orders", controllers.ListAllOrders)
			admin.PATCH("/orders/:number/status", controllers.UpdateOrderStatus)
			admin.PATCH("/profiles/:user_id/verify", controllers.VerifyProfile)
		}
	}

	return router
}

// healthCheck handles the health check endpoint
func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Honey Shop API is running",
	})
}

// databaseStatus checks database connectivity and returns table information
func databaseStatus(c *gin.Context) {
	db := config.GetDB()
	if db == nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": "Database is not initialized",
			},
		})
		return
	}

	sqlDB, err := db.DB()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": "Failed to get database instance",
			},
		})
		return
	}

	if err := sqlDB.PingContext(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_CONNECTION_ERROR",
				"message": "Database connection failed",
			},
		})
		return
	}

	tables, err := db.Migrator().GetTables()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_QUERY_ERROR",
				"message": "Failed to query tables",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Database connected",
		"dialect": db.Dialector.Name(),
		"tables":  tables,
	})
}
