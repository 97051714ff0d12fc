package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/VanitasCaesar1/clinic/cache"
	"github.com/VanitasCaesar1/clinic/config"
	"github.com/VanitasCaesar1/clinic/handlers"
	"github.com/VanitasCaesar1/clinic/media"
	"github.com/VanitasCaesar1/clinic/middleware"
	"github.com/VanitasCaesar1/clinic/payments"
	"github.com/VanitasCaesar1/clinic/realtime"
	"github.com/VanitasCaesar1/clinic/services"
	"github.com/VanitasCaesar1/clinic/store"
	"github.com/VanitasCaesar1/clinic/store/memstore"
	"github.com/VanitasCaesar1/clinic/store/mongostore"
	"github.com/VanitasCaesar1/clinic/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
	"go.uber.org/zap"
)

const maxRetries = 5

type App struct {
	Fiber  *fiber.App
	Store  store.Store
	Redis  *redis.Client
	Broker *realtime.RedisBroker
	Hub    *realtime.Hub
	Tokens *utils.JwtTokenGenerator
	Images media.Uploader
	Gate   payments.Gateway
	Ctx    context.Context
	Config *config.Config
	Logger *zap.Logger
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.IsDevelopment() {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func connectStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (store.Store, error) {
	if cfg.StoreDriver == config.StoreDriverMemory {
		logger.Warn("using in-memory store, data is lost on restart")
		return memstore.New(), nil
	}

	var client *mongo.Client
	var err error
	for i := 0; i < maxRetries; i++ {
		client, err = mongo.Connect(options.Client().ApplyURI(cfg.MongoDBURL))
		if err == nil {
			pingCtx, cancel := context.WithTimeout(ctx, cfg.StoreTimeout)
			err = client.Ping(pingCtx, readpref.Primary())
			cancel()
			if err == nil {
				break
			}
			client.Disconnect(ctx)
		}
		logger.Warn("failed to connect to mongodb, retrying...",
			zap.Error(err),
			zap.Int("attempt", i+1))
		time.Sleep(time.Second * time.Duration(i+1))
	}
	if err != nil {
		return nil, fmt.Errorf("mongodb connection failed after %d attempts: %v", maxRetries, err)
	}

	st := mongostore.New(client, cfg.MongoDBName, logger)
	indexCtx, cancel := context.WithTimeout(ctx, cfg.StoreTimeout)
	defer cancel()
	if err := st.EnsureIndexes(indexCtx); err != nil {
		return nil, fmt.Errorf("failed to create indexes: %v", err)
	}
	return st, nil
}

func connectRedis(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*redis.Client, error) {
	redisOpt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("redis URL parsing failed: %v", err)
	}

	redisClient := redis.NewClient(redisOpt)
	for i := 0; i < maxRetries; i++ {
		_, err = redisClient.Ping(ctx).Result()
		if err == nil {
			break
		}
		logger.Warn("failed to connect to redis, retrying...",
			zap.Error(err),
			zap.Int("attempt", i+1))
		time.Sleep(time.Second * time.Duration(i+1))
	}
	if err != nil {
		return nil, fmt.Errorf("redis connection failed after %d attempts: %v", maxRetries, err)
	}
	return redisClient, nil
}

// connectImages returns the object store for uploads, or a disabled one when
// no MinIO endpoint is configured.
func connectImages(ctx context.Context, cfg *config.Config, logger *zap.Logger) (media.Uploader, error) {
	if cfg.MinioEndpoint == "" {
		logger.Warn("MINIO_ENDPOINT not set, image uploads are disabled")
		return media.Disabled{}, nil
	}
	minioClient, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: cfg.MinioUseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize minio client: %v", err)
	}

	images := media.NewMinioStore(minioClient, cfg.MinioPublicURL, logger)
	if err := images.EnsureBuckets(ctx); err != nil {
		logger.Error("failed to prepare buckets", zap.Error(err))
	}
	return images, nil
}

func NewApp() (*App, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %v", err)
	}

	ctx := context.Background()

	logger, err := newLogger(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %v", err)
	}

	st, err := connectStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	redisClient, err := connectRedis(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	images, err := connectImages(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	var gateway payments.Gateway = payments.Disabled{}
	if cfg.RazorpayKeyID != "" && cfg.RazorpayKeySecret != "" {
		gateway = payments.NewRazorpay(cfg.RazorpayKeyID, cfg.RazorpayKeySecret, cfg.Currency)
	} else {
		logger.Warn("razorpay keys not set, online payments are disabled")
	}

	hub := realtime.NewHub(logger)
	broker := realtime.NewRedisBroker(redisClient, hub, logger)
	if err := broker.Start(ctx); err != nil {
		return nil, err
	}

	fiberApp := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			logger.Error("request error",
				zap.Error(err),
				zap.String("path", c.Path()),
				zap.Int("status", code))
			return c.Status(code).JSON(fiber.Map{
				"success": false,
				"message": err.Error(),
			})
		},
		BodyLimit:    8 * 1024 * 1024,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 10,
	})

	fiberApp.Use(middleware.RecoveryMiddleware(logger))

	fiberApp.Use(cors.New(cors.Config{
		AllowOrigins: cfg.AllowedOrigins,
		AllowMethods: "GET,POST,HEAD,PUT,DELETE,PATCH,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, token, dtoken, atoken",
		MaxAge:       300,
	}))

	fiberApp.Use(middleware.MetricsMiddleware())

	// Request logging middleware
	fiberApp.Use(func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		duration := time.Since(start)

		logger.Info("request completed",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.String("ip", c.IP()),
			zap.Duration("duration", duration),
			zap.Int("status", c.Response().StatusCode()),
		)
		return err
	})

	return &App{
		Fiber:  fiberApp,
		Store:  st,
		Redis:  redisClient,
		Broker: broker,
		Hub:    hub,
		Tokens: utils.NewJwtTokenGenerator(redisClient, cfg.JWTSecret, cfg.TokenTTL),
		Images: images,
		Gate:   gateway,
		Ctx:    ctx,
		Config: cfg,
		Logger: logger,
	}, nil
}

func (a *App) setupRoutes() {
	admin := services.AdminCredentials{Email: a.Config.AdminEmail, Password: a.Config.AdminPassword}
	if admin.Email == "" || admin.Password == "" {
		a.Logger.Warn("ADMIN_EMAIL or ADMIN_PASSWORD not set, admin login is disabled")
	}

	doctorCache := cache.NewCache(a.Redis, "doctors:").WithLogger(a.Logger)
	accounts := services.NewAccountService(a.Store, a.Tokens, doctorCache, a.Images, admin, a.Logger)
	booking := services.NewBookingService(a.Store, a.Gate, doctorCache, a.Logger)
	chat := services.NewChatService(a.Store, a.Broker, a.Logger)
	pharmacy := services.NewPharmacyService(a.Store, a.Images, a.Logger)
	orders := services.NewOrderService(a.Store, a.Gate, utils.NewReceiptGenerator("med_"), a.Logger)

	timeout := a.Config.StoreTimeout
	handlers.Routes{
		User:     handlers.NewUserHandler(accounts, booking, a.Logger, timeout),
		Doctor:   handlers.NewDoctorHandler(accounts, booking, a.Logger, timeout),
		Admin:    handlers.NewAdminHandler(accounts, booking, a.Logger, timeout),
		Message:  handlers.NewMessageHandler(chat, a.Logger, timeout),
		Pharmacy: handlers.NewPharmacyHandler(pharmacy, a.Logger, timeout),
		Order:    handlers.NewOrderHandler(orders, a.Logger, timeout),
		Tokens:   a.Tokens,
		Logger:   a.Logger,
	}.Mount(a.Fiber)

	socket := realtime.NewSocketHandler(a.Hub, chat, a.Tokens, a.Logger)
	a.Fiber.Use("/ws", socket.Upgrade())
	a.Fiber.Get("/ws", socket.Handle())

	a.Fiber.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	a.Fiber.Get("/healthz", func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		if err := a.Store.Ping(ctx); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"success": false, "message": "store unavailable"})
		}
		if err := a.Redis.Ping(ctx).Err(); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"success": false, "message": "redis unavailable"})
		}
		return c.JSON(fiber.Map{"success": true})
	})
}

func (a *App) Start() error {
	// Setup graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	a.setupRoutes()

	go func() {
		if err := a.Fiber.Listen(":" + a.Config.ServerPort); err != nil {
			a.Logger.Fatal("failed to start server",
				zap.Error(err),
				zap.String("port", a.Config.ServerPort))
		}
	}()

	a.Logger.Info("server started",
		zap.String("port", a.Config.ServerPort),
		zap.String("environment", a.Config.Environment),
		zap.String("store", a.Config.StoreDriver))

	<-sigChan
	a.Logger.Info("shutting down server...")

	if err := a.Fiber.Shutdown(); err != nil {
		a.Logger.Error("error during server shutdown",
			zap.Error(err))
	}
	if err := a.Broker.Close(); err != nil {
		a.Logger.Error("error closing chat broker", zap.Error(err))
	}
	closeCtx, cancel := context.WithTimeout(a.Ctx, 5*time.Second)
	defer cancel()
	if err := a.Store.Close(closeCtx); err != nil {
		a.Logger.Error("error closing store", zap.Error(err))
	}
	if err := a.Redis.Close(); err != nil {
		a.Logger.Error("error closing redis connection",
			zap.Error(err))
	}
	if err := a.Logger.Sync(); err != nil {
		log.Printf("error syncing logger: %v", err)
	}

	return nil
}

func main() {
	app, err := NewApp()
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	if err := app.Start(); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}
