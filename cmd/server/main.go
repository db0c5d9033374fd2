package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"

	"storefront-checkout-service/internal/cache"
	"storefront-checkout-service/internal/catalog"
	"storefront-checkout-service/internal/config"
	"storefront-checkout-service/internal/controller"
	"storefront-checkout-service/internal/logging"
	"storefront-checkout-service/internal/payment"
	"storefront-checkout-service/internal/rabbit"
	"storefront-checkout-service/internal/repository"
	"storefront-checkout-service/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("configuración inválida", "error", err)
		os.Exit(1)
	}
	log := logging.Init("storefront-checkout", cfg.LogFile, cfg.LogLevel)
	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Conexión a MongoDB
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	db, err := repository.ConnectMongoDB(connectCtx, cfg.Mongo.URI, cfg.Mongo.DBName)
	cancel()
	if err != nil {
		log.Error("Error conectando a MongoDB", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Client().Disconnect(context.Background()) }()

	cartRepo := repository.NewMongoCartRepository(db)
	orderRepo := repository.NewMongoOrderRepository(db)
	if err := repository.EnsureIndexes(ctx, cartRepo, orderRepo); err != nil {
		log.Error("Error creando índices", "error", err)
		os.Exit(1)
	}

	// Redis guarda la cache de carritos y las claves de idempotencia; sin él ambas degradan.
	rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Warn("Redis no responde, se sigue sin cache", "addr", cfg.Redis.Addr, "error", err)
	}

	// Conexión a RabbitMQ (opcional): sin ella no se publican eventos y las
	// capturas llegan solo por HTTP.
	var (
		events service.EventPublisher
		amqp   *amqp091.Connection
	)
	if cfg.Rabbit.URL != "" {
		amqp, err = amqp091.Dial(cfg.Rabbit.URL)
		if err != nil {
			log.Error("Error conectando a RabbitMQ", "error", err)
			os.Exit(1)
		}
		defer amqp.Close()

		pubCh, err := amqp.Channel()
		if err != nil {
			log.Error("Error creando canal en RabbitMQ", "error", err)
			os.Exit(1)
		}
		pub, err := rabbit.NewPublisher(pubCh, cfg.Rabbit.OrderExchange)
		if err != nil {
			log.Error("Error creando publisher en RabbitMQ", "error", err)
			os.Exit(1)
		}
		events = pub
	} else {
		log.Warn("rabbit.url vacío, no se publican eventos de órdenes")
	}

	var gw payment.Gateway
	switch cfg.Gateway.Driver {
	case "http":
		gw = payment.NewHTTPGateway(cfg.Gateway.URL, cfg.Gateway.ClientID, cfg.Gateway.ClientSecret)
	default:
		log.Warn("usando gateway de pagos en memoria")
		gw = payment.NewMockGateway(0)
	}

	products := catalog.NewClient(cfg.Catalog.URL, cfg.Catalog.Timeout)
	authService := service.NewAuthService(cfg.Identity.URL, cfg.Identity.Timeout)

	ledger := service.NewOrderLedger(orderRepo, events)
	carts := service.NewCartService(cartRepo, cache.NewRedisCartCache(rdb, cfg.Redis.CartTTL), products)
	checkout := service.NewCheckoutService(ledger, carts, products, gw,
		cache.NewRedisIdempotencyStore(rdb, cfg.Redis.IdemTTL),
		service.CheckoutOptions{
			GatewayTimeout: cfg.Gateway.Timeout,
			ReturnURL:      cfg.Gateway.ReturnURL,
			CancelURL:      cfg.Gateway.CancelURL,
		})
	capture := service.NewCaptureService(ledger, carts, gw, cfg.Gateway.Timeout)

	if amqp != nil {
		subCh, err := amqp.Channel()
		if err != nil {
			log.Error("Error creando canal en RabbitMQ", "error", err)
			os.Exit(1)
		}
		consumerLog := logging.New("payment-consumer")
		err = rabbit.SetupConsumers(subCh, rabbit.ConsumerConfig{
			Exchange: cfg.Rabbit.PaymentExchange,
			Queue:    cfg.Rabbit.CaptureQueue,
		}, rabbit.NewPaymentApprovedConsumer(capture, consumerLog), consumerLog)
		if err != nil {
			log.Error("Error creando consumer en RabbitMQ", "error", err)
			os.Exit(1)
		}
	}

	r := controller.NewRouter(controller.RouterConfig{
		Logger:      log,
		Auth:        authService,
		CORSOrigins: cfg.CORSOrigins,
		Ready: func(ctx context.Context) error {
			return db.Client().Ping(ctx, nil)
		},
		Optional: map[string]func(ctx context.Context) error{
			"redis": func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		},
	}, controller.Handlers{
		Cart:     controller.NewCartController(carts),
		Checkout: controller.NewCheckoutController(checkout, capture),
		Orders:   controller.NewOrderController(ledger),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("Storefront Checkout Service ejecutándose", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("el servidor se detuvo", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("apagando")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("falló el apagado ordenado", "error", err)
	}
}
