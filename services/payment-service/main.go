package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	aws_pkg "github.com/PraiaOps/PraiAtiva-sub001/pkg/aws"
	dynamopkg "github.com/PraiaOps/PraiAtiva-sub001/pkg/dynamodb"
	"github.com/PraiaOps/PraiAtiva-sub001/services/common/auth"
	apperrors "github.com/PraiaOps/PraiAtiva-sub001/services/common/errors"
	"github.com/PraiaOps/PraiAtiva-sub001/services/common/logger"
	commonmw "github.com/PraiaOps/PraiAtiva-sub001/services/common/middleware"
	"github.com/PraiaOps/PraiAtiva-sub001/services/payment-service/config"
	"github.com/PraiaOps/PraiAtiva-sub001/services/payment-service/controllers"
	"github.com/PraiaOps/PraiAtiva-sub001/services/payment-service/middleware"
	"github.com/PraiaOps/PraiAtiva-sub001/services/payment-service/repository"
	"github.com/PraiaOps/PraiAtiva-sub001/services/payment-service/routes"
	"github.com/PraiaOps/PraiAtiva-sub001/services/payment-service/services"
	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

const serviceName = "payment-service"

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("[PaymentService] Failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// AWS clients
	awsCfg, awsErr := aws_pkg.LoadAWSConfig(ctx)
	awsReady := awsErr == nil

	var cwWriter *aws_pkg.CloudWatchLogsClient
	if awsReady && cfg.CloudWatchLogs {
		if cwWriter, err = aws_pkg.NewCloudWatchLogsClient(ctx, awsCfg, cfg.LogGroup, serviceName); err != nil {
			log.Printf("[PaymentService] CloudWatch Logs disabled: %v", err)
			cwWriter = nil
		}
	}
	logOpts := logger.Options{Env: cfg.Env, FilePath: cfg.LogFile}
	if cwWriter != nil {
		logOpts.CloudWatch = cwWriter
	}
	zlog, err := logger.New(logOpts)
	if err != nil {
		log.Fatalf("[PaymentService] Failed to initialize logger: %v", err)
	}
	defer zlog.Sync() //nolint:errcheck

	if !awsReady {
		zlog.Warn("AWS config unavailable, SNS/SQS/S3/metrics disabled", zap.Error(awsErr))
	}

	if awsReady && cfg.UseSecretsManager {
		if err := cfg.ApplySecrets(ctx, aws_pkg.NewSecretsClient(awsCfg)); err != nil {
			zlog.Fatal("Failed to load secrets", zap.Error(err))
		}
	}
	if err := cfg.Validate(); err != nil {
		zlog.Fatal("Invalid configuration", zap.Error(err))
	}

	store, closeStore, err := openStore(ctx, cfg, awsCfg, awsReady, zlog)
	if err != nil {
		zlog.Fatal("Failed to open document store", zap.Error(err), zap.String("driver", cfg.StoreDriver))
	}
	defer closeStore()

	var (
		snsClient aws_pkg.SNSPublisher
		metrics   *aws_pkg.MetricsClient
	)
	ledgerOpts := []services.LedgerOption{}
	if awsReady {
		metrics = aws_pkg.NewMetricsClient(awsCfg, cfg.MetricsNamespace, cfg.MetricsEnabled)
		if cfg.PaymentSNSTopicARN != "" {
			snsClient = aws_pkg.NewSNSClient(awsCfg)
			ledgerOpts = append(ledgerOpts, services.WithEventPublisher(snsClient, cfg.PaymentSNSTopicARN))
		}
		if cfg.ReceiptsBucket != "" {
			ledgerOpts = append(ledgerOpts, services.WithReceiptStore(aws_pkg.NewS3ObjectStore(awsCfg, cfg.ReceiptsBucket)))
		}
		if cfg.MetricsEnabled {
			ledgerOpts = append(ledgerOpts, services.WithLedgerMetrics(metrics))
		}
	}

	// Processor + DI chain
	stripeSvc := services.NewStripeService(cfg.StripeSecretKey, cfg.StripeWebhookKey)
	paymentSvc := services.NewPaymentService(store, stripeSvc, cfg.Currency, zlog)
	sessionSvc := services.NewSessionService(store, stripeSvc, cfg.AppBaseURL, cfg.Currency, zlog)
	ledgerSvc := services.NewLedgerService(store, zlog, ledgerOpts...)
	webhookSvc := services.NewWebhookService(stripeSvc, ledgerSvc, zlog)
	if metrics != nil && metrics.IsEnabled() {
		sessionSvc.WithMetrics(metrics)
		webhookSvc.WithMetrics(metrics)
	}

	if awsReady && cfg.PaymentRequestQueueURL != "" {
		consumer := services.NewPaymentRequestConsumer(
			aws_pkg.NewSQSConsumer(awsCfg, cfg.PaymentRequestQueueURL, zlog),
			snsClient,
			cfg.PaymentSNSTopicARN,
			paymentSvc,
			sessionSvc,
			zlog,
		)
		if metrics != nil && metrics.IsEnabled() {
			consumer.WithMetrics(metrics)
		}
		// Start consuming payment requests in the background
		go consumer.Start(ctx)
	}

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(commonmw.RequestID())
	r.Use(commonmw.RequestLogger(zlog))
	r.Use(commonmw.SecurityHeaders())
	if len(cfg.AllowedOrigins) > 0 {
		r.Use(commonmw.CORSMiddleware(cfg.AllowedOrigins))
	}
	r.Use(commonmw.MetricsMiddleware(metrics, serviceName))
	r.Use(apperrors.ErrorMiddleware())

	pc := &controllers.PaymentController{
		Sessions:      sessionSvc,
		Payments:      paymentSvc,
		Ledger:        ledgerSvc,
		Webhooks:      webhookSvc,
		Logger:        zlog,
		ReceiptExpiry: cfg.ReceiptURLExpiry,
	}
	routes.RegisterPaymentRoutes(r, pc, routes.Options{
		Auth:           middleware.AuthMiddleware(auth.NewTokenVerifier(cfg.JWTSecret), cfg.TrustGatewayHeaders),
		SessionLimiter: commonmw.RateLimitMiddleware(cfg.SessionRatePerMin, cfg.SessionRateBurst),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatal("Server failed", zap.Error(err))
		}
	}()

	zlog.Info("Payment service started", zap.String("port", cfg.Port), zap.String("store", cfg.StoreDriver))
	<-ctx.Done()
	zlog.Info("Shutting down payment service...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Error("Server forced to shutdown", zap.Error(err))
	}
	zlog.Info("Server exited cleanly")
}

// openStore builds the repository selected by STORE_DRIVER.
func openStore(ctx context.Context, cfg *config.Config, awsCfg sdkaws.Config, awsReady bool, zlog *zap.Logger) (repository.Store, func(), error) {
	switch cfg.StoreDriver {
	case config.StoreMemory:
		zlog.Warn("Using in-memory store; data is lost on restart")
		return repository.NewMemoryStore(), func() {}, nil

	case config.StoreMongo:
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
		if err != nil {
			return nil, nil, err
		}
		pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx, nil); err != nil {
			return nil, nil, err
		}
		adapter := repository.NewMongoAdapter(client, client.Database(cfg.MongoDatabase))
		if err := adapter.EnsureIndexes(ctx); err != nil {
			zlog.Warn("Failed to ensure Mongo indexes", zap.Error(err))
		}
		closer := func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = client.Disconnect(closeCtx)
		}
		return adapter, closer, nil

	default:
		if !awsReady {
			return nil, nil, errors.New("dynamodb store requires AWS configuration")
		}
		client := dynamopkg.NewClientFromConfig(awsCfg)
		if cfg.EnsureTables {
			err := dynamopkg.EnsureTables(ctx, client,
				dynamopkg.TableSpec{Name: cfg.PaymentsTable, HashKey: "payment_id"},
				dynamopkg.TableSpec{
					Name:    cfg.TransactionsTable,
					HashKey: "transaction_id",
					Indexes: map[string]string{repository.EnrollmentIndex: "enrollment_id"},
				},
			)
			if err != nil {
				return nil, nil, err
			}
		}
		return repository.NewDynamoAdapter(client, cfg.PaymentsTable, cfg.TransactionsTable), func() {}, nil
	}
}
