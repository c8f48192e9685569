package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/lankaconnect/events-backend/config"
	"github.com/lankaconnect/events-backend/database"
	"github.com/lankaconnect/events-backend/internal/auditlog"
	"github.com/lankaconnect/events-backend/internal/event"
	"github.com/lankaconnect/events-backend/internal/notification"
	"github.com/lankaconnect/events-backend/internal/payments"
	"github.com/lankaconnect/events-backend/internal/reports"
	"github.com/lankaconnect/events-backend/internal/ticket"
	"github.com/lankaconnect/events-backend/internal/user"
	"github.com/lankaconnect/events-backend/utils"
)

// checkoutSweepInterval is how often expired preliminary registrations are
// abandoned to release their seats.
const checkoutSweepInterval = 10 * time.Minute

func main() {
	cfg := config.Load()
	db := database.Connect(cfg)

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("logger init failed: %v", err)
	}
	defer logger.Sync()

	if err := utils.InitRedis(cfg); err != nil {
		logger.Fatal("redis init failed", zap.Error(err))
	}
	utils.InitializeKafka(cfg)
	defer utils.CloseKafka()

	if err := db.AutoMigrate(
		&event.Event{},
		&event.Registration{},
		&event.SignUpList{},
		&event.SignUpItem{},
		&event.Commitment{},
		&user.User{},
		&ticket.Ticket{},
		&auditlog.AuditLog{},
	); err != nil {
		logger.Fatal("database migration failed", zap.Error(err))
	}

	// Repositories
	eventRepo := event.NewRepository(db)
	userRepo := user.NewRepository(db)
	ticketRepo := ticket.NewRepository(db)
	auditRepo := auditlog.NewRepository(db)

	// Services
	auditSvc := auditlog.NewService(auditRepo)
	ticketSvc := ticket.NewService(ticketRepo, logger)
	checkoutSvc := payments.NewCheckoutService(cfg)
	revenueCalc := payments.NewRevenueCalculator(cfg.PlatformCommissionRate)
	emailSender := notification.NewEmailSender(logger)
	summaryCache := event.NewSummaryCache(utils.RedisClient)
	exporter := reports.NewExporter()

	eventSvc := event.NewService(
		eventRepo,
		userRepo,
		checkoutSvc,
		revenueCalc,
		ticketSvc,
		emailSender,
		auditSvc,
		event.LockerFunc(utils.WithEventLock),
		summaryCache,
		exporter,
		logger,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Notification consumer drains the registration stream.
	consumer := notification.NewConsumer(utils.NewRegistrationReader(cfg), eventRepo, ticketSvc, emailSender, logger)
	go func() {
		if err := consumer.Run(ctx); err != nil {
			logger.Error("notification consumer stopped", zap.Error(err))
		}
	}()
	defer consumer.Close()

	// Sweep expired checkouts so abandoned preliminary registrations
	// release their seats.
	go func() {
		ticker := time.NewTicker(checkoutSweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := eventSvc.AbandonExpiredCheckouts(ctx); err != nil {
					logger.Error("checkout sweep failed", zap.Error(err))
				}
			}
		}
	}()

	logger.Info("events backend started")
	<-ctx.Done()
	logger.Info("shutting down")
}
