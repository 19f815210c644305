package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/theheadmen/phonemart/internal/dbconnector"
	"github.com/theheadmen/phonemart/internal/logger"
	"github.com/theheadmen/phonemart/internal/notifier"
	"github.com/theheadmen/phonemart/internal/rules"
	"github.com/theheadmen/phonemart/internal/server"
	"github.com/theheadmen/phonemart/internal/serverconfig"
	"github.com/theheadmen/phonemart/internal/service"
)

func main() {
	configStore := serverconfig.NewConfigStore()
	configStore.ParseFlags()

	zaplog, err := logger.NewZapLog(configStore.FlagLogLevel)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer zaplog.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := dbconnector.OpenDBConnect(configStore.FlagDatabase)
	if err != nil {
		zaplog.Fatal("Failed to connect to database", zap.Error(err))
	}
	if err := db.DBInitialize(); err != nil {
		zaplog.Fatal("Failed to initialize database", zap.Error(err))
	}

	emailNotifier := notifier.NewEmailNotifier(
		configStore.FlagEmailAPIURL,
		configStore.FlagEmailAPIKey,
		configStore.FlagEmailFrom,
	)

	svc := service.NewService(db, rules.Default(), zaplog, emailNotifier)
	ls := server.NewServerSystem(db, svc, zaplog, configStore.FlagBaseURL)
	srv := ls.MakeServer(configStore.FlagRunAddr)

	// Созревание кешбека и так прогоняется на каждом чтении баланса,
	// фоновая проводка по расписанию только уменьшает задержку.
	if configStore.FlagSweepSpec != "" {
		c := cron.New()
		_, err := c.AddFunc(configStore.FlagSweepSpec, func() {
			if err := svc.ProcessAvailableCashback(context.Background()); err != nil {
				zaplog.Warn("cashback sweep failed", zap.Error(err))
			}
		})
		if err != nil {
			zaplog.Fatal("Bad cashback sweep spec", zap.Error(err))
		}
		c.Start()
		defer c.Stop()
	}

	go func() {
		zaplog.Info("Starting server", zap.String("addr", configStore.FlagRunAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zaplog.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	if err := srv.Shutdown(context.Background()); err != nil {
		zaplog.Warn("Server shutdown", zap.Error(err))
	}
}
