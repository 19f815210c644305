package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/theheadmen/phonemart/internal/rules"
)

// Notifier - канал уведомлений (почта). Отправка fire-and-forget:
// ошибки логируются и никогда не ломают основную операцию.
type Notifier interface {
	SendOrderConfirmation(ctx context.Context, email string, orderNumber string, total decimal.Decimal) error
	SendOrderStatusUpdate(ctx context.Context, email string, orderNumber string, status string, trackingNumber string, imei string) error
}

type Service struct {
	storage  Storage
	rules    rules.Rules
	logger   *zap.Logger
	notifier Notifier
	now      func() time.Time
}

func NewService(storage Storage, r rules.Rules, logger *zap.Logger, notifier Notifier) *Service {
	return &Service{
		storage:  storage,
		rules:    r,
		logger:   logger,
		notifier: notifier,
		now:      time.Now,
	}
}

func (s *Service) notifyStatusUpdate(email, orderNumber, status, trackingNumber, imei string) {
	if s.notifier == nil || email == "" {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.notifier.SendOrderStatusUpdate(ctx, email, orderNumber, status, trackingNumber, imei); err != nil {
			s.logger.Warn("order status notification failed",
				zap.String("order", orderNumber),
				zap.Error(err))
		}
	}()
}

func (s *Service) notifyOrderConfirmation(email, orderNumber string, total decimal.Decimal) {
	if s.notifier == nil || email == "" {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.notifier.SendOrderConfirmation(ctx, email, orderNumber, total); err != nil {
			s.logger.Warn("order confirmation notification failed",
				zap.String("order", orderNumber),
				zap.Error(err))
		}
	}()
}
