package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/theheadmen/phonemart/internal/dbconnector"
	domerr "github.com/theheadmen/phonemart/internal/errors"
	"github.com/theheadmen/phonemart/internal/models"
)

var hundred = decimal.NewFromInt(100)

// CalculateCashback считает кешбек от суммы по проценту,
// округление до 2 знаков, половина вверх. Округляем на каждой
// позиции заказа, не на итоге.
func CalculateCashback(amount, percent decimal.Decimal) decimal.Decimal {
	return amount.Mul(percent).Div(hundred).Round(2)
}

// GetCashbackRates - действующие проценты для товара. Если ставки с
// подходящим окном нет, работают проценты по умолчанию.
func (s *Service) GetCashbackRates(ctx context.Context, productID uint) (own, referral decimal.Decimal, err error) {
	var rate dbconnector.ProductCashbackRate
	err = s.storage.GetActiveRate(ctx, productID, s.now(), &rate)
	if err != nil {
		if errors.Is(err, dbconnector.ErrNoRows) {
			return s.rules.DefaultOwnPercent, s.rules.DefaultReferralPercent, nil
		}
		return decimal.Zero, decimal.Zero, err
	}
	return rate.OwnPurchasePercent, rate.ReferralPercent, nil
}

// CreateCashbackEntry пишет одну запись журнала. Запись рождается в
// статусе PENDING и созревает через CashbackHoldDays после доставки.
// Этим же примитивом начисляются фиксированные бонусы лестницы.
func (s *Service) CreateCashbackEntry(ctx context.Context, userID uint, amount decimal.Decimal, entryType string, orderID, referralID *uint, deliveredAt time.Time) error {
	entry := dbconnector.CashbackEntry{
		UserID:      userID,
		Amount:      amount,
		Type:        entryType,
		Status:      dbconnector.CashbackStatusPending,
		OrderID:     orderID,
		ReferralID:  referralID,
		AvailableAt: deliveredAt.AddDate(0, 0, s.rules.CashbackHoldDays),
	}
	return s.storage.AddCashbackEntries(ctx, []dbconnector.CashbackEntry{entry})
}

// AccrueCashbackOnDelivery начисляет кешбек по заказу, когда тот впервые
// доставлен. Повторный вызов для того же заказа - no-op: признак "уже
// начислено" - наличие записи OWN_PURCHASE по этому заказу.
func (s *Service) AccrueCashbackOnDelivery(ctx context.Context, orderID uint, deliveredAt time.Time) error {
	count, err := s.storage.CountOwnPurchaseEntries(ctx, orderID)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	var order dbconnector.Order
	err = s.storage.GetOrderByID(ctx, orderID, &order)
	if err != nil {
		if errors.Is(err, dbconnector.ErrNoRows) {
			return domerr.ErrOrderNotFound
		}
		return err
	}

	referrerID := order.User.ReferredByID
	availableAt := deliveredAt.AddDate(0, 0, s.rules.CashbackHoldDays)

	var entries []dbconnector.CashbackEntry
	for _, item := range order.Items {
		ownPercent, referralPercent, err := s.GetCashbackRates(ctx, item.ProductID)
		if err != nil {
			return err
		}
		itemTotal := item.Price.Mul(decimal.NewFromInt(int64(item.Quantity)))
		ownAmount := CalculateCashback(itemTotal, ownPercent)
		referralAmount := CalculateCashback(itemTotal, referralPercent)

		oid := orderID
		if ownAmount.IsPositive() {
			entries = append(entries, dbconnector.CashbackEntry{
				UserID:      order.UserID,
				Amount:      ownAmount,
				Type:        dbconnector.CashbackTypeOwnPurchase,
				Status:      dbconnector.CashbackStatusPending,
				OrderID:     &oid,
				AvailableAt: availableAt,
			})
		}
		if referrerID != nil && referralAmount.IsPositive() {
			buyerID := order.UserID
			entries = append(entries, dbconnector.CashbackEntry{
				UserID:      *referrerID,
				Amount:      referralAmount,
				Type:        dbconnector.CashbackTypeReferralPurchase,
				Status:      dbconnector.CashbackStatusPending,
				OrderID:     &oid,
				ReferralID:  &buyerID,
				AvailableAt: availableAt,
			})
		}
	}

	if len(entries) > 0 {
		err = s.storage.AddCashbackEntries(ctx, entries)
		if err != nil {
			return fmt.Errorf("accrue cashback for order %d: %w", orderID, err)
		}
		s.logger.Info("cashback accrued",
			zap.Uint("order", orderID),
			zap.Int("entries", len(entries)))
	}

	if referrerID != nil {
		return s.awardReferralMilestones(ctx, *referrerID, deliveredAt)
	}
	return nil
}

// awardReferralMilestones начисляет фиксированные бонусы лестницы, когда
// счетчик квалифицированных рефералов достигает ступени. Каждая денежная
// ступень выдается один раз за жизнь аккаунта, признак выдачи - запись
// соответствующего типа в журнале. Верхняя ступень (бесплатный телефон)
// деньгами не начисляется, ее выдает админ отдельным заказом.
func (s *Service) awardReferralMilestones(ctx context.Context, referrerID uint, deliveredAt time.Time) error {
	count, err := s.GetFreePhoneQualifiedReferralsCount(ctx, referrerID)
	if err != nil {
		return err
	}
	for _, tier := range s.rules.Ladder {
		if tier.FreeDevice || count < int64(tier.Referrals) {
			continue
		}
		entryType := fmt.Sprintf("BONUS_%d_REFERRALS", tier.Referrals)
		awarded, err := s.storage.CountCashbackEntriesByType(ctx, referrerID, entryType)
		if err != nil {
			return err
		}
		if awarded > 0 {
			continue
		}
		if err := s.CreateCashbackEntry(ctx, referrerID, tier.Cashback, entryType, nil, nil, deliveredAt); err != nil {
			return err
		}
		s.logger.Info("referral milestone bonus awarded",
			zap.Uint("user", referrerID),
			zap.Int("referrals", tier.Referrals),
			zap.String("amount", tier.Cashback.String()))
	}
	return nil
}

// ProcessAvailableCashback - ленивая проводка созревания. Зовется перед
// любым чтением баланса, плюс опционально по расписанию.
func (s *Service) ProcessAvailableCashback(ctx context.Context) error {
	return s.storage.PromoteMaturedCashback(ctx, s.now())
}

// WithdrawCashback списывает весь доступный кешбек пользователя разом.
// Суммы меньше порога не выводятся. PENDING записи не трогаются.
func (s *Service) WithdrawCashback(ctx context.Context, userID uint) (decimal.Decimal, error) {
	if err := s.ProcessAvailableCashback(ctx); err != nil {
		return decimal.Zero, err
	}
	available, err := s.storage.SumCashbackByStatus(ctx, userID, dbconnector.CashbackStatusAvailable)
	if err != nil {
		return decimal.Zero, err
	}
	if available.LessThan(s.rules.MinWithdrawal) {
		return decimal.Zero, domerr.ErrBelowMinWithdrawal
	}
	paid, err := s.storage.MarkAvailableAsPaidOut(ctx, userID)
	if err != nil {
		return decimal.Zero, err
	}
	s.logger.Info("cashback paid out",
		zap.Uint("user", userID),
		zap.String("amount", paid.String()))
	return paid, nil
}

// GetCashbackSummary возвращает журнал и балансы пользователя.
// Перед чтением всегда прогоняется созревание.
func (s *Service) GetCashbackSummary(ctx context.Context, userID uint) (models.CashbackSummary, error) {
	if err := s.ProcessAvailableCashback(ctx); err != nil {
		return models.CashbackSummary{}, err
	}

	pending, err := s.storage.SumCashbackByStatus(ctx, userID, dbconnector.CashbackStatusPending)
	if err != nil {
		return models.CashbackSummary{}, err
	}
	available, err := s.storage.SumCashbackByStatus(ctx, userID, dbconnector.CashbackStatusAvailable)
	if err != nil {
		return models.CashbackSummary{}, err
	}

	var entries []dbconnector.CashbackEntry
	if err := s.storage.GetCashbackEntriesByUserID(ctx, userID, &entries); err != nil {
		return models.CashbackSummary{}, err
	}

	summary := models.CashbackSummary{
		Pending:   pending,
		Available: available,
		Entries:   make([]models.CashbackEntryResponse, len(entries)),
	}
	for i, e := range entries {
		summary.Entries[i] = models.CashbackEntryResponse{
			ID:          e.ID,
			Amount:      e.Amount,
			Type:        e.Type,
			Status:      e.Status,
			OrderID:     e.OrderID,
			ReferralID:  e.ReferralID,
			AvailableAt: e.AvailableAt,
			CreatedAt:   e.CreatedAt,
		}
	}
	return summary, nil
}
