package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/theheadmen/phonemart/internal/dbconnector"
	"github.com/theheadmen/phonemart/internal/models"
)

// ReferralURL строит ссылку-приглашение для кода пользователя.
func ReferralURL(baseURL, code string) string {
	return fmt.Sprintf("%s/ref/%s", baseURL, code)
}

// ResolveReferralCode возвращает ID владельца кода, nil - если код неизвестен.
// Неизвестный код не ошибка: регистрация просто проходит без реферера.
func (s *Service) ResolveReferralCode(ctx context.Context, code string) (*uint, error) {
	if code == "" {
		return nil, nil
	}
	var referrer dbconnector.User
	err := s.storage.GetUserByReferralCode(ctx, code, &referrer)
	if err != nil {
		if errors.Is(err, dbconnector.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &referrer.ID, nil
}

func (s *Service) TrackReferralClick(ctx context.Context, req models.ReferralClickRequest, userID *uint, ip, userAgent string) error {
	return s.storage.AddReferralClick(ctx, &dbconnector.ReferralClick{
		ReferralCode: req.ReferralCode,
		UserID:       userID,
		IPAddress:    ip,
		UserAgent:    userAgent,
		UTMSource:    req.UTMSource,
	})
}

// GetReferralStats - статистика для кабинета. "Активный" реферал - с
// доставленным заказом за последние 90 дней. Это отчетное окно, оно
// короче и шире по смыслу, чем годовое окно квалификации.
func (s *Service) GetReferralStats(ctx context.Context, userID uint) (models.ReferralStats, error) {
	now := s.now()
	activeSince := now.AddDate(0, 0, -s.rules.ActiveReferralWindowDays)
	qualifiedSince := now.AddDate(0, 0, -s.rules.QualifiedReferralWindowDays)

	total, err := s.storage.CountReferrals(ctx, userID)
	if err != nil {
		return models.ReferralStats{}, err
	}
	active, err := s.storage.CountReferralsWithDeliveredSince(ctx, userID, activeSince)
	if err != nil {
		return models.ReferralStats{}, err
	}
	qualified, err := s.storage.CountReferralsWithDeliveredSince(ctx, userID, qualifiedSince)
	if err != nil {
		return models.ReferralStats{}, err
	}

	var referrals []dbconnector.User
	if err := s.storage.GetReferralsWithPurchases(ctx, userID, &referrals); err != nil {
		return models.ReferralStats{}, err
	}

	stats := models.ReferralStats{
		Total:     total,
		Active:    active,
		Inactive:  total - active,
		Qualified: qualified,
		Referrals: make([]models.ReferralInfo, len(referrals)),
	}
	for i, r := range referrals {
		totalSpent := decimal.Zero
		isActive := false
		for _, o := range r.Orders {
			totalSpent = totalSpent.Add(o.Total)
			if o.Status == dbconnector.OrderStatusDelivered &&
				o.DeliveredAt != nil && !o.DeliveredAt.Before(activeSince) {
				isActive = true
			}
		}
		stats.Referrals[i] = models.ReferralInfo{
			ID:            r.ID,
			Email:         r.Email,
			Name:          r.Name,
			CreatedAt:     r.CreatedAt,
			PurchaseCount: len(r.Orders),
			TotalSpent:    totalSpent,
			IsActive:      isActive,
		}
	}
	return stats, nil
}

// GetFreePhoneQualifiedReferralsCount - сколько прямых рефералов купили
// (доставленный заказ) за скользящий год. Счетчик живой, пересчитывается
// на каждом вызове: покупка старше года молча выпадает из окна, так что
// монотонности по времени здесь нет.
func (s *Service) GetFreePhoneQualifiedReferralsCount(ctx context.Context, userID uint) (int64, error) {
	since := s.now().AddDate(0, 0, -s.rules.QualifiedReferralWindowDays)
	return s.storage.CountReferralsWithDeliveredSince(ctx, userID, since)
}

// GetFreePhoneQualifiedReferrals - детальный список за тем же счетчиком,
// для сверки админом перед выдачей.
func (s *Service) GetFreePhoneQualifiedReferrals(ctx context.Context, userID uint) ([]models.QualifiedReferral, error) {
	since := s.now().AddDate(0, 0, -s.rules.QualifiedReferralWindowDays)

	var referrals []dbconnector.User
	if err := s.storage.GetQualifiedReferrals(ctx, userID, since, &referrals); err != nil {
		return nil, err
	}

	result := make([]models.QualifiedReferral, len(referrals))
	for i, r := range referrals {
		q := models.QualifiedReferral{
			ID:         r.ID,
			Email:      r.Email,
			Name:       r.Name,
			CreatedAt:  r.CreatedAt,
			Orders:     make([]models.QualifiedOrder, len(r.Orders)),
			OrderCount: len(r.Orders),
		}
		for j, o := range r.Orders {
			q.Orders[j] = models.QualifiedOrder{
				OrderNumber: o.OrderNumber,
				Total:       o.Total,
				DeliveredAt: o.DeliveredAt,
			}
		}
		if len(r.Orders) > 0 {
			q.FirstDeliveredAt = r.Orders[0].DeliveredAt
		}
		result[i] = q
	}
	return result, nil
}

// HasReceivedFreePhoneBonus - выдавался ли пользователю бонусный заказ
// хоть раз, статус заказа не важен.
func (s *Service) HasReceivedFreePhoneBonus(ctx context.Context, userID uint) (bool, error) {
	count, err := s.storage.CountBonusOrders(ctx, userID)
	return count > 0, err
}

// GetLastFreePhoneDeliveredAt - дата доставки последнего бонусного
// заказа, nil - если доставленных бонусов нет.
func (s *Service) GetLastFreePhoneDeliveredAt(ctx context.Context, userID uint) (*time.Time, error) {
	return s.storage.GetLastBonusDeliveredAt(ctx, userID)
}

// CanReceiveFreePhone - гейт выдачи: 20+ квалифицированных рефералов и
// (не получал вообще, или последний бонус доставлен больше года назад).
// Кулдаун считается от даты доставки, не от даты выдачи: выданный, но
// еще не доставленный бонус этот гейт не блокирует - поведение
// закреплено тестом.
func (s *Service) CanReceiveFreePhone(ctx context.Context, userID uint) (bool, error) {
	count, err := s.GetFreePhoneQualifiedReferralsCount(ctx, userID)
	if err != nil {
		return false, err
	}
	if count < int64(s.rules.FreePhoneRequiredCount) {
		return false, nil
	}

	lastDelivered, err := s.GetLastFreePhoneDeliveredAt(ctx, userID)
	if err != nil {
		return false, err
	}
	if lastDelivered == nil {
		return true, nil
	}
	cooldownEdge := s.now().AddDate(0, 0, -s.rules.FreePhoneCooldownDays)
	return lastDelivered.Before(cooldownEdge), nil
}

// GetFreePhoneCandidates - скан всех не-админов с рефералами: кто набрал
// порог и сейчас может получить телефон. Дорогая операция для админского
// отчета, не для горячего пути.
func (s *Service) GetFreePhoneCandidates(ctx context.Context) ([]models.FreePhoneCandidate, error) {
	var users []dbconnector.User
	if err := s.storage.GetUsersWithReferrals(ctx, &users); err != nil {
		return nil, err
	}

	candidates := make([]models.FreePhoneCandidate, 0)
	for _, u := range users {
		count, err := s.GetFreePhoneQualifiedReferralsCount(ctx, u.ID)
		if err != nil {
			return nil, err
		}
		if count < int64(s.rules.FreePhoneRequiredCount) {
			continue
		}
		eligible, err := s.CanReceiveFreePhone(ctx, u.ID)
		if err != nil {
			return nil, err
		}
		if !eligible {
			continue
		}
		candidates = append(candidates, models.FreePhoneCandidate{
			ID:                 u.ID,
			Email:              u.Email,
			Name:               u.Name,
			Phone:              u.Phone,
			ReferralCode:       u.ReferralCode,
			QualifiedReferrals: count,
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].QualifiedReferrals > candidates[j].QualifiedReferrals
	})
	return candidates, nil
}
