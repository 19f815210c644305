package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/theheadmen/phonemart/internal/dbconnector"
	domerr "github.com/theheadmen/phonemart/internal/errors"
	"github.com/theheadmen/phonemart/internal/models"
)

// GenerateOrderNumber - человекочитаемый номер заказа.
func GenerateOrderNumber() string {
	return fmt.Sprintf("ORD-%d-%s", time.Now().UnixMilli(), strings.Split(uuid.NewString(), "-")[0])
}

var validStatuses = map[string]bool{
	dbconnector.OrderStatusNew:        true,
	dbconnector.OrderStatusPaid:       true,
	dbconnector.OrderStatusProcessing: true,
	dbconnector.OrderStatusShipped:    true,
	dbconnector.OrderStatusDelivered:  true,
	dbconnector.OrderStatusCancelled:  true,
	dbconnector.OrderStatusRefunded:   true,
}

// CreateOrder - оформление покупки. Остатки проверяются до транзакции,
// а внутри нее списание условное, так что при гонке заказ честно падает
// с ErrInsufficientStock и не остается ни позиций, ни списаний.
func (s *Service) CreateOrder(ctx context.Context, userID uint, req models.OrderRequest) (*dbconnector.Order, error) {
	if len(req.Items) == 0 {
		return nil, domerr.ErrEmptyOrder
	}

	subtotal := decimal.Zero
	items := make([]dbconnector.OrderItem, 0, len(req.Items))
	for _, reqItem := range req.Items {
		if reqItem.Quantity <= 0 {
			return nil, domerr.ErrEmptyOrder
		}
		var product dbconnector.Product
		err := s.storage.GetProductByID(ctx, reqItem.ProductID, &product)
		if err != nil {
			if errors.Is(err, dbconnector.ErrNoRows) {
				return nil, domerr.ErrProductNotFound
			}
			return nil, err
		}
		if product.Stock < reqItem.Quantity {
			return nil, domerr.ErrInsufficientStock
		}
		lineTotal := product.Price.Mul(decimal.NewFromInt(int64(reqItem.Quantity)))
		subtotal = subtotal.Add(lineTotal)
		items = append(items, dbconnector.OrderItem{
			ProductID: product.ID,
			Quantity:  reqItem.Quantity,
			Price:     product.Price,
		})
	}

	// Доставка бесплатная
	shippingCost := decimal.Zero
	order := dbconnector.Order{
		OrderNumber:     GenerateOrderNumber(),
		UserID:          userID,
		Status:          dbconnector.OrderStatusNew,
		Subtotal:        subtotal,
		ShippingCost:    shippingCost,
		Total:           subtotal.Add(shippingCost),
		ShippingName:    req.ShippingName,
		ShippingAddress: req.ShippingAddress,
		ShippingPhone:   req.ShippingPhone,
		ShippingEmail:   req.ShippingEmail,
		Comment:         req.Comment,
	}

	if err := s.storage.CreateOrderTransaction(ctx, &order, items); err != nil {
		return nil, err
	}
	order.Items = items
	s.logger.Info("order created",
		zap.String("number", order.OrderNumber),
		zap.Uint("user", userID),
		zap.String("total", order.Total.String()))

	s.notifyOrderConfirmation(req.ShippingEmail, order.OrderNumber, order.Total)
	return &order, nil
}

// CreateFreePhoneOrder - выдача бесплатного телефона за 20 рефералов.
// Счетчик и гейт перепроверяются в момент выдачи, чтобы не доверять
// устаревшему чтению из админки.
func (s *Service) CreateFreePhoneOrder(ctx context.Context, userID, productID uint) (*dbconnector.Order, error) {
	var user dbconnector.User
	err := s.storage.GetUserByUserID(ctx, userID, &user)
	if err != nil {
		if errors.Is(err, dbconnector.ErrNoRows) {
			return nil, domerr.ErrUserNotFound
		}
		return nil, err
	}

	count, err := s.GetFreePhoneQualifiedReferralsCount(ctx, userID)
	if err != nil {
		return nil, err
	}
	if count < int64(s.rules.FreePhoneRequiredCount) {
		return nil, domerr.ErrNotEnoughReferrals
	}
	eligible, err := s.CanReceiveFreePhone(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !eligible {
		return nil, domerr.ErrBonusCooldown
	}

	var product dbconnector.Product
	err = s.storage.GetProductByID(ctx, productID, &product)
	if err != nil {
		if errors.Is(err, dbconnector.ErrNoRows) {
			return nil, domerr.ErrProductNotFound
		}
		return nil, err
	}
	if product.Stock < 1 {
		return nil, domerr.ErrInsufficientStock
	}

	shippingName := user.Name
	if shippingName == "" {
		shippingName = user.Email
	}
	order := dbconnector.Order{
		OrderNumber:      GenerateOrderNumber(),
		UserID:           userID,
		Status:           dbconnector.OrderStatusNew,
		Subtotal:         decimal.Zero,
		ShippingCost:     decimal.Zero,
		Total:            decimal.Zero,
		ShippingName:     shippingName,
		ShippingAddress:  "Address to be provided by customer",
		ShippingPhone:    user.Phone,
		ShippingEmail:    user.Email,
		Comment:          "Free phone bonus for 20 referrals",
		IsFreePhoneBonus: true,
	}
	item := dbconnector.OrderItem{
		ProductID: productID,
		Quantity:  1,
		Price:     decimal.Zero,
	}

	if err := s.storage.CreateBonusOrderTransaction(ctx, &order, &item); err != nil {
		return nil, err
	}
	order.Items = []dbconnector.OrderItem{item}
	s.logger.Info("free phone bonus granted",
		zap.Uint("user", userID),
		zap.String("number", order.OrderNumber),
		zap.Int64("qualified_referrals", count))
	return &order, nil
}

// UpdateOrderStatus - админское обновление заказа. ShippedAt/DeliveredAt
// ставятся один раз, при первом попадании в статус. Первый переход в
// DELIVERED запускает начисление кешбека; повторные сохранения
// безопасны - начисление идемпотентно.
func (s *Service) UpdateOrderStatus(ctx context.Context, orderID uint, req models.OrderStatusUpdateRequest) (*dbconnector.Order, error) {
	if !validStatuses[req.Status] {
		return nil, domerr.ErrInvalidStatus
	}

	var order dbconnector.Order
	err := s.storage.GetOrderByID(ctx, orderID, &order)
	if err != nil {
		if errors.Is(err, dbconnector.ErrNoRows) {
			return nil, domerr.ErrOrderNotFound
		}
		return nil, err
	}

	changed := order.Status != req.Status
	order.Status = req.Status
	if req.TrackingNumber != nil && order.TrackingNumber != *req.TrackingNumber {
		order.TrackingNumber = *req.TrackingNumber
		changed = true
	}
	if req.IMEI != nil && order.IMEI != *req.IMEI {
		order.IMEI = *req.IMEI
		changed = true
	}

	now := s.now()
	if req.Status == dbconnector.OrderStatusShipped && order.ShippedAt == nil {
		order.ShippedAt = &now
	}
	if req.Status == dbconnector.OrderStatusDelivered && order.DeliveredAt == nil {
		order.DeliveredAt = &now
	}

	if err := s.storage.UpdateOrder(ctx, &order); err != nil {
		return nil, err
	}

	if req.Status == dbconnector.OrderStatusDelivered && order.DeliveredAt != nil {
		if err := s.AccrueCashbackOnDelivery(ctx, order.ID, *order.DeliveredAt); err != nil {
			return nil, err
		}
	}

	if changed {
		s.notifyStatusUpdate(order.User.Email, order.OrderNumber, order.Status, order.TrackingNumber, order.IMEI)
	}
	return &order, nil
}

func (s *Service) GetOrders(ctx context.Context, userID uint) ([]models.OrderResponse, error) {
	var orders []dbconnector.Order
	if err := s.storage.GetOrdersByUserID(ctx, userID, &orders); err != nil {
		return nil, err
	}
	responses := make([]models.OrderResponse, len(orders))
	for i, o := range orders {
		responses[i] = models.OrderResponse{
			ID:               o.ID,
			OrderNumber:      o.OrderNumber,
			Status:           o.Status,
			Total:            o.Total,
			IsFreePhoneBonus: o.IsFreePhoneBonus,
			TrackingNumber:   o.TrackingNumber,
			DeliveredAt:      o.DeliveredAt,
			CreatedAt:        o.CreatedAt,
		}
	}
	return responses, nil
}

func (s *Service) GetProducts(ctx context.Context) ([]models.ProductResponse, error) {
	var products []dbconnector.Product
	if err := s.storage.GetActiveProducts(ctx, &products); err != nil {
		return nil, err
	}
	responses := make([]models.ProductResponse, len(products))
	for i, p := range products {
		responses[i] = models.ProductResponse{
			ID:          p.ID,
			Name:        p.Name,
			Description: p.Description,
			Price:       p.Price,
			Stock:       p.Stock,
		}
	}
	return responses, nil
}
