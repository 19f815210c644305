package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/theheadmen/phonemart/internal/dbconnector"
)

// Storage - все, что сервису нужно от реляционного хранилища.
// Реализуется dbconnector.DBConnector, в юнит-тестах - фейком в памяти.
type Storage interface {
	GetUserByEmail(ctx context.Context, email string, user *dbconnector.User) error
	GetUserByUserID(ctx context.Context, userID uint, user *dbconnector.User) error
	GetUserByPhone(ctx context.Context, phone string, user *dbconnector.User) error
	GetUserByReferralCode(ctx context.Context, code string, user *dbconnector.User) error
	AddUser(ctx context.Context, newUser *dbconnector.User) error

	GetActiveProducts(ctx context.Context, products *[]dbconnector.Product) error
	GetProductByID(ctx context.Context, productID uint, product *dbconnector.Product) error
	GetActiveRate(ctx context.Context, productID uint, at time.Time, rate *dbconnector.ProductCashbackRate) error

	GetOrderByID(ctx context.Context, orderID uint, order *dbconnector.Order) error
	GetOrdersByUserID(ctx context.Context, userID uint, orders *[]dbconnector.Order) error
	UpdateOrder(ctx context.Context, updOrder *dbconnector.Order) error
	CreateOrderTransaction(ctx context.Context, order *dbconnector.Order, items []dbconnector.OrderItem) error
	CreateBonusOrderTransaction(ctx context.Context, order *dbconnector.Order, item *dbconnector.OrderItem) error

	CountOwnPurchaseEntries(ctx context.Context, orderID uint) (int64, error)
	CountCashbackEntriesByType(ctx context.Context, userID uint, entryType string) (int64, error)
	AddCashbackEntries(ctx context.Context, entries []dbconnector.CashbackEntry) error
	PromoteMaturedCashback(ctx context.Context, now time.Time) error
	GetCashbackEntriesByUserID(ctx context.Context, userID uint, entries *[]dbconnector.CashbackEntry) error
	SumCashbackByStatus(ctx context.Context, userID uint, status string) (decimal.Decimal, error)
	MarkAvailableAsPaidOut(ctx context.Context, userID uint) (decimal.Decimal, error)

	CountReferrals(ctx context.Context, referrerID uint) (int64, error)
	CountReferralsWithDeliveredSince(ctx context.Context, referrerID uint, since time.Time) (int64, error)
	GetReferralsWithPurchases(ctx context.Context, referrerID uint, referrals *[]dbconnector.User) error
	GetQualifiedReferrals(ctx context.Context, referrerID uint, since time.Time, referrals *[]dbconnector.User) error

	CountBonusOrders(ctx context.Context, userID uint) (int64, error)
	GetLastBonusDeliveredAt(ctx context.Context, userID uint) (*time.Time, error)
	GetUsersWithReferrals(ctx context.Context, users *[]dbconnector.User) error
	AddReferralClick(ctx context.Context, click *dbconnector.ReferralClick) error
}
