package dbconnector

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	domerr "github.com/theheadmen/phonemart/internal/errors"
)

// ErrNoRows возвращается, когда запрос не нашел строку
var ErrNoRows = gorm.ErrRecordNotFound

type DBConnector struct {
	DB *gorm.DB
}

func OpenDBConnect(dsn string) (*DBConnector, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	return &DBConnector{DB: db}, err
}

func (dbConnector *DBConnector) DBInitialize() error {
	return dbConnector.DB.AutoMigrate(
		&User{},
		&Product{},
		&ProductCashbackRate{},
		&Order{},
		&OrderItem{},
		&CashbackEntry{},
		&ReferralClick{},
	)
}

func (dbConnector *DBConnector) GetUserByEmail(ctx context.Context, email string, user *User) error {
	return dbConnector.DB.WithContext(ctx).Where("email = ?", email).First(user).Error
}

func (dbConnector *DBConnector) GetUserByUserID(ctx context.Context, userID uint, user *User) error {
	return dbConnector.DB.WithContext(ctx).First(user, userID).Error
}

func (dbConnector *DBConnector) GetUserByPhone(ctx context.Context, phone string, user *User) error {
	return dbConnector.DB.WithContext(ctx).Where("phone = ?", phone).First(user).Error
}

func (dbConnector *DBConnector) GetUserByReferralCode(ctx context.Context, code string, user *User) error {
	return dbConnector.DB.WithContext(ctx).Where("referral_code = ?", code).First(user).Error
}

func (dbConnector *DBConnector) AddUser(ctx context.Context, newUser *User) error {
	return dbConnector.DB.WithContext(ctx).Create(newUser).Error
}

func (dbConnector *DBConnector) GetActiveProducts(ctx context.Context, products *[]Product) error {
	return dbConnector.DB.WithContext(ctx).Where("active = ?", true).Order("created_at").Find(products).Error
}

func (dbConnector *DBConnector) GetProductByID(ctx context.Context, productID uint, product *Product) error {
	return dbConnector.DB.WithContext(ctx).First(product, productID).Error
}

// GetActiveRate возвращает действующую на момент at ставку кешбека товара.
// Из пересекающихся окон берется самая свежая по valid_from.
func (dbConnector *DBConnector) GetActiveRate(ctx context.Context, productID uint, at time.Time, rate *ProductCashbackRate) error {
	return dbConnector.DB.WithContext(ctx).
		Where("product_id = ? AND valid_from <= ?", productID, at).
		Where("valid_to IS NULL OR valid_to >= ?", at).
		Order("valid_from DESC").
		First(rate).Error
}

func (dbConnector *DBConnector) GetOrderByID(ctx context.Context, orderID uint, order *Order) error {
	return dbConnector.DB.WithContext(ctx).
		Preload("Items").
		Preload("User").
		First(order, orderID).Error
}

func (dbConnector *DBConnector) GetOrdersByUserID(ctx context.Context, userID uint, orders *[]Order) error {
	return dbConnector.DB.WithContext(ctx).
		Preload("Items").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(orders).Error
}

func (dbConnector *DBConnector) UpdateOrder(ctx context.Context, updOrder *Order) error {
	return dbConnector.DB.WithContext(ctx).Save(updOrder).Error
}

// CreateOrderTransaction создает заказ, его позиции и списывает остатки
// одной транзакцией. Списание условное: stock = stock - n при stock >= n,
// поэтому две одновременные покупки не уведут остаток в минус.
func (dbConnector *DBConnector) CreateOrderTransaction(ctx context.Context, order *Order, items []OrderItem) error {
	tx := dbConnector.DB.WithContext(ctx).Begin()
	if tx.Error != nil {
		return tx.Error
	}

	if err := tx.Create(order).Error; err != nil {
		tx.Rollback()
		return err
	}

	for i := range items {
		items[i].OrderID = order.ID
		if err := tx.Create(&items[i]).Error; err != nil {
			tx.Rollback()
			return err
		}

		result := tx.Model(&Product{}).
			Where("id = ? AND stock >= ?", items[i].ProductID, items[i].Quantity).
			UpdateColumn("stock", gorm.Expr("stock - ?", items[i].Quantity))
		if result.Error != nil {
			tx.Rollback()
			return result.Error
		}
		if result.RowsAffected == 0 {
			tx.Rollback()
			return domerr.ErrInsufficientStock
		}
	}

	return tx.Commit().Error
}

// CreateBonusOrderTransaction создает бонусный заказ (бесплатный телефон)
// и списывает одну единицу товара, атомарно.
func (dbConnector *DBConnector) CreateBonusOrderTransaction(ctx context.Context, order *Order, item *OrderItem) error {
	tx := dbConnector.DB.WithContext(ctx).Begin()
	if tx.Error != nil {
		return tx.Error
	}

	if err := tx.Create(order).Error; err != nil {
		tx.Rollback()
		return err
	}

	item.OrderID = order.ID
	if err := tx.Create(item).Error; err != nil {
		tx.Rollback()
		return err
	}

	result := tx.Model(&Product{}).
		Where("id = ? AND stock >= ?", item.ProductID, item.Quantity).
		UpdateColumn("stock", gorm.Expr("stock - ?", item.Quantity))
	if result.Error != nil {
		tx.Rollback()
		return result.Error
	}
	if result.RowsAffected == 0 {
		tx.Rollback()
		return domerr.ErrInsufficientStock
	}

	return tx.Commit().Error
}

// CountCashbackEntriesByType считает записи данного типа у пользователя.
// Бонусы лестницы выдаются один раз, признак выдачи - наличие записи.
func (dbConnector *DBConnector) CountCashbackEntriesByType(ctx context.Context, userID uint, entryType string) (int64, error) {
	var count int64
	err := dbConnector.DB.WithContext(ctx).Model(&CashbackEntry{}).
		Where("user_id = ? AND type = ?", userID, entryType).
		Count(&count).Error
	return count, err
}

func (dbConnector *DBConnector) CountOwnPurchaseEntries(ctx context.Context, orderID uint) (int64, error) {
	var count int64
	err := dbConnector.DB.WithContext(ctx).Model(&CashbackEntry{}).
		Where("order_id = ? AND type = ?", orderID, CashbackTypeOwnPurchase).
		Count(&count).Error
	return count, err
}

/// AddCashbackEntries пишет все строки начисления одной транзакцией:
// либо весь заказ начислен, либо ничего.
func (dbConnector *DBConnector) AddCashbackEntries(ctx context.Context, entries []CashbackEntry) error {
	return dbConnector.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range entries {
			if err := tx.Create(&entries[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// PromoteMaturedCashback переводит созревшие записи PENDING -> AVAILABLE.
// Чистый батч-апдейт, идемпотентный, можно звать на каждом чтении.
func (dbConnector *DBConnector) PromoteMaturedCashback(ctx context.Context, now time.Time) error {
	return dbConnector.DB.WithContext(ctx).Model(&CashbackEntry{}).
		Where("status = ? AND available_at <= ?", CashbackStatusPending, now).
		Update("status", CashbackStatusAvailable).Error
}

func (dbConnector *DBConnector) GetCashbackEntriesByUserID(ctx context.Context, userID uint, entries *[]CashbackEntry) error {
	return dbConnector.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(entries).Error
}

func (dbConnector *DBConnector) SumCashbackByStatus(ctx context.Context, userID uint, status string) (decimal.Decimal, error) {
	var sum decimal.NullDecimal
	err := dbConnector.DB.WithContext(ctx).Model(&CashbackEntry{}).
		Select("SUM(amount)").
		Where("user_id = ? AND status = ?", userID, status).
		Scan(&sum).Error
	if err != nil || !sum.Valid {
		return decimal.Zero, err
	}
	return sum.Decimal, nil
}

// MarkAvailableAsPaidOut переводит все AVAILABLE записи пользователя в
// PAID_OUT одной транзакцией и возвращает списанную сумму.
func (dbConnector *DBConnector) MarkAvailableAsPaidOut(ctx context.Context, userID uint) (decimal.Decimal, error) {
	total := decimal.Zero
	err := dbConnector.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var sum decimal.NullDecimal
		if err := tx.Model(&CashbackEntry{}).
			Where("user_id = ? AND status = ?", userID, CashbackStatusAvailable).
			Select("COALESCE(SUM(amount), 0)").
			Scan(&sum).Error; err != nil {
			return err
		}
		if sum.Valid {
			total = sum.Decimal
		}
		return tx.Model(&CashbackEntry{}).
			Where("user_id = ? AND status = ?", userID, CashbackStatusAvailable).
			Update("status", CashbackStatusPaidOut).Error
	})
	return total, err
}

func (dbConnector *DBConnector) CountReferrals(ctx context.Context, referrerID uint) (int64, error) {
	var count int64
	err := dbConnector.DB.WithContext(ctx).Model(&User{}).
		Where("referred_by_id = ?", referrerID).
		Count(&count).Error
	return count, err
}

// CountReferralsWithDeliveredSince считает прямых рефералов, у которых есть
// хотя бы один доставленный заказ с delivered_at не раньше since.
// Одним запросом обслуживает оба окна: 90 дней (active) и 365 (qualified).
func (dbConnector *DBConnector) CountReferralsWithDeliveredSince(ctx context.Context, referrerID uint, since time.Time) (int64, error) {
	var count int64
	err := dbConnector.DB.WithContext(ctx).Model(&User{}).
		Where("referred_by_id = ?", referrerID).
		Where("EXISTS (SELECT 1 FROM orders WHERE orders.user_id = users.id"+
			" AND orders.status = ? AND orders.delivered_at >= ? AND orders.deleted_at IS NULL)",
			OrderStatusDelivered, since).
		Count(&count).Error
	return count, err
}

// GetReferralsWithPurchases - рефералы со всеми их "покупочными" заказами
// (DELIVERED/SHIPPED/PROCESSING/PAID) для статистики кабинета.
func (dbConnector *DBConnector) GetReferralsWithPurchases(ctx context.Context, referrerID uint, referrals *[]User) error {
	return dbConnector.DB.WithContext(ctx).
		Preload("Orders", "status IN ?", PurchasedStatuses).
		Where("referred_by_id = ?", referrerID).
		Order("created_at DESC").
		Find(referrals).Error
}

// GetQualifiedReferrals - рефералы с доставленным заказом в окне since,
// вместе со списком этих заказов (свежие доставки первыми).
func (dbConnector *DBConnector) GetQualifiedReferrals(ctx context.Context, referrerID uint, since time.Time, referrals *[]User) error {
	return dbConnector.DB.WithContext(ctx).
		Preload("Orders", func(db *gorm.DB) *gorm.DB {
			return db.Where("status = ? AND delivered_at >= ?", OrderStatusDelivered, since).
				Order("delivered_at DESC")
		}).
		Where("referred_by_id = ?", referrerID).
		Where("EXISTS (SELECT 1 FROM orders WHERE orders.user_id = users.id"+
			" AND orders.status = ? AND orders.delivered_at >= ? AND orders.deleted_at IS NULL)",
			OrderStatusDelivered, since).
		Order("created_at DESC").
		Find(referrals).Error
}

// CountBonusOrders - сколько бонусных заказов есть у пользователя,
// независимо от статуса ("вообще получал" для флага в кабинете).
func (dbConnector *DBConnector) CountBonusOrders(ctx context.Context, userID uint) (int64, error) {
	var count int64
	err := dbConnector.DB.WithContext(ctx).Model(&Order{}).
		Where("user_id = ? AND is_free_phone_bonus = ?", userID, true).
		Count(&count).Error
	return count, err
}

// GetLastBonusDeliveredAt - дата доставки последнего бонусного заказа.
// Гейт кулдауна считается именно от доставки, не от выдачи.
func (dbConnector *DBConnector) GetLastBonusDeliveredAt(ctx context.Context, userID uint) (*time.Time, error) {
	var order Order
	err := dbConnector.DB.WithContext(ctx).
		Where("user_id = ? AND is_free_phone_bonus = ? AND status = ? AND delivered_at IS NOT NULL",
			userID, true, OrderStatusDelivered).
		Order("delivered_at DESC").
		First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return order.DeliveredAt, nil
}

// GetUsersWithReferrals - не-админы, у которых есть хотя бы один реферал.
// Скан для админского отчета по кандидатам, не горячий путь.
func (dbConnector *DBConnector) GetUsersWithReferrals(ctx context.Context, users *[]User) error {
	return dbConnector.DB.WithContext(ctx).
		Where("role = ?", RoleUser).
		Where("EXISTS (SELECT 1 FROM users AS r WHERE r.referred_by_id = users.id AND r.deleted_at IS NULL)").
		Find(users).Error
}

func (dbConnector *DBConnector) AddReferralClick(ctx context.Context, click *ReferralClick) error {
	return dbConnector.DB.WithContext(ctx).Create(click).Error
}

// DeleteAllData чистит все таблицы, нужно для интеграционных тестов.
func (dbConnector *DBConnector) DeleteAllData(ctx context.Context) error {
	tables := []string{
		"referral_clicks",
		"cashback_entries",
		"order_items",
		"orders",
		"product_cashback_rates",
		"products",
		"users",
	}
	for _, table := range tables {
		if err := dbConnector.DB.WithContext(ctx).Exec("DELETE FROM " + table).Error; err != nil {
			return err
		}
	}
	return nil
}
