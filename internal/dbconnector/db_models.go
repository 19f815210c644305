package dbconnector

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
)

const (
	OrderStatusNew        = "NEW"
	OrderStatusPaid       = "PAID"
	OrderStatusProcessing = "PROCESSING"
	OrderStatusShipped    = "SHIPPED"
	OrderStatusDelivered  = "DELIVERED"
	OrderStatusCancelled  = "CANCELLED"
	OrderStatusRefunded   = "REFUNDED"
)

// Статусы, которые считаются покупкой для статистики рефералов
var PurchasedStatuses = []string{
	OrderStatusDelivered,
	OrderStatusShipped,
	OrderStatusProcessing,
	OrderStatusPaid,
}

const (
	CashbackTypeOwnPurchase      = "OWN_PURCHASE"
	CashbackTypeReferralPurchase = "REFERRAL_PURCHASE"
	CashbackTypeBonus10          = "BONUS_10_REFERRALS"
	CashbackTypeBonus15          = "BONUS_15_REFERRALS"
	CashbackTypeBonus20          = "BONUS_20_REFERRALS"
)

const (
	CashbackStatusPending   = "PENDING"
	CashbackStatusAvailable = "AVAILABLE"
	CashbackStatusPaidOut   = "PAID_OUT"
)

type User struct {
	gorm.Model
	Email    string `json:"email" gorm:"unique;not null"`
	Password string `json:"password" gorm:"not null"`
	Name     string `json:"name"`
	// 1 человек = 1 аккаунт, телефон уникален
	Phone string `json:"phone" gorm:"unique;not null"`
	Role  string `gorm:"default:'USER'"`
	// Код выдается при регистрации и больше не меняется
	ReferralCode string `gorm:"unique;not null"`
	// Заполняется только при регистрации, обновления нет
	ReferredByID *uint
	ReferredBy   *User
	Blocked      bool    `gorm:"default:false"`
	Orders       []Order `json:"-"`
}

type Product struct {
	gorm.Model
	Name        string          `json:"name" gorm:"not null"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price" gorm:"type:decimal(10,2)"`
	Stock       int             `json:"stock" gorm:"default:0"`
	Active      bool            `json:"active" gorm:"default:true"`
}

// ProductCashbackRate - ставка кешбека для товара, действует в окне
// [ValidFrom, ValidTo]. При пересечении берется самая свежая по ValidFrom.
type ProductCashbackRate struct {
	gorm.Model
	ProductID          uint            `gorm:"index;not null"`
	OwnPurchasePercent decimal.Decimal `gorm:"type:decimal(5,2)"`
	ReferralPercent    decimal.Decimal `gorm:"type:decimal(5,2)"`
	ValidFrom          time.Time       `gorm:"not null"`
	ValidTo            *time.Time
}

type Order struct {
	gorm.Model
	OrderNumber     string `gorm:"unique;not null"`
	UserID          uint   `gorm:"index;not null"`
	User            User
	Status          string          `gorm:"default:'NEW'"`
	Subtotal        decimal.Decimal `gorm:"type:decimal(10,2)"`
	ShippingCost    decimal.Decimal `gorm:"type:decimal(10,2)"`
	Total           decimal.Decimal `gorm:"type:decimal(10,2)"`
	ShippingName    string
	ShippingAddress string
	ShippingPhone   string
	ShippingEmail   string
	Comment         string
	TrackingNumber  string
	IMEI            string
	// Каждая дата ставится ровно один раз, при первом переходе в статус
	ShippedAt   *time.Time
	DeliveredAt *time.Time
	// Бесплатный телефон за 20 рефералов, total = 0
	IsFreePhoneBonus bool `gorm:"default:false"`
	Items            []OrderItem
}

type OrderItem struct {
	gorm.Model
	OrderID   uint `gorm:"index;not null"`
	ProductID uint `gorm:"not null"`
	Product   Product
	Quantity  int             `gorm:"not null"`
	Price     decimal.Decimal `gorm:"type:decimal(10,2)"`
}

// CashbackEntry - строка журнала кешбека. Записи не удаляются,
// статус меняется только вперед: PENDING -> AVAILABLE -> PAID_OUT.
type CashbackEntry struct {
	gorm.Model
	UserID uint            `gorm:"index;not null"`
	Amount decimal.Decimal `gorm:"type:decimal(10,2)"`
	Type   string          `gorm:"not null"`
	Status string          `gorm:"default:'PENDING'"`
	// Заказ-источник; для реферального кешбека ReferralID - покупатель
	OrderID     *uint `gorm:"index"`
	ReferralID  *uint
	AvailableAt time.Time `gorm:"not null"`
}

type ReferralClick struct {
	gorm.Model
	ReferralCode string `gorm:"index;not null"`
	UserID       *uint
	IPAddress    string
	UserAgent    string
	UTMSource    string
}
