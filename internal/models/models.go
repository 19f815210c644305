package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type RegisterRequest struct {
	Email        string `json:"email"`
	Password     string `json:"password"`
	Name         string `json:"name"`
	Phone        string `json:"phone"`
	ReferralCode string `json:"referral_code,omitempty"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type UserResponse struct {
	ID           uint   `json:"id"`
	Email        string `json:"email"`
	Name         string `json:"name"`
	ReferralCode string `json:"referral_code"`
}

type ProductResponse struct {
	ID          uint            `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
}

type OrderItemRequest struct {
	ProductID uint `json:"product_id"`
	Quantity  int  `json:"quantity"`
}

type OrderRequest struct {
	Items           []OrderItemRequest `json:"items"`
	ShippingName    string             `json:"shipping_name"`
	ShippingAddress string             `json:"shipping_address"`
	ShippingPhone   string             `json:"shipping_phone"`
	ShippingEmail   string             `json:"shipping_email"`
	Comment         string             `json:"comment,omitempty"`
}

type OrderResponse struct {
	ID               uint            `json:"id"`
	OrderNumber      string          `json:"order_number"`
	Status           string          `json:"status"`
	Total            decimal.Decimal `json:"total"`
	IsFreePhoneBonus bool            `json:"is_free_phone_bonus,omitempty"`
	TrackingNumber   string          `json:"tracking_number,omitempty"`
	DeliveredAt      *time.Time      `json:"delivered_at,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
}

type OrderStatusUpdateRequest struct {
	Status         string  `json:"status"`
	TrackingNumber *string `json:"tracking_number,omitempty"`
	IMEI           *string `json:"imei,omitempty"`
}

type CashbackEntryResponse struct {
	ID          uint            `json:"id"`
	Amount      decimal.Decimal `json:"amount"`
	Type        string          `json:"type"`
	Status      string          `json:"status"`
	OrderID     *uint           `json:"order_id,omitempty"`
	ReferralID  *uint           `json:"referral_id,omitempty"`
	AvailableAt time.Time       `json:"available_at"`
	CreatedAt   time.Time       `json:"created_at"`
}

type CashbackSummary struct {
	Pending   decimal.Decimal         `json:"pending"`
	Available decimal.Decimal         `json:"available"`
	Entries   []CashbackEntryResponse `json:"entries"`
}

type ReferralInfo struct {
	ID            uint            `json:"id"`
	Email         string          `json:"email"`
	Name          string          `json:"name"`
	CreatedAt     time.Time       `json:"created_at"`
	PurchaseCount int             `json:"purchase_count"`
	TotalSpent    decimal.Decimal `json:"total_spent"`
	IsActive      bool            `json:"is_active"`
}

type ReferralStats struct {
	Total        int64          `json:"total"`
	Active       int64          `json:"active"`
	Inactive     int64          `json:"inactive"`
	Qualified    int64          `json:"qualified_for_free_phone"`
	ReferralCode string         `json:"referral_code,omitempty"`
	ReferralLink string         `json:"referral_link,omitempty"`
	Referrals    []ReferralInfo `json:"referrals"`
}

type WithdrawResponse struct {
	PaidOut decimal.Decimal `json:"paid_out"`
}

type QualifiedOrder struct {
	OrderNumber string          `json:"order_number"`
	Total       decimal.Decimal `json:"total"`
	DeliveredAt *time.Time      `json:"delivered_at"`
}

type QualifiedReferral struct {
	ID               uint             `json:"id"`
	Email            string           `json:"email"`
	Name             string           `json:"name"`
	CreatedAt        time.Time        `json:"created_at"`
	Orders           []QualifiedOrder `json:"orders"`
	FirstDeliveredAt *time.Time       `json:"first_delivered_at,omitempty"`
	OrderCount       int              `json:"order_count"`
}

type FreePhoneCandidate struct {
	ID                 uint   `json:"id"`
	Email              string `json:"email"`
	Name               string `json:"name"`
	Phone              string `json:"phone"`
	ReferralCode       string `json:"referral_code"`
	QualifiedReferrals int64  `json:"qualified_referrals"`
}

type GrantRequest struct {
	UserID    uint `json:"user_id"`
	ProductID uint `json:"product_id"`
}

type ReferralClickRequest struct {
	ReferralCode string `json:"referral_code"`
	UTMSource    string `json:"utm_source,omitempty"`
}
