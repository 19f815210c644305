package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/theheadmen/phonemart/internal/dbconnector"
	domerr "github.com/theheadmen/phonemart/internal/errors"
)

// fakeStorage - хранилище в памяти с теми же семантиками, что у
// dbconnector, для юнит-тестов без базы.
type fakeStorage struct {
	mu       sync.Mutex
	users    []*dbconnector.User
	products []*dbconnector.Product
	rates    []dbconnector.ProductCashbackRate
	orders   []*dbconnector.Order
	entries  []dbconnector.CashbackEntry
	clicks   []dbconnector.ReferralClick
	nextID   uint
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{nextID: 1}
}

func (f *fakeStorage) id() uint {
	id := f.nextID
	f.nextID++
	return id
}

func (f *fakeStorage) addUser(u dbconnector.User) *dbconnector.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	u.ID = f.id()
	u.CreatedAt = time.Now()
	if u.Role == "" {
		u.Role = dbconnector.RoleUser
	}
	copied := u
	f.users = append(f.users, &copied)
	return &copied
}

func (f *fakeStorage) addProduct(p dbconnector.Product) *dbconnector.Product {
	f.mu.Lock()
	defer f.mu.Unlock()
	p.ID = f.id()
	copied := p
	f.products = append(f.products, &copied)
	return &copied
}

func (f *fakeStorage) addOrder(o dbconnector.Order) *dbconnector.Order {
	f.mu.Lock()
	defer f.mu.Unlock()
	o.ID = f.id()
	o.CreatedAt = time.Now()
	copied := o
	f.orders = append(f.orders, &copied)
	return &copied
}

func (f *fakeStorage) GetUserByEmail(_ context.Context, email string, user *dbconnector.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == email {
			*user = *u
			return nil
		}
	}
	return dbconnector.ErrNoRows
}

func (f *fakeStorage) GetUserByUserID(_ context.Context, userID uint, user *dbconnector.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.ID == userID {
			*user = *u
			return nil
		}
	}
	return dbconnector.ErrNoRows
}

func (f *fakeStorage) GetUserByPhone(_ context.Context, phone string, user *dbconnector.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Phone == phone {
			*user = *u
			return nil
		}
	}
	return dbconnector.ErrNoRows
}

func (f *fakeStorage) GetUserByReferralCode(_ context.Context, code string, user *dbconnector.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.ReferralCode == code {
			*user = *u
			return nil
		}
	}
	return dbconnector.ErrNoRows
}

func (f *fakeStorage) AddUser(_ context.Context, newUser *dbconnector.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	newUser.ID = f.id()
	newUser.CreatedAt = time.Now()
	if newUser.Role == "" {
		newUser.Role = dbconnector.RoleUser
	}
	copied := *newUser
	f.users = append(f.users, &copied)
	return nil
}

func (f *fakeStorage) GetActiveProducts(_ context.Context, products *[]dbconnector.Product) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.products {
		if p.Active {
			*products = append(*products, *p)
		}
	}
	return nil
}

func (f *fakeStorage) GetProductByID(_ context.Context, productID uint, product *dbconnector.Product) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.products {
		if p.ID == productID {
			*product = *p
			return nil
		}
	}
	return dbconnector.ErrNoRows
}

func (f *fakeStorage) GetActiveRate(_ context.Context, productID uint, at time.Time, rate *dbconnector.ProductCashbackRate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	found := false
	for _, r := range f.rates {
		if r.ProductID != productID || r.ValidFrom.After(at) {
			continue
		}
		if r.ValidTo != nil && r.ValidTo.Before(at) {
			continue
		}
		if !found || r.ValidFrom.After(rate.ValidFrom) {
			*rate = r
			found = true
		}
	}
	if !found {
		return dbconnector.ErrNoRows
	}
	return nil
}

func (f *fakeStorage) GetOrderByID(_ context.Context, orderID uint, order *dbconnector.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, o := range f.orders {
		if o.ID == orderID {
			*order = *o
			for _, u := range f.users {
				if u.ID == o.UserID {
					order.User = *u
				}
			}
			return nil
		}
	}
	return dbconnector.ErrNoRows
}

func (f *fakeStorage) GetOrdersByUserID(_ context.Context, userID uint, orders *[]dbconnector.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, o := range f.orders {
		if o.UserID == userID {
			*orders = append(*orders, *o)
		}
	}
	return nil
}

func (f *fakeStorage) UpdateOrder(_ context.Context, updOrder *dbconnector.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, o := range f.orders {
		if o.ID == updOrder.ID {
			copied := *updOrder
			f.orders[i] = &copied
			return nil
		}
	}
	return dbconnector.ErrNoRows
}

func (f *fakeStorage) CreateOrderTransaction(_ context.Context, order *dbconnector.Order, items []dbconnector.OrderItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	// Сначала проверяем все списания, потом применяем - как транзакция
	for _, item := range items {
		product := f.findProduct(item.ProductID)
		if product == nil || product.Stock < item.Quantity {
			return domerr.ErrInsufficientStock
		}
	}
	order.ID = f.id()
	order.CreatedAt = time.Now()
	for i := range items {
		items[i].ID = f.id()
		items[i].OrderID = order.ID
		f.findProduct(items[i].ProductID).Stock -= items[i].Quantity
	}
	copied := *order
	copied.Items = items
	f.orders = append(f.orders, &copied)
	return nil
}

func (f *fakeStorage) CreateBonusOrderTransaction(ctx context.Context, order *dbconnector.Order, item *dbconnector.OrderItem) error {
	return f.CreateOrderTransaction(ctx, order, []dbconnector.OrderItem{*item})
}

func (f *fakeStorage) findProduct(productID uint) *dbconnector.Product {
	for _, p := range f.products {
		if p.ID == productID {
			return p
		}
	}
	return nil
}

func (f *fakeStorage) CountCashbackEntriesByType(_ context.Context, userID uint, entryType string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var count int64
	for _, e := range f.entries {
		if e.UserID == userID && e.Type == entryType {
			count++
		}
	}
	return count, nil
}

func (f *fakeStorage) CountOwnPurchaseEntries(_ context.Context, orderID uint) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var count int64
	for _, e := range f.entries {
		if e.OrderID != nil && *e.OrderID == orderID && e.Type == dbconnector.CashbackTypeOwnPurchase {
			count++
		}
	}
	return count, nil
}

func (f *fakeStorage) AddCashbackEntries(_ context.Context, entries []dbconnector.CashbackEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range entries {
		entries[i].ID = f.id()
		entries[i].CreatedAt = time.Now()
		f.entries = append(f.entries, entries[i])
	}
	return nil
}

func (f *fakeStorage) PromoteMaturedCashback(_ context.Context, now time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.entries {
		if f.entries[i].Status == dbconnector.CashbackStatusPending && !f.entries[i].AvailableAt.After(now) {
			f.entries[i].Status = dbconnector.CashbackStatusAvailable
		}
	}
	return nil
}

func (f *fakeStorage) GetCashbackEntriesByUserID(_ context.Context, userID uint, entries *[]dbconnector.CashbackEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.entries {
		if e.UserID == userID {
			*entries = append(*entries, e)
		}
	}
	return nil
}

func (f *fakeStorage) SumCashbackByStatus(_ context.Context, userID uint, status string) (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sum := decimal.Zero
	for _, e := range f.entries {
		if e.UserID == userID && e.Status == status {
			sum = sum.Add(e.Amount)
		}
	}
	return sum, nil
}

func (f *fakeStorage) MarkAvailableAsPaidOut(_ context.Context, userID uint) (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := decimal.Zero
	for i := range f.entries {
		if f.entries[i].UserID == userID && f.entries[i].Status == dbconnector.CashbackStatusAvailable {
			total = total.Add(f.entries[i].Amount)
			f.entries[i].Status = dbconnector.CashbackStatusPaidOut
		}
	}
	return total, nil
}

func (f *fakeStorage) CountReferrals(_ context.Context, referrerID uint) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var count int64
	for _, u := range f.users {
		if u.ReferredByID != nil && *u.ReferredByID == referrerID {
			count++
		}
	}
	return count, nil
}

func (f *fakeStorage) hasDeliveredSince(userID uint, since time.Time) bool {
	for _, o := range f.orders {
		if o.UserID == userID && o.Status == dbconnector.OrderStatusDelivered &&
			o.DeliveredAt != nil && !o.DeliveredAt.Before(since) {
			return true
		}
	}
	return false
}

func (f *fakeStorage) CountReferralsWithDeliveredSince(_ context.Context, referrerID uint, since time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var count int64
	for _, u := range f.users {
		if u.ReferredByID != nil && *u.ReferredByID == referrerID && f.hasDeliveredSince(u.ID, since) {
			count++
		}
	}
	return count, nil
}

func (f *fakeStorage) GetReferralsWithPurchases(_ context.Context, referrerID uint, referrals *[]dbconnector.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	purchased := map[string]bool{}
	for _, s := range dbconnector.PurchasedStatuses {
		purchased[s] = true
	}
	for _, u := range f.users {
		if u.ReferredByID == nil || *u.ReferredByID != referrerID {
			continue
		}
		copied := *u
		copied.Orders = nil
		for _, o := range f.orders {
			if o.UserID == u.ID && purchased[o.Status] {
				copied.Orders = append(copied.Orders, *o)
			}
		}
		*referrals = append(*referrals, copied)
	}
	return nil
}

func (f *fakeStorage) GetQualifiedReferrals(_ context.Context, referrerID uint, since time.Time, referrals *[]dbconnector.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.ReferredByID == nil || *u.ReferredByID != referrerID || !f.hasDeliveredSince(u.ID, since) {
			continue
		}
		copied := *u
		copied.Orders = nil
		for _, o := range f.orders {
			if o.UserID == u.ID && o.Status == dbconnector.OrderStatusDelivered &&
				o.DeliveredAt != nil && !o.DeliveredAt.Before(since) {
				copied.Orders = append(copied.Orders, *o)
			}
		}
		sort.Slice(copied.Orders, func(i, j int) bool {
			return copied.Orders[i].DeliveredAt.After(*copied.Orders[j].DeliveredAt)
		})
		*referrals = append(*referrals, copied)
	}
	return nil
}

func (f *fakeStorage) CountBonusOrders(_ context.Context, userID uint) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var count int64
	for _, o := range f.orders {
		if o.UserID == userID && o.IsFreePhoneBonus {
			count++
		}
	}
	return count, nil
}

func (f *fakeStorage) GetLastBonusDeliveredAt(_ context.Context, userID uint) (*time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var last *time.Time
	for _, o := range f.orders {
		if o.UserID == userID && o.IsFreePhoneBonus &&
			o.Status == dbconnector.OrderStatusDelivered && o.DeliveredAt != nil {
			if last == nil || o.DeliveredAt.After(*last) {
				last = o.DeliveredAt
			}
		}
	}
	return last, nil
}

func (f *fakeStorage) GetUsersWithReferrals(_ context.Context, users *[]dbconnector.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Role != dbconnector.RoleUser {
			continue
		}
		for _, r := range f.users {
			if r.ReferredByID != nil && *r.ReferredByID == u.ID {
				*users = append(*users, *u)
				break
			}
		}
	}
	return nil
}

func (f *fakeStorage) AddReferralClick(_ context.Context, click *dbconnector.ReferralClick) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	click.ID = f.id()
	f.clicks = append(f.clicks, *click)
	return nil
}
