package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/theheadmen/phonemart/internal/dbconnector"
	"github.com/theheadmen/phonemart/internal/logger"
	"github.com/theheadmen/phonemart/internal/models"
	"github.com/theheadmen/phonemart/internal/service"
)

type ServerSystem struct {
	Storage service.Storage
	Service *service.Service
	Logger  *zap.Logger
	BaseURL string
}

func NewServerSystem(storage service.Storage, svc *service.Service, zaplog *zap.Logger, baseURL string) *ServerSystem {
	return &ServerSystem{Storage: storage, Service: svc, Logger: zaplog, BaseURL: baseURL}
}

func (ls *ServerSystem) MakeRouter() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/api/user/register", ls.RegisterUserHandler).Methods("POST")
	r.HandleFunc("/api/user/login", ls.LoginUserHandler).Methods("POST")
	r.HandleFunc("/api/products", ls.GetProductsHandler).Methods("GET")
	r.HandleFunc("/api/orders", ls.CreateOrderHandler).Methods("POST")
	r.HandleFunc("/api/orders", ls.GetOrdersHandler).Methods("GET")
	r.HandleFunc("/api/dashboard/cashback", ls.GetCashbackHandler).Methods("GET")
	r.HandleFunc("/api/dashboard/cashback/withdraw", ls.WithdrawCashbackHandler).Methods("POST")
	r.HandleFunc("/api/dashboard/referrals", ls.GetReferralsHandler).Methods("GET")
	r.HandleFunc("/api/referral/click", ls.ReferralClickHandler).Methods("POST")
	r.HandleFunc("/api/admin/orders/{id:[0-9]+}", ls.UpdateOrderStatusHandler).Methods("PATCH")
	r.HandleFunc("/api/admin/free-phone/candidates", ls.FreePhoneCandidatesHandler).Methods("GET")
	r.HandleFunc("/api/admin/free-phone/grant", ls.GrantFreePhoneHandler).Methods("POST")
	r.HandleFunc("/api/admin/free-phone/{userId:[0-9]+}", ls.FreePhoneUserHandler).Methods("GET")
	return r
}

func (ls *ServerSystem) MakeServer(serverAddr string) *http.Server {
	server := http.Server{
		Addr:    serverAddr,
		Handler: logger.RequestLogMdlw(ls.MakeRouter(), ls.Logger),
		// Good practice: enforce timeouts for servers you create!
		WriteTimeout: 15 * time.Second,
		ReadTimeout:  15 * time.Second,
		IdleTimeout:  15 * time.Second,
	}

	return &server
}

func (ls *ServerSystem) RegisterUserHandler(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Email == "" || req.Password == "" || req.Phone == "" {
		http.Error(w, "Email, password and phone are required", http.StatusBadRequest)
		return
	}

	user, err := ls.Service.RegisterUser(r.Context(), req)
	if err != nil {
		http.Error(w, err.Error(), statusForError(err))
		return
	}

	setSessionCookie(w, user.Email)
	writeJSON(w, http.StatusOK, models.UserResponse{
		ID:           user.ID,
		Email:        user.Email,
		Name:         user.Name,
		ReferralCode: user.ReferralCode,
	})
}

func (ls *ServerSystem) LoginUserHandler(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	user, err := ls.Service.LoginUser(r.Context(), req)
	if err != nil {
		http.Error(w, err.Error(), statusForError(err))
		return
	}

	setSessionCookie(w, user.Email)
	w.WriteHeader(http.StatusOK)
}

func (ls *ServerSystem) GetProductsHandler(w http.ResponseWriter, r *http.Request) {
	products, err := ls.Service.GetProducts(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, products)
}

func (ls *ServerSystem) CreateOrderHandler(w http.ResponseWriter, r *http.Request) {
	var user dbconnector.User
	if err := ls.AuthenticateUser(w, r, &user); err != nil {
		return
	}

	var req models.OrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	order, err := ls.Service.CreateOrder(r.Context(), user.ID, req)
	if err != nil {
		http.Error(w, err.Error(), statusForError(err))
		return
	}

	writeJSON(w, http.StatusCreated, models.OrderResponse{
		ID:          order.ID,
		OrderNumber: order.OrderNumber,
		Status:      order.Status,
		Total:       order.Total,
		CreatedAt:   order.CreatedAt,
	})
}

func (ls *ServerSystem) GetOrdersHandler(w http.ResponseWriter, r *http.Request) {
	var user dbconnector.User
	if err := ls.AuthenticateUser(w, r, &user); err != nil {
		return
	}

	orders, err := ls.Service.GetOrders(r.Context(), user.ID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if len(orders) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

func (ls *ServerSystem) GetCashbackHandler(w http.ResponseWriter, r *http.Request) {
	var user dbconnector.User
	if err := ls.AuthenticateUser(w, r, &user); err != nil {
		return
	}

	summary, err := ls.Service.GetCashbackSummary(r.Context(), user.ID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// WithdrawCashbackHandler выводит весь доступный кешбек пользователя.
func (ls *ServerSystem) WithdrawCashbackHandler(w http.ResponseWriter, r *http.Request) {
	var user dbconnector.User
	if err := ls.AuthenticateUser(w, r, &user); err != nil {
		return
	}

	amount, err := ls.Service.WithdrawCashback(r.Context(), user.ID)
	if err != nil {
		http.Error(w, err.Error(), statusForError(err))
		return
	}
	writeJSON(w, http.StatusOK, models.WithdrawResponse{PaidOut: amount})
}

func (ls *ServerSystem) GetReferralsHandler(w http.ResponseWriter, r *http.Request) {
	var user dbconnector.User
	if err := ls.AuthenticateUser(w, r, &user); err != nil {
		return
	}

	stats, err := ls.Service.GetReferralStats(r.Context(), user.ID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	stats.ReferralCode = user.ReferralCode
	stats.ReferralLink = service.ReferralURL(ls.BaseURL, user.ReferralCode)
	writeJSON(w, http.StatusOK, stats)
}

func (ls *ServerSystem) ReferralClickHandler(w http.ResponseWriter, r *http.Request) {
	var req models.ReferralClickRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.ReferralCode == "" {
		http.Error(w, "referral_code is required", http.StatusBadRequest)
		return
	}

	// Клик может прийти и от анонима
	var userID *uint
	var user dbconnector.User
	if cookie, err := r.Cookie(sessionCookieName); err == nil {
		if err := ls.Storage.GetUserByEmail(r.Context(), cookie.Value, &user); err == nil {
			userID = &user.ID
		}
	}

	err := ls.Service.TrackReferralClick(r.Context(), req, userID, r.RemoteAddr, r.UserAgent())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (ls *ServerSystem) UpdateOrderStatusHandler(w http.ResponseWriter, r *http.Request) {
	if err := ls.AuthenticateAdmin(w, r); err != nil {
		return
	}

	orderID, err := pathID(r, "id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var req models.OrderStatusUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	order, err := ls.Service.UpdateOrderStatus(r.Context(), orderID, req)
	if err != nil {
		http.Error(w, err.Error(), statusForError(err))
		return
	}

	writeJSON(w, http.StatusOK, models.OrderResponse{
		ID:               order.ID,
		OrderNumber:      order.OrderNumber,
		Status:           order.Status,
		Total:            order.Total,
		IsFreePhoneBonus: order.IsFreePhoneBonus,
		TrackingNumber:   order.TrackingNumber,
		DeliveredAt:      order.DeliveredAt,
		CreatedAt:        order.CreatedAt,
	})
}

func (ls *ServerSystem) FreePhoneCandidatesHandler(w http.ResponseWriter, r *http.Request) {
	if err := ls.AuthenticateAdmin(w, r); err != nil {
		return
	}

	candidates, err := ls.Service.GetFreePhoneCandidates(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, candidates)
}

// FreePhoneUserHandler - все, что админу нужно знать о кандидате перед
// выдачей: квалифицированные рефералы с заказами, счетчик, история
// бонусов и текущая возможность выдачи.
func (ls *ServerSystem) FreePhoneUserHandler(w http.ResponseWriter, r *http.Request) {
	if err := ls.AuthenticateAdmin(w, r); err != nil {
		return
	}

	userID, err := pathID(r, "userId")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	referrals, err := ls.Service.GetFreePhoneQualifiedReferrals(ctx, userID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	count, err := ls.Service.GetFreePhoneQualifiedReferralsCount(ctx, userID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	received, err := ls.Service.HasReceivedFreePhoneBonus(ctx, userID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	lastDeliveredAt, err := ls.Service.GetLastFreePhoneDeliveredAt(ctx, userID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	eligible, err := ls.Service.CanReceiveFreePhone(ctx, userID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"qualified_referrals":     referrals,
		"qualified_count":         count,
		"has_received_bonus":      received,
		"last_bonus_delivered_at": lastDeliveredAt,
		"can_receive_free_phone":  eligible,
	})
}

func (ls *ServerSystem) GrantFreePhoneHandler(w http.ResponseWriter, r *http.Request) {
	if err := ls.AuthenticateAdmin(w, r); err != nil {
		return
	}

	var req models.GrantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.UserID == 0 || req.ProductID == 0 {
		http.Error(w, "user_id and product_id are required", http.StatusBadRequest)
		return
	}

	order, err := ls.Service.CreateFreePhoneOrder(r.Context(), req.UserID, req.ProductID)
	if err != nil {
		http.Error(w, err.Error(), statusForError(err))
		return
	}

	writeJSON(w, http.StatusCreated, models.OrderResponse{
		ID:               order.ID,
		OrderNumber:      order.OrderNumber,
		Status:           order.Status,
		Total:            order.Total,
		IsFreePhoneBonus: order.IsFreePhoneBonus,
		CreatedAt:        order.CreatedAt,
	})
}
