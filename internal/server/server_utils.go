package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/theheadmen/phonemart/internal/dbconnector"
	domerr "github.com/theheadmen/phonemart/internal/errors"
)

const sessionCookieName = "session_token"

func setSessionCookie(w http.ResponseWriter, email string) {
	// В качестве токена используем email пользователя
	http.SetCookie(w, &http.Cookie{
		Name:  sessionCookieName,
		Value: email,
		Path:  "/",
	})
}

// AuthenticateUser authenticates the user and looks up the user in the database.
func (ls *ServerSystem) AuthenticateUser(w http.ResponseWriter, r *http.Request, user *dbconnector.User) error {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil {
		http.Error(w, "User not authenticated", http.StatusUnauthorized)
		return err
	}

	err = ls.Storage.GetUserByEmail(r.Context(), cookie.Value, user)
	if err != nil {
		http.Error(w, "User not found", http.StatusUnauthorized)
		return err
	}

	if user.Blocked {
		http.Error(w, "User is blocked", http.StatusForbidden)
		return domerr.ErrUserBlocked
	}

	return nil
}

// AuthenticateAdmin пускает дальше только админа.
func (ls *ServerSystem) AuthenticateAdmin(w http.ResponseWriter, r *http.Request) error {
	var user dbconnector.User
	if err := ls.AuthenticateUser(w, r, &user); err != nil {
		return err
	}
	if user.Role != dbconnector.RoleAdmin {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return domerr.ErrInvalidCredentials
	}
	return nil
}

func pathID(r *http.Request, name string) (uint, error) {
	id, err := strconv.ParseUint(mux.Vars(r)[name], 10, 64)
	return uint(id), err
}

func writeJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(payload)
}

func statusForError(err error) int {
	switch err {
	case domerr.ErrUserNotFound,
		domerr.ErrProductNotFound,
		domerr.ErrOrderNotFound:
		return http.StatusNotFound
	case domerr.ErrInsufficientStock,
		domerr.ErrNotEnoughReferrals,
		domerr.ErrBonusCooldown,
		domerr.ErrEmailExists,
		domerr.ErrPhoneExists:
		return http.StatusConflict
	case domerr.ErrInvalidCredentials,
		domerr.ErrUserBlocked:
		return http.StatusUnauthorized
	case domerr.ErrBelowMinWithdrawal:
		return http.StatusPaymentRequired
	case domerr.ErrEmptyOrder,
		domerr.ErrInvalidStatus:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
