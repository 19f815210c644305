package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/theheadmen/phonemart/internal/dbconnector"
	domerr "github.com/theheadmen/phonemart/internal/errors"
	"github.com/theheadmen/phonemart/internal/models"
)

func generateReferralCode() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

// RegisterUser создает пользователя. Реферер определяется по коду один
// раз, здесь, и больше не меняется. Своего кода у нового пользователя
// еще нет, так что сослаться на себя невозможно. Неизвестный код молча
// игнорируется.
func (s *Service) RegisterUser(ctx context.Context, req models.RegisterRequest) (*dbconnector.User, error) {
	var existing dbconnector.User
	err := s.storage.GetUserByPhone(ctx, req.Phone, &existing)
	if err == nil {
		return nil, domerr.ErrPhoneExists
	}
	if !errors.Is(err, dbconnector.ErrNoRows) {
		return nil, err
	}
	err = s.storage.GetUserByEmail(ctx, req.Email, &existing)
	if err == nil {
		return nil, domerr.ErrEmailExists
	}
	if !errors.Is(err, dbconnector.ErrNoRows) {
		return nil, err
	}

	referredByID, err := s.ResolveReferralCode(ctx, req.ReferralCode)
	if err != nil {
		return nil, err
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := dbconnector.User{
		Email:        req.Email,
		Password:     string(hashedPassword),
		Name:         req.Name,
		Phone:        req.Phone,
		Role:         dbconnector.RoleUser,
		ReferralCode: generateReferralCode(),
		ReferredByID: referredByID,
	}
	if err := s.storage.AddUser(ctx, &user); err != nil {
		return nil, err
	}
	s.logger.Info("user registered",
		zap.Uint("user", user.ID),
		zap.Bool("referred", referredByID != nil))
	return &user, nil
}

func (s *Service) LoginUser(ctx context.Context, req models.LoginRequest) (*dbconnector.User, error) {
	var user dbconnector.User
	err := s.storage.GetUserByEmail(ctx, req.Email, &user)
	if err != nil {
		if errors.Is(err, dbconnector.ErrNoRows) {
			return nil, domerr.ErrInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, domerr.ErrInvalidCredentials
	}
	if user.Blocked {
		return nil, domerr.ErrUserBlocked
	}
	return &user, nil
}
