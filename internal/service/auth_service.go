package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"sqltutor/internal/model"
	"sqltutor/internal/repository"
	"sqltutor/internal/sandbox"
	"sqltutor/internal/util"

	"github.com/rs/zerolog"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid google credentials")
)

type AuthService interface {
	LoginWithGoogle(ctx context.Context, idToken, accessToken string) (*model.User, string, error)
	Logout(ctx context.Context, userID string) error
	GetUser(ctx context.Context, userID string) (*model.User, error)
}

type authService struct {
	userRepo repository.UserRepository
	verifier GoogleVerifier
	sandbox  *sandbox.Manager
	secret   string
	tokenTTL time.Duration
	logger   zerolog.Logger
}

func NewAuthService(userRepo repository.UserRepository, verifier GoogleVerifier, sb *sandbox.Manager, secret string, tokenTTL time.Duration, logger zerolog.Logger) AuthService {
	return &authService{
		userRepo: userRepo,
		verifier: verifier,
		sandbox:  sb,
		secret:   secret,
		tokenTTL: tokenTTL,
		logger:   logger.With().Str("service", "AuthService").Logger(),
	}
}

// LoginWithGoogle verifies the Google credentials, upserts the user and issues
// an app access token. The ID token is preferred; the access token is used as
// a fallback and to fill in profile fields the tokeninfo API does not carry.
func (s *authService) LoginWithGoogle(ctx context.Context, idToken, accessToken string) (*model.User, string, error) {
	var gu *GoogleUser
	var err error

	if idToken != "" {
		gu, err = s.verifier.VerifyIDToken(ctx, idToken)
		if err != nil {
			s.logger.Warn().Err(err).Msg("ID token verification failed, falling back to access token")
		}
	}
	if gu == nil {
		if accessToken == "" {
			return nil, "", ErrInvalidCredentials
		}
		gu, err = s.verifier.FetchUserInfo(ctx, accessToken)
		if err != nil {
			s.logger.Error().Err(err).Msg("Failed to verify google credentials")
			return nil, "", ErrInvalidCredentials
		}
	} else if (gu.Name == "" || gu.Picture == "") && accessToken != "" {
		if info, err := s.verifier.FetchUserInfo(ctx, accessToken); err == nil && info.ID == gu.ID {
			gu.Name = info.Name
			gu.Picture = info.Picture
		}
	}

	user := &model.User{
		ID:    gu.ID,
		Email: gu.Email,
		Name:  gu.Name,
	}
	if gu.Picture != "" {
		user.PhotoURL = &gu.Picture
	}
	if err := s.userRepo.UpsertUser(ctx, user); err != nil {
		s.logger.Error().Err(err).Str("user_id", gu.ID).Msg("Failed to upsert user on login")
		return nil, "", fmt.Errorf("upsert user: %w", err)
	}

	token, err := util.CreateAccessToken(user.ID, user.Email, s.secret, s.tokenTTL)
	if err != nil {
		return nil, "", fmt.Errorf("issue access token: %w", err)
	}
	return user, token, nil
}

// Logout drops the user's sandbox databases. The JWT itself stays valid until
// expiry; there is no server-side token blacklist.
func (s *authService) Logout(ctx context.Context, userID string) error {
	s.sandbox.CloseUser(userID)
	s.logger.Info().Str("user_id", userID).Msg("User logged out, sandboxes dropped")
	return nil
}

func (s *authService) GetUser(ctx context.Context, userID string) (*model.User, error) {
	u, err := s.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrUserNotFound
	}
	return u, nil
}
