package services

import (
	"chat-live/auth"
	"chat-live/domain"
	"chat-live/errors"
	"chat-live/infrastructure/storage"
	"context"
	"fmt"
	"strings"
)

type IAuthService interface {
	Register(ctx context.Context, req auth.RegisterRequest) (Credentials, error)
	Login(ctx context.Context, req auth.LoginRequest) (Credentials, error)
	Me(ctx context.Context, id domain.UserID) (domain.User, error)
}

// Credentials is what a client needs to open a WebSocket.
type Credentials struct {
	UserID domain.UserID `json:"userId"`
	Name   string        `json:"name"`
	Token  string        `json:"token"`
}

type AuthService struct {
	userRepository storage.IUserRepository
	tokens         *auth.TokenManager
}

func NewAuthService(repo storage.IUserRepository, tokens *auth.TokenManager) *AuthService {
	return &AuthService{userRepository: repo, tokens: tokens}
}

func (s *AuthService) Register(ctx context.Context, req auth.RegisterRequest) (Credentials, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)

	// Checked before any expensive cryptographic operation
	if err := auth.ValidateRegister(req); err != nil {
		return Credentials{}, err
	}

	hashedPassword, err := auth.HashPassword(req.Password)
	if err != nil {
		return Credentials{}, fmt.Errorf("hashing failed: %w", err)
	}

	user, err := s.userRepository.CreateUser(ctx, req.Name, req.Email, hashedPassword)
	if err != nil {
		return Credentials{}, err
	}
	return s.issue(user)
}

func (s *AuthService) Login(ctx context.Context, req auth.LoginRequest) (Credentials, error) {
	if err := auth.ValidateLogin(req); err != nil {
		return Credentials{}, errors.ErrInvalidCredentials
	}

	user, err := s.userRepository.GetUserByEmail(ctx, strings.TrimSpace(req.Email))
	if err != nil {
		// Same error as a bad password, no user enumeration
		return Credentials{}, errors.ErrInvalidCredentials
	}

	match, err := auth.ComparePassword(req.Password, user.PasswordHash)
	if err != nil || !match {
		return Credentials{}, errors.ErrInvalidCredentials
	}
	return s.issue(user)
}

func (s *AuthService) Me(ctx context.Context, id domain.UserID) (domain.User, error) {
	return s.userRepository.GetUserByID(ctx, id)
}

func (s *AuthService) issue(user domain.User) (Credentials, error) {
	token, err := s.tokens.GenerateToken(user)
	if err != nil {
		return Credentials{}, err
	}
	return Credentials{UserID: user.ID, Name: user.Name, Token: token}, nil
}
