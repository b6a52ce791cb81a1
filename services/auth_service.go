package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/nexushq/nexus/models"
	"github.com/nexushq/nexus/pkg"
	"github.com/nexushq/nexus/repository"
)

// AuthService, kimlik ve hesap yaşam döngüsü iş mantığı.
//
// Access token stateless JWT'dir ama claim'lerde session ID taşır —
// logout/hesap silme session satırını düşürünce token da ölür
// (ValidateAccessToken her çağrıda session varlığını kontrol eder).
type AuthService interface {
	Register(ctx context.Context, req *models.RegisterRequest) (*AuthTokens, error)
	Login(ctx context.Context, req *models.LoginRequest) (*AuthTokens, error)
	Refresh(ctx context.Context, refreshToken string) (*AuthTokens, error)
	Logout(ctx context.Context, refreshToken string) error
	ValidateAccessToken(ctx context.Context, tokenString string) (*models.TokenClaims, error)

	GetUser(ctx context.Context, userID string) (*models.User, error)
	UpdateProfile(ctx context.Context, userID string, req *models.UpdateProfileRequest) (*models.User, error)
	SetAvatar(ctx context.Context, userID string, avatar *string) (*models.User, error)
	PersistStatus(ctx context.Context, userID string, status models.UserStatus) error
	// DeleteAccount, hesabı anonimleştirir: mesajlar tombstone author ile
	// kalır, tüm oturumlar düşer.
	DeleteAccount(ctx context.Context, userID, password string) error
}

// AuthTokens, login/register sonrası dönen token çifti.
type AuthTokens struct {
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
	User         models.User `json:"user"`
}

const bcryptCost = 12

type authService struct {
	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
	jwtSecret   []byte
	accessExp   time.Duration
	refreshExp  time.Duration
}

// NewAuthService, constructor.
func NewAuthService(
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
	jwtSecret string,
	accessExp, refreshExp time.Duration,
) AuthService {
	return &authService{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		jwtSecret:   []byte(jwtSecret),
		accessExp:   accessExp,
		refreshExp:  refreshExp,
	}
}

func (s *authService) Register(ctx context.Context, req *models.RegisterRequest) (*AuthTokens, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", pkg.ErrBadRequest, err.Error())
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Username:     req.Username,
		PasswordHash: string(hash),
		Status:       models.UserStatusOnline,
		Color:        req.Color,
	}
	if user.Color == "" {
		user.Color = "#5865f2"
	}
	if user.AvatarGlyph == "" && len(req.Username) > 0 {
		user.AvatarGlyph = string([]rune(req.Username)[0])
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err // ErrAlreadyExists olabilir
	}

	log.Printf("[auth] user registered: %s", user.Username)
	return s.issueTokens(ctx, user)
}

func (s *authService) Login(ctx context.Context, req *models.LoginRequest) (*AuthTokens, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", pkg.ErrBadRequest, err.Error())
	}

	user, err := s.userRepo.GetByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, pkg.ErrNotFound) {
			// Kullanıcı yok ile şifre yanlış ayırt edilmez — enumeration önlenir.
			return nil, fmt.Errorf("%w: invalid credentials", pkg.ErrUnauthorized)
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, fmt.Errorf("%w: invalid credentials", pkg.ErrUnauthorized)
	}

	return s.issueTokens(ctx, user)
}

func (s *authService) Refresh(ctx context.Context, refreshToken string) (*AuthTokens, error) {
	session, err := s.sessionRepo.GetByRefreshToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, pkg.ErrNotFound) {
			return nil, fmt.Errorf("%w: invalid refresh token", pkg.ErrUnauthorized)
		}
		return nil, err
	}
	if time.Now().After(session.ExpiresAt) {
		_ = s.sessionRepo.Delete(ctx, session.ID)
		return nil, fmt.Errorf("%w: refresh token expired", pkg.ErrTokenExpired)
	}

	user, err := s.userRepo.GetByID(ctx, session.UserID)
	if err != nil {
		return nil, err
	}
	if user.DeletedAt != nil {
		return nil, fmt.Errorf("%w: account no longer exists", pkg.ErrUnauthorized)
	}

	// Rotation: eski oturum düşer, yenisi açılır.
	if err := s.sessionRepo.Delete(ctx, session.ID); err != nil {
		return nil, err
	}
	return s.issueTokens(ctx, user)
}

func (s *authService) Logout(ctx context.Context, refreshToken string) error {
	session, err := s.sessionRepo.GetByRefreshToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, pkg.ErrNotFound) {
			return nil // idempotent — zaten çıkmış
		}
		return err
	}
	return s.sessionRepo.Delete(ctx, session.ID)
}

// ValidateAccessToken, JWT imza + süre + session varlığı kontrolü yapar.
func (s *authService) ValidateAccessToken(ctx context.Context, tokenString string) (*models.TokenClaims, error) {
	claims := &models.TokenClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: access token expired", pkg.ErrTokenExpired)
		}
		return nil, fmt.Errorf("%w: invalid token", pkg.ErrUnauthorized)
	}
	if !token.Valid {
		return nil, fmt.Errorf("%w: invalid token", pkg.ErrUnauthorized)
	}

	// Session düşmüşse (logout, hesap silme) token da geçersizdir.
	if _, err := s.sessionRepo.GetByID(ctx, claims.SessionID); err != nil {
		if errors.Is(err, pkg.ErrNotFound) {
			return nil, fmt.Errorf("%w: session revoked", pkg.ErrUnauthorized)
		}
		return nil, err
	}
	return claims, nil
}

func (s *authService) GetUser(ctx context.Context, userID string) (*models.User, error) {
	return s.userRepo.GetByID(ctx, userID)
}

func (s *authService) UpdateProfile(ctx context.Context, userID string, req *models.UpdateProfileRequest) (*models.User, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", pkg.ErrBadRequest, err.Error())
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if req.Color != nil {
		user.Color = *req.Color
	}
	if req.AvatarGlyph != nil {
		user.AvatarGlyph = *req.AvatarGlyph
	}
	if req.Settings != nil {
		user.Settings = *req.Settings
	}

	if err := s.userRepo.UpdateProfile(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *authService) SetAvatar(ctx context.Context, userID string, avatar *string) (*models.User, error) {
	if err := s.userRepo.UpdateAvatar(ctx, userID, avatar); err != nil {
		return nil, err
	}
	return s.userRepo.GetByID(ctx, userID)
}

func (s *authService) PersistStatus(ctx context.Context, userID string, status models.UserStatus) error {
	if !status.Valid() {
		return fmt.Errorf("%w: invalid status", pkg.ErrBadRequest)
	}
	return s.userRepo.UpdateStatus(ctx, userID, status)
}

func (s *authService) DeleteAccount(ctx context.Context, userID, password string) error {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return fmt.Errorf("%w: invalid credentials", pkg.ErrUnauthorized)
	}

	placeholder := "deleted-user-" + randomToken(4)
	if err := s.userRepo.Anonymize(ctx, userID, placeholder); err != nil {
		return err
	}
	if err := s.sessionRepo.DeleteByUser(ctx, userID); err != nil {
		return err
	}

	log.Printf("[auth] account deleted: %s", userID)
	return nil
}

// issueTokens, access + refresh çifti üretir ve session kaydı açar.
func (s *authService) issueTokens(ctx context.Context, user *models.User) (*AuthTokens, error) {
	session := &models.Session{
		UserID:       user.ID,
		RefreshToken: randomToken(32),
		ExpiresAt:    time.Now().Add(s.refreshExp),
	}
	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, err
	}

	now := time.Now()
	claims := &models.TokenClaims{
		UserID:    user.ID,
		Username:  user.Username,
		SessionID: session.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessExp)),
			Subject:   user.ID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign access token: %w", err)
	}

	return &AuthTokens{
		AccessToken:  signed,
		RefreshToken: session.RefreshToken,
		User:         *user,
	}, nil
}

// randomToken, n byte'lık kriptografik rastgele hex string üretir.
func randomToken(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Sprintf("crypto/rand failed: %v", err))
	}
	return hex.EncodeToString(b)
}
