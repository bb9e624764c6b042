package app

import (
	"context"
	"crypto/subtle"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"codearena-service/internal/domain"
)

// AuthConfig carries the signing secret and admin credentials.
type AuthConfig struct {
	Secret        string
	TokenTTL      time.Duration
	AdminUser     string
	AdminPassword string
}

// AuthService handles team registration and JWT issuance. The competition core
// trusts the identity this layer puts on the request context.
type AuthService struct {
	teams TeamStore
	cfg   AuthConfig
	now   func() time.Time
}

func NewAuthService(teams TeamStore, cfg AuthConfig) *AuthService {
	if cfg.TokenTTL == 0 {
		cfg.TokenTTL = 24 * time.Hour
	}
	return &AuthService{teams: teams, cfg: cfg, now: time.Now}
}

// Claims is the JWT payload for both team and admin tokens.
type Claims struct {
	jwt.RegisteredClaims
	Role     string `json:"role"`
	TeamName string `json:"teamName,omitempty"`
}

// RegisterInput is a team registration request.
type RegisterInput struct {
	TeamName     string `json:"teamName"`
	Member1Name  string `json:"member1Name"`
	Member1Email string `json:"member1Email"`
	Member2Name  string `json:"member2Name"`
	Member2Email string `json:"member2Email"`
	LeaderName   string `json:"leaderName"`
	LeaderPhone  string `json:"leaderPhone"`
	Password     string `json:"password"`
}

func (in RegisterInput) validate() error {
	switch {
	case strings.TrimSpace(in.TeamName) == "",
		strings.TrimSpace(in.Member1Name) == "",
		strings.TrimSpace(in.Member1Email) == "",
		strings.TrimSpace(in.Member2Name) == "",
		strings.TrimSpace(in.Member2Email) == "",
		strings.TrimSpace(in.LeaderName) == "":
		return domain.ErrValidation
	case strings.EqualFold(in.Member1Email, in.Member2Email):
		return domain.ErrValidation
	case len(in.Password) < 6:
		return domain.ErrValidation
	}
	return nil
}

// Register creates a team with q1 unlocked and everything else at defaults.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (domain.Team, error) {
	if err := in.validate(); err != nil {
		return domain.Team{}, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return domain.Team{}, err
	}

	now := s.now()
	team := domain.Team{
		ID:                uuid.NewString(),
		TeamName:          strings.TrimSpace(in.TeamName),
		Member1Name:       strings.TrimSpace(in.Member1Name),
		Member1Email:      strings.TrimSpace(in.Member1Email),
		Member2Name:       strings.TrimSpace(in.Member2Name),
		Member2Email:      strings.TrimSpace(in.Member2Email),
		LeaderName:        strings.TrimSpace(in.LeaderName),
		LeaderPhone:       strings.TrimSpace(in.LeaderPhone),
		PasswordHash:      string(hash),
		CompetitionStatus: domain.StatusRegistered,
		Unlocked:          [domain.SlotCount]bool{0: true},
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.teams.Create(ctx, &team); err != nil {
		return domain.Team{}, err
	}
	return team, nil
}

// Login verifies team credentials and returns a signed team token.
func (s *AuthService) Login(ctx context.Context, teamName, password string) (string, domain.Team, error) {
	team, err := s.teams.GetByName(ctx, strings.TrimSpace(teamName))
	if err != nil {
		return "", domain.Team{}, domain.ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(team.PasswordHash), []byte(password)) != nil {
		return "", domain.Team{}, domain.ErrInvalidCredentials
	}
	token, err := s.issue(team.ID, team.TeamName, "team")
	if err != nil {
		return "", domain.Team{}, err
	}
	return token, team, nil
}

// AdminLogin checks the configured admin credentials and returns an
// admin-scoped token.
func (s *AuthService) AdminLogin(username, password string) (string, error) {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(s.cfg.AdminUser)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(s.cfg.AdminPassword)) == 1
	if s.cfg.AdminUser == "" || !userOK || !passOK {
		return "", domain.ErrInvalidCredentials
	}
	return s.issue("admin", "", "admin")
}

func (s *AuthService) issue(subject, teamName, role string) (string, error) {
	now := s.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.TokenTTL)),
		},
		Role:     role,
		TeamName: teamName,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.Secret))
}

// ParseToken validates a signed token and returns its claims.
func (s *AuthService) ParseToken(raw string) (Claims, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, domain.ErrInvalidCredentials
		}
		return []byte(s.cfg.Secret), nil
	})
	if err != nil || !token.Valid {
		return Claims{}, domain.ErrInvalidCredentials
	}
	return claims, nil
}
