package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"codearena-service/internal/app"
	"codearena-service/internal/domain"
	"codearena-service/internal/infra/memory"
)

func newAuthService() (*app.AuthService, *memory.TeamStore) {
	teams := memory.NewTeamStore(memory.NewSubmissionLog())
	auth := app.NewAuthService(teams, app.AuthConfig{
		Secret:        "test-secret",
		TokenTTL:      time.Hour,
		AdminUser:     "admin",
		AdminPassword: "letmein",
	})
	return auth, teams
}

func validRegistration(name string) app.RegisterInput {
	return app.RegisterInput{
		TeamName:     name,
		Member1Name:  "Ada",
		Member1Email: "ada@example.com",
		Member2Name:  "Grace",
		Member2Email: "grace@example.com",
		LeaderName:   "Ada",
		LeaderPhone:  "123456",
		Password:     "hunter22",
	}
}

func TestRegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	auth, _ := newAuthService()

	team, err := auth.Register(ctx, validRegistration("alpha"))
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if team.ID == "" || team.CompetitionStatus != domain.StatusRegistered {
		t.Fatalf("unexpected team: %+v", team)
	}
	if !team.Unlocked[0] || team.Unlocked[1] {
		t.Fatalf("expected only q1 unlocked at registration, got %v", team.Unlocked)
	}
	if team.PasswordHash == "hunter22" {
		t.Fatalf("password stored in clear")
	}

	token, logged, err := auth.Login(ctx, "alpha", "hunter22")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if logged.ID != team.ID {
		t.Fatalf("login returned wrong team")
	}

	claims, err := auth.ParseToken(token)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if claims.Subject != team.ID || claims.Role != "team" || claims.TeamName != "alpha" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestRegisterValidation(t *testing.T) {
	ctx := context.Background()
	auth, _ := newAuthService()

	cases := []struct {
		name   string
		mutate func(*app.RegisterInput)
	}{
		{"blank team name", func(in *app.RegisterInput) { in.TeamName = "  " }},
		{"missing member", func(in *app.RegisterInput) { in.Member2Name = "" }},
		{"duplicate emails", func(in *app.RegisterInput) { in.Member2Email = "ADA@example.com" }},
		{"short password", func(in *app.RegisterInput) { in.Password = "abc" }},
	}
	for _, tc := range cases {
		in := validRegistration("team-" + tc.name)
		tc.mutate(&in)
		if _, err := auth.Register(ctx, in); !errors.Is(err, domain.ErrValidation) {
			t.Fatalf("%s: expected ErrValidation, got %v", tc.name, err)
		}
	}
}

func TestRegisterDuplicateName(t *testing.T) {
	ctx := context.Background()
	auth, _ := newAuthService()

	if _, err := auth.Register(ctx, validRegistration("alpha")); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if _, err := auth.Register(ctx, validRegistration("alpha")); !errors.Is(err, domain.ErrTeamExists) {
		t.Fatalf("expected ErrTeamExists, got %v", err)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	ctx := context.Background()
	auth, _ := newAuthService()

	if _, err := auth.Register(ctx, validRegistration("alpha")); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, _, err := auth.Login(ctx, "alpha", "wrong"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for wrong password, got %v", err)
	}
	if _, _, err := auth.Login(ctx, "ghost", "hunter22"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown team, got %v", err)
	}
}

func TestAdminLogin(t *testing.T) {
	auth, _ := newAuthService()

	token, err := auth.AdminLogin("admin", "letmein")
	if err != nil {
		t.Fatalf("admin login: %v", err)
	}
	claims, err := auth.ParseToken(token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.Role != "admin" {
		t.Fatalf("expected admin role, got %q", claims.Role)
	}

	if _, err := auth.AdminLogin("admin", "nope"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestParseTokenRejectsForeignSignature(t *testing.T) {
	auth, _ := newAuthService()
	other := app.NewAuthService(memory.NewTeamStore(memory.NewSubmissionLog()), app.AuthConfig{
		Secret:        "other-secret",
		AdminUser:     "admin",
		AdminPassword: "letmein",
	})

	foreign, err := other.AdminLogin("admin", "letmein")
	if err != nil {
		t.Fatalf("issue foreign token: %v", err)
	}
	if _, err := auth.ParseToken(foreign); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for foreign signature, got %v", err)
	}
	if _, err := auth.ParseToken("not-a-jwt"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for garbage token, got %v", err)
	}
}

func TestAdminLoginDisabledWhenUnconfigured(t *testing.T) {
	teams := memory.NewTeamStore(memory.NewSubmissionLog())
	auth := app.NewAuthService(teams, app.AuthConfig{Secret: "s"})

	if _, err := auth.AdminLogin("", ""); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials when admin user unset, got %v", err)
	}
}
