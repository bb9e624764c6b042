package cli

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"codearena-service/internal/app"
	"codearena-service/internal/config"
	"codearena-service/internal/domain"
	"codearena-service/internal/infra/memory"
	infrapg "codearena-service/internal/infra/postgres"
	infraredis "codearena-service/internal/infra/redis"
	transport "codearena-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the competition server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	if err := domain.ValidateTransitions(); err != nil {
		return err
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	memSubs := memory.NewSubmissionLog()
	var teams app.TeamStore = memory.NewTeamStore(memSubs)
	var subs app.SubmissionLog = memSubs
	if cfg.Postgres.URL != "" {
		sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.Postgres.URL)))
		db := bun.NewDB(sqldb, pgdialect.New())
		teams = infrapg.NewTeamStore(db)
		subs = infrapg.NewSubmissionLog(db)
	}

	var loader memory.BankLoader = memory.NewStaticBankLoader(sampleRound2(), sampleRound3())
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		loader = infrapg.NewBankLoader(pool)
	}

	bankTTL := config.TTLDuration(cfg.QuestionBank.TTL, 10*time.Minute)
	var bank app.QuestionBank
	if redisClient != nil {
		bank = infraredis.NewQuestionBank(redisClient, loader, bankTTL)
	} else {
		bank = memory.NewQuestionBank(loader, bankTTL)
	}

	var codes app.RoundCodeStore = memory.NewRoundCodeStore()
	if redisClient != nil {
		codes = infraredis.NewRoundCodeStore(redisClient)
	}

	auth := app.NewAuthService(teams, app.AuthConfig{
		Secret:        cfg.Auth.Secret,
		TokenTTL:      config.TTLDuration(cfg.Auth.TokenTTL, 24*time.Hour),
		AdminUser:     cfg.Auth.AdminUser,
		AdminPassword: cfg.Auth.AdminPassword,
	})
	progression := app.NewProgressionService(teams, subs, bank)
	round3 := app.NewRound3Service(teams, subs, bank, codes)
	lifecycle := app.NewLifecycleService(teams, codes, round3)
	admin := app.NewAdminService(teams)
	query := app.NewQueryService(teams, subs)

	handler := transport.NewHandler(auth, progression, round3, lifecycle, admin, query, bank)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      cors.AllowAll().Handler(handler.Routes()),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting codearena service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// sampleRound2 provides minimal demo content; production reads the bank from Postgres.
func sampleRound2() domain.Round2Set {
	return domain.Round2Set{
		Aptitude: []domain.AptitudeQuestion{
			{ID: "apt-1", Prompt: "What is the output of len(\"go\")?", Options: []string{"1", "2", "3"}, Answer: 1},
			{ID: "apt-2", Prompt: "Which data structure gives O(1) average lookup?", Options: []string{"slice", "map", "list"}, Answer: 1},
			{ID: "apt-3", Prompt: "What does a nil map read return?", Options: []string{"panic", "zero value", "error"}, Answer: 1},
		},
		Coding: []domain.CodingChallenge{
			{Type: domain.QuestionDebug, Title: "Fix the off-by-one", Description: "The loop skips the last element.", StarterCode: "for i := 0; i < len(xs)-1; i++ {"},
			{Type: domain.QuestionTrace, Title: "Trace the recursion", Description: "Write the call sequence for f(3).", StarterCode: "func f(n int) int {"},
			{Type: domain.QuestionProgram, Title: "Balanced brackets", Description: "Report whether the input is balanced.", StarterCode: "func balanced(s string) bool {"},
		},
	}
}

func sampleRound3() domain.Round3Set {
	return domain.Round3Set{
		Orders: []domain.QuestionOrder{
			{ID: "order-a", Name: "Alpha", Sequence: []int{0, 1}},
			{ID: "order-b", Name: "Beta", Sequence: []int{1, 0}},
		},
		Questions: []domain.Round3Question{
			{
				ID:    "r3-1",
				Title: "Reorder the sort",
				Blocks: []domain.CodeBlock{
					{Index: 0, Code: "func sortInts(xs []int) {"},
					{Index: 1, IsPuzzle: true, Options: []string{"sort.Ints(xs)", "sort.Strings(xs)"}, Answer: 0},
					{Index: 2, Code: "}"},
				},
			},
			{
				ID:    "r3-2",
				Title: "Channel close",
				Blocks: []domain.CodeBlock{
					{Index: 0, Code: "ch := make(chan int)"},
					{Index: 1, IsPuzzle: true, Options: []string{"close(ch)", "ch.Close()"}, Answer: 0},
				},
			},
		},
	}
}
