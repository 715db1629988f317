package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cheerful-reminder-backend/config"
	"cheerful-reminder-backend/controllers"
	"cheerful-reminder-backend/routes"
	"cheerful-reminder-backend/services"
	"cheerful-reminder-backend/utils"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	hashKey := flag.String("hash-scan-key", "", "print the bcrypt hash for a scan trigger key and exit")
	newKey := flag.Bool("new-scan-key", false, "print a random scan trigger key and exit")
	migrateProfiles := flag.Bool("migrate-profiles", false, "also create the profiles table (local development)")
	flag.Parse()

	if *newKey {
		fmt.Println(utils.GenerateScanKey())
		return
	}
	if *hashKey != "" {
		hash, err := utils.HashKey(*hashKey)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Println(hash)
		return
	}

	if err := godotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "No .env file found")
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log := config.NewLogger(cfg.LogLevel, cfg.LogConsole)

	db, err := config.ConnectDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("database")
	}
	if err := config.Migrate(db, *migrateProfiles); err != nil {
		log.Fatal().Err(err).Msg("migrate")
	}
	store := services.NewGormStore(db)

	deps := services.ScannerDeps{Reminders: store, Profiles: store}
	var mailer services.Mailer
	if m, err := services.NewResendMailer(cfg.ResendAPIKey, cfg.EmailFrom, cfg.EmailTestRecipient, cfg.EmailRatePerSec, log); err != nil {
		log.Error().Err(err).Msg("email delivery disabled")
	} else {
		mailer = m
		deps.Mailer = m
		if cfg.EmailTestRecipient != "" {
			log.Warn().Str("recipient", cfg.EmailTestRecipient).Msg("email test mode: all mail is redirected")
		}
	}
	if t := services.NewTwilioTexter(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioPhoneNumber); t != nil {
		deps.Texter = t
	} else {
		log.Info().Msg("sms delivery disabled")
	}
	if cfg.ScanDedup {
		deps.Dedup = store
	}

	scanner := services.NewScanner(deps, services.ScannerOptions{
		Concurrency:     cfg.ScanConcurrency,
		DispatchTimeout: cfg.DispatchTimeout(),
		Location:        cfg.Location(),
	}, log)

	quotes := &controllers.QuoteController{Timeout: 60 * time.Second}
	if q, err := services.NewQuoteService(cfg.DeepSeekAPIKey, cfg.DeepSeekModel, log); err != nil {
		log.Warn().Err(err).Msg("quote generation disabled")
	} else {
		quotes.Quotes = q
	}

	if cfg.JWTSecret == "" {
		log.Warn().Msg("SUPABASE_JWT_SECRET is empty; every API request will be rejected")
	}

	gin.SetMode(gin.ReleaseMode)
	r := routes.SetupRouter(routes.RouterConfig{
		JWTSecret:      cfg.JWTSecret,
		ScanKeyHash:    cfg.ScanKeyHash,
		AllowedOrigins: cfg.AllowedOrigins(),
	}, routes.Handlers{
		Scan: &controllers.ScanController{Scanner: scanner},
		Reminders: &controllers.ReminderController{
			Reminders: store,
			Profiles:  store,
			Mailer:    mailer,
			Today:     scanner.Today,
		},
		Quotes: quotes,
	}, log)
	printRoutes(r)

	var scheduler *services.ReminderScheduler
	if cfg.ScanSchedule != "" {
		scheduler = services.NewReminderScheduler(scanner, cfg.Location(), log)
		if err := scheduler.Start(cfg.ScanSchedule); err != nil {
			log.Fatal().Err(err).Msg("scheduler")
		}
	}

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r}
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if scheduler != nil {
		scheduler.Stop()
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown")
	}
}

func printRoutes(r *gin.Engine) {
	routes := r.Routes()
	for _, route := range routes {
		fmt.Printf("%-6s %s\n", route.Method, route.Path)
	}
}
