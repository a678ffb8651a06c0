package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"chatwire/internal/api"
	"chatwire/internal/chat"
	"chatwire/internal/config"
	"chatwire/internal/database"
	"chatwire/internal/stats"
)

type stringSliceFlag []string

func (s *stringSliceFlag) String() string {
	return strings.Join(*s, ",")
}

func (s *stringSliceFlag) Set(value string) error {
	*s = append(*s, strings.Split(value, ",")...)
	return nil
}

var (
	addr           string
	dsn            string
	signingKey     string
	allowedOrigins stringSliceFlag
)

func main() {
	// optional .env for local development
	_ = godotenv.Load()

	flag.StringVar(&addr, "addr", "", "server address")
	flag.StringVar(&dsn, "dsn", "", "database connection string")
	flag.StringVar(&signingKey, "signing-key", "", "base64 encoded signing key")
	flag.Var(&allowedOrigins, "allowed-origins", "comma-separated list of allowed origins for CORS")
	flag.Parse()

	logger := log.New(os.Stderr, "[chatwire] ", log.LstdFlags)

	cfg, err := config.FromEnv()
	if err != nil {
		logger.Fatal("config:", err)
	}

	// flags win over env
	if addr != "" {
		cfg.ServerAddr = addr
	}
	if dsn != "" {
		cfg.DatabaseDSN = dsn
	}
	if signingKey != "" {
		cfg.SigningSecret = signingKey
	}
	if len(allowedOrigins) > 0 {
		cfg.AllowedOrigins = allowedOrigins
	}

	if err := cfg.Validate(); err != nil {
		logger.Fatal("config:", err)
	}

	dbConn, err := database.NewPgChatRepository(cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("db open:", err)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Fatal("db close:", err)
		}
	}()

	if err := dbConn.Migrate(); err != nil {
		logger.Fatal("db migrate:", err)
	}

	mux := http.NewServeMux()

	statsUpdater := stats.NewStatsUpdater(mux)

	chatServer, err := chat.NewChatServer(logger, dbConn, statsUpdater)
	if err != nil {
		logger.Fatal("new chat server:", err)
	}

	srv := api.NewChatApp(mux, logger, chatServer, dbConn, statsUpdater, cfg)

	statsUpdater.Run()
	defer statsUpdater.Stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		logger.Printf("received signal: %s\n", sig)
	case err := <-errCh:
		logger.Println("server:", err)
	}

	shutDownCtx, cancel := context.WithTimeout(
		context.Background(),
		10*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutDownCtx); err != nil {
		logger.Fatalln("HTTP server shutdown:", err)
	}

	logger.Println("shutting down chat server...")
	if err := chatServer.Shutdown(shutDownCtx); err != nil {
		logger.Fatalln("chat server shutdown:", err)
	}

	logger.Println("shutdown complete")
}
