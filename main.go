package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/codetesla51/raw-https/account"
	"github.com/codetesla51/raw-https/logging"
	"github.com/codetesla51/raw-https/server"
)

func main() {
	config := server.DefaultConfig()
	db := account.DBConfig{}
	var (
		poolSize     int
		logLevel     string
		logFile      string
		queryTimeout time.Duration
	)

	flag.StringVar(&config.Addr, "addr", config.Addr, "listen address")
	flag.StringVar(&config.CertFile, "cert", "/etc/letsencrypt/live/antaresz.cc/fullchain.pem", "certificate chain file")
	flag.StringVar(&config.KeyFile, "key", "/etc/letsencrypt/live/antaresz.cc/privkey.pem", "private key file")
	flag.DurationVar(&config.ReadTimeout, "read-timeout", 0, "per-read timeout, 0 waits forever")
	flag.DurationVar(&config.WriteTimeout, "write-timeout", 0, "response write timeout, 0 waits forever")
	flag.DurationVar(&config.HandshakeTimeout, "handshake-timeout", 0, "TLS handshake timeout, 0 waits forever")
	flag.IntVar(&config.HandlerWorkers, "workers", config.HandlerWorkers, "max concurrently running handlers")
	flag.BoolVar(&config.ReusePort, "reuse-port", false, "set SO_REUSEPORT on the listener")
	flag.StringVar(&db.Host, "db-host", "localhost:3306", "MySQL address")
	flag.StringVar(&db.User, "db-user", "antaresz", "MySQL user")
	flag.StringVar(&db.Password, "db-password", os.Getenv("DB_PASSWORD"), "MySQL password")
	flag.StringVar(&db.Database, "db-name", "hometown", "MySQL schema")
	flag.IntVar(&poolSize, "pool-size", 10, "pooled database connections")
	flag.DurationVar(&queryTimeout, "query-timeout", 0, "bound on a handler's database work, 0 waits forever")
	flag.StringVar(&logLevel, "log-level", "debug", "console log level: debug, info, warning, error")
	flag.StringVar(&logFile, "log-file", "", "also log to this rotated file")
	flag.Parse()

	level, err := logging.ParseLevel(logLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	log := logging.NewConsole(level)
	if logFile != "" {
		log.AddFile(logFile, logging.LevelInfo)
	}
	defer log.Close()

	if err := run(config, db, poolSize, queryTimeout, log); err != nil {
		log.Errorf("%v", err)
		log.Close()
		os.Exit(1)
	}
}

func run(config *server.Config, dbConfig account.DBConfig, poolSize int, queryTimeout time.Duration, log *logging.Logger) error {
	db, conns, err := account.Open(dbConfig, poolSize, log)
	if err != nil {
		return err
	}
	defer db.Close()
	defer conns.Close()

	router := server.NewRouter(log)
	handlers := &account.Handlers{
		Users:   account.NewUsers(conns, log),
		Posts:   account.NewPosts(conns, log),
		Log:     log,
		Timeout: queryTimeout,
	}
	handlers.Routes(router)

	srv, err := server.NewServer(config, router, log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err = srv.ListenAndServe(ctx)
	if !errors.Is(err, server.ErrServerClosed) {
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warnf("Connections still open at exit: %v", err)
	}
	return nil
}
