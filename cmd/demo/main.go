// Command demo runs a small instrumented web service against SQLite,
// showing the full pipeline: middleware spans, SQL instrumentation, N+1
// detection, and trace export. The /users/:id/posts endpoint loads posts
// one query per post on purpose; hit it and watch the finding appear.
package main

import (
	"context"
	"database/sql"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/mattn/go-sqlite3"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/databill86/scout-apm-go/internal/config"
	"github.com/databill86/scout-apm-go/internal/instruments"
	"github.com/databill86/scout-apm-go/internal/logging"
	"github.com/databill86/scout-apm-go/internal/metrics"
	"github.com/databill86/scout-apm-go/internal/middleware"
	"github.com/databill86/scout-apm-go/internal/scout"
)

func main() {
	addr := flag.String("addr", ":8000", "listen address")
	dsn := flag.String("db", "file:demo.db?mode=memory&cache=shared", "sqlite DSN")
	flag.Parse()

	cfg := config.LoadOrDefault()
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		logger = zap.NewNop()
	}
	defer logger.Sync() //nolint:errcheck

	m := metrics.New(nil)
	agent := scout.New(cfg, logger, m, nil)
	defer agent.Close()

	sql.Register("sqlite3-scout", instruments.WrapDriver(&sqlite3.SQLiteDriver{}))
	db, err := sql.Open("sqlite3-scout", *dsn)
	if err != nil {
		logger.Fatal("failed to open database", zap.Error(err))
	}
	defer db.Close()

	if err := seed(db); err != nil {
		logger.Fatal("failed to seed database", zap.Error(err))
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestTiming(agent))
	router.Use(middleware.HandlerTiming(agent))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/users/:id/posts", func(c *gin.Context) {
		posts, err := loadPostsOneByOne(c.Request.Context(), db)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"posts": posts})
	})

	srv := &http.Server{Addr: *addr, Handler: router}
	go func() {
		logger.Info("demo service listening", zap.String("addr", *addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down")
	_ = srv.Shutdown(context.Background())
}

func seed(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS posts (id INTEGER PRIMARY KEY, title TEXT)`,
		`DELETE FROM posts`,
		`INSERT INTO posts (id, title) VALUES (1, 'one'), (2, 'two'), (3, 'three'),
		 (4, 'four'), (5, 'five'), (6, 'six')`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

// loadPostsOneByOne is a deliberate N+1: one query per post id instead of
// one query for all of them.
func loadPostsOneByOne(ctx context.Context, db *sql.DB) ([]string, error) {
	var titles []string
	for id := 1; id <= 6; id++ {
		var title string
		err := db.QueryRowContext(ctx, "SELECT title FROM posts WHERE id = ?", id).Scan(&title)
		if err != nil {
			return nil, err
		}
		titles = append(titles, title)
	}
	return titles, nil
}
