package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"signal_bot/internal/journal"
	"signal_bot/pkg/db"
	"signal_bot/pkg/logger"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Утилита для просмотра дневного итога по журналу сделок:
//
//	go run ./cmd/journal -date 2026-08-30
func run() error {
	dateFlag := flag.String("date", "", "день в формате YYYY-MM-DD, по умолчанию сегодня")
	flag.Parse()

	day := time.Now().UTC()
	if *dateFlag != "" {
		parsed, err := time.Parse("2006-01-02", *dateFlag)
		if err != nil {
			return errors.Wrap(err, "parse -date")
		}
		day = parsed
	}

	viper.SetConfigName("values_local")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("configs")
	if err := viper.ReadInConfig(); err != nil {
		return errors.Wrap(err, "read config")
	}

	dsn := viper.GetString("db_dsn")
	if env := os.Getenv("DATABASE_DSN"); env != "" {
		dsn = env
	}
	if dsn == "" {
		return errors.New("db_dsn is empty")
	}

	logger.Init(logger.FileConfig{})

	ctx := context.Background()
	pool, err := db.NewPool(ctx, db.PoolConfig{DSN: dsn})
	if err != nil {
		return errors.Wrap(err, "connect")
	}
	defer pool.Close()

	repo := journal.NewRepo(db.NewPgTxManager(pool))
	s, err := repo.DailySummary(ctx, day)
	if err != nil {
		return errors.Wrap(err, "daily summary")
	}

	fmt.Printf("Итог за %s\n", s.Day.Format("2006-01-02"))
	fmt.Printf("  сделок:   %d\n", s.Count)
	fmt.Printf("  в плюс:   %d\n", s.Winners)
	fmt.Printf("  в минус:  %d\n", s.Losers)
	fmt.Printf("  профит:   %.2f\n", s.NetProfit)
	return nil
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
