package journal

import (
	"context"
	"fmt"
	"time"

	"signal_bot/pkg/db"

	"github.com/jackc/pgx/v5"
)

// ClosedTrade — запись журнала о закрытой сделке.
type ClosedTrade struct {
	Ticket        int64
	Symbol        string
	Direction     string
	Volume        float64
	EntryPrice    float64
	ClosePrice    float64
	Profit        float64
	OriginalMsgID int
	Reason        string // tp / sl / manual / command
	ClosedAt      time.Time
}

// Summary — агрегат по журналу за день.
type Summary struct {
	Day       time.Time
	Count     int
	NetProfit float64
	Winners   int
	Losers    int
}

// Repo пишет журнал закрытий в Postgres.
type Repo struct {
	tm db.TxManager
}

func NewRepo(tm db.TxManager) *Repo {
	return &Repo{tm: tm}
}

// EnsureSchema создаёт таблицу журнала, если её ещё нет.
func (r *Repo) EnsureSchema(ctx context.Context) (err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("Repo.EnsureSchema: %w", err)
		}
	}()
	return r.tm.RunMaster(ctx, func(ctx context.Context, tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			CREATE TABLE IF NOT EXISTS trade_journal (
				id              BIGSERIAL PRIMARY KEY,
				ticket          BIGINT NOT NULL,
				symbol          TEXT NOT NULL,
				direction       TEXT NOT NULL,
				volume          DOUBLE PRECISION NOT NULL,
				entry_price     DOUBLE PRECISION NOT NULL,
				close_price     DOUBLE PRECISION NOT NULL,
				profit          DOUBLE PRECISION NOT NULL,
				original_msg_id BIGINT NOT NULL,
				reason          TEXT NOT NULL,
				closed_at       TIMESTAMPTZ NOT NULL
			)`)
		return err
	})
}

func (r *Repo) InsertClosed(ctx context.Context, ct *ClosedTrade) (err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("Repo.InsertClosed: %w", err)
		}
	}()
	return r.tm.RunMaster(ctx, func(ctx context.Context, tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO trade_journal
				(ticket, symbol, direction, volume, entry_price, close_price, profit, original_msg_id, reason, closed_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
			ct.Ticket, ct.Symbol, ct.Direction, ct.Volume,
			ct.EntryPrice, ct.ClosePrice, ct.Profit,
			ct.OriginalMsgID, ct.Reason, ct.ClosedAt,
		)
		return err
	})
}

// DailySummary — итог за календарные сутки day (по UTC).
func (r *Repo) DailySummary(ctx context.Context, day time.Time) (s *Summary, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("Repo.DailySummary: %w", err)
		}
	}()

	from := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	to := from.Add(24 * time.Hour)

	s = &Summary{Day: from}
	err = r.tm.RunMaster(ctx, func(ctx context.Context, tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
			SELECT COUNT(*),
			       COALESCE(SUM(profit), 0),
			       COUNT(*) FILTER (WHERE profit > 0),
			       COUNT(*) FILTER (WHERE profit < 0)
			FROM trade_journal
			WHERE closed_at >= $1 AND closed_at < $2`,
			from, to,
		)
		return row.Scan(&s.Count, &s.NetProfit, &s.Winners, &s.Losers)
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}
