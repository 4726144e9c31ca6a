package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/angelmondragon/replenish-backend/pkg/db/models"
	"github.com/angelmondragon/replenish-backend/pkg/logger"
)

const (
	lowStockSweepConsumer = "low-stock-sweep"
	lowStockSweepLimit    = 500
	lowStockDedupeLayout  = "2006-01-02"
)

type lowStockReader interface {
	ListLowStock(ctx context.Context, after *models.InventoryRecord, limit int) ([]models.InventoryRecord, error)
}

type lowStockAlerter interface {
	RaiseLowStock(ctx context.Context, record models.InventoryRecord) (bool, error)
}

type dedupeGuard interface {
	CheckAndMarkProcessed(ctx context.Context, consumer, key string) (bool, error)
	Delete(ctx context.Context, consumer, key string) error
}

type LowStockSweepJobParams struct {
	Logger  *logger.Logger
	Reader  lowStockReader
	Alerter lowStockAlerter
	Dedupe  dedupeGuard
	Limit   int
}

// NewLowStockSweepJob builds the job that re-announces low inventory once per
// record per UTC day.
func NewLowStockSweepJob(params LowStockSweepJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Reader == nil {
		return nil, fmt.Errorf("low stock reader required")
	}
	if params.Alerter == nil {
		return nil, fmt.Errorf("stock alerter required")
	}
	if params.Dedupe == nil {
		return nil, fmt.Errorf("dedupe guard required")
	}
	limit := params.Limit
	if limit <= 0 {
		limit = lowStockSweepLimit
	}
	return &lowStockSweepJob{
		logg:    params.Logger,
		reader:  params.Reader,
		alerter: params.Alerter,
		dedupe:  params.Dedupe,
		limit:   limit,
		now:     time.Now,
	}, nil
}

type lowStockSweepJob struct {
	logg    *logger.Logger
	reader  lowStockReader
	alerter lowStockAlerter
	dedupe  dedupeGuard
	limit   int
	now     func() time.Time
}

func (j *lowStockSweepJob) Name() string { return "low-stock-sweep" }

// Run pages through every low record; Limit bounds one page, not the sweep.
func (j *lowStockSweepJob) Run(ctx context.Context) error {
	day := j.now().UTC().Format(lowStockDedupeLayout)

	var errs error
	scanned, raised, skipped := 0, 0, 0
	var after *models.InventoryRecord
	for {
		records, err := j.reader.ListLowStock(ctx, after, j.limit)
		if err != nil {
			return multierr.Append(errs, fmt.Errorf("list low stock: %w", err))
		}
		for _, record := range records {
			ok, err := j.sweepRecord(ctx, record, day)
			if err != nil {
				errs = multierr.Append(errs, err)
				continue
			}
			if ok {
				raised++
			} else {
				skipped++
			}
		}
		scanned += len(records)
		if len(records) < j.limit {
			break
		}
		if err := ctx.Err(); err != nil {
			return multierr.Append(errs, err)
		}
		last := records[len(records)-1]
		after = &last
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"scanned": scanned,
		"raised":  raised,
		"skipped": skipped,
	})
	j.logg.Info(logCtx, "low stock sweep complete")
	return errs
}

func (j *lowStockSweepJob) sweepRecord(ctx context.Context, record models.InventoryRecord, day string) (bool, error) {
	key := fmt.Sprintf("%s:%s", record.ID, day)
	seen, err := j.dedupe.CheckAndMarkProcessed(ctx, lowStockSweepConsumer, key)
	if err != nil {
		return false, fmt.Errorf("dedupe %s: %w", record.ID, err)
	}
	if seen {
		return false, nil
	}
	raised, err := j.alerter.RaiseLowStock(ctx, record)
	if err != nil || !raised {
		if delErr := j.dedupe.Delete(ctx, lowStockSweepConsumer, key); delErr != nil {
			err = multierr.Append(err, fmt.Errorf("release dedupe %s: %w", record.ID, delErr))
		}
	}
	if err != nil {
		return false, fmt.Errorf("raise low stock %s: %w", record.ID, err)
	}
	return raised, nil
}
