package services

import (
	"context"
	"sort"
	"time"

	apperrors "estatetoken/internal/errors"
	"estatetoken/internal/events"
	"estatetoken/internal/logger"
	"estatetoken/internal/models"
	"estatetoken/internal/pagination"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const candleUpsertBatchSize = 200

// candleService compacts portfolio snapshots into daily OHLC candles.
type candleService struct {
	db    *gorm.DB
	bus   events.Publisher
	log   *zap.SugaredLogger
	now   func() time.Time
	group singleflight.Group
}

// NewCandleService creates a new CandleServicer.
func NewCandleService(db *gorm.DB, bus events.Publisher) CandleServicer {
	return &candleService{db: db, bus: bus, log: logger.Named("candles"), now: time.Now}
}

// AggregationWindow returns the UTC window from the start of yesterday to the
// end of tomorrow, which covers every bucket a snapshot near midnight could
// fall into.
func AggregationWindow(now time.Time) (time.Time, time.Time) {
	today := now.UTC().Truncate(24 * time.Hour)
	return today.AddDate(0, 0, -1), today.AddDate(0, 0, 2)
}

// Aggregate recomputes candles for the default window.
func (s *candleService) Aggregate(ctx context.Context) (*AggregationResult, error) {
	from, to := AggregationWindow(s.now())
	return s.AggregateWindow(ctx, from, to)
}

// AggregateWindow recomputes every (day, user) candle with snapshots in
// [from, to). Concurrent calls share one run, which outlives the caller that
// started it.
func (s *candleService) AggregateWindow(ctx context.Context, from, to time.Time) (*AggregationResult, error) {
	key := from.UTC().Format(time.RFC3339) + "/" + to.UTC().Format(time.RFC3339)
	shared := context.WithoutCancel(ctx)
	v, err, _ := s.group.Do(key, func() (interface{}, error) {
		return s.aggregate(shared, from.UTC(), to.UTC())
	})
	if err != nil {
		return nil, err
	}
	return v.(*AggregationResult), nil
}

func (s *candleService) aggregate(ctx context.Context, from, to time.Time) (*AggregationResult, error) {
	started := time.Now()
	db := s.db.WithContext(ctx)

	var snapshots []models.PortfolioHistory
	if err := db.Where("recorded_at >= ? AND recorded_at < ?", from, to).
		Order("user_id, recorded_at, id").
		Find(&snapshots).Error; err != nil {
		s.log.Errorw("Candle aggregation failed to load snapshots", "from", from, "to", to, "error", err)
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	candles := BuildDailyCandles(snapshots)
	result := &AggregationResult{From: from, To: to, Snapshots: len(snapshots), Candles: len(candles)}
	if len(candles) == 0 {
		return result, nil
	}

	if err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "bucket_day"}, {Name: "user_id"}},
		UpdateAll: true,
	}).CreateInBatches(&candles, candleUpsertBatchSize).Error; err != nil {
		s.log.Errorw("Candle aggregation failed to upsert", "candles", len(candles), "error", err)
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	latest := latestCandlePerUser(candles)
	result.Users = len(latest)
	for _, c := range latest {
		s.notify(ctx, c)
	}

	s.log.Infow("Candle aggregation completed",
		"from", from, "to", to, "snapshots", result.Snapshots, "candles", result.Candles,
		"users", result.Users, "duration", time.Since(started))
	return result, nil
}

// notify publishes the user's latest candle. Delivery problems are logged.
func (s *candleService) notify(ctx context.Context, c models.PortfolioDailyCandle) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Errorw("Candle notification failed", "user_id", c.UserID, "date", c.BucketDay, "panic", r)
		}
	}()
	s.bus.Publish(ctx, events.PortfolioCandleUpdated{
		Envelope: events.NewEnvelope(events.TopicPortfolioCandleUpdated),
		UserID:   c.UserID,
		Candle:   CandlePayload(c),
	})
}

// CandlePayload converts a stored candle to its event form.
func CandlePayload(c models.PortfolioDailyCandle) events.Candle {
	return events.Candle{
		Date:          c.BucketDay,
		OpenValue:     c.OpenValue,
		HighValue:     c.HighValue,
		LowValue:      c.LowValue,
		CloseValue:    c.CloseValue,
		TotalInvested: c.TotalInvested,
		SnapshotCount: c.SnapshotCount,
	}
}

// BuildDailyCandles buckets snapshots by (UTC day, user). Input order does not
// matter: each bucket is ordered by recorded time, then ID. Users without
// snapshots get no candle.
func BuildDailyCandles(snapshots []models.PortfolioHistory) []models.PortfolioDailyCandle {
	sorted := append([]models.PortfolioHistory(nil), snapshots...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.UserID != b.UserID {
			return a.UserID < b.UserID
		}
		if !a.RecordedAt.Equal(b.RecordedAt) {
			return a.RecordedAt.Before(b.RecordedAt)
		}
		return a.ID < b.ID
	})

	type bucketKey struct{ day, user string }
	index := make(map[bucketKey]int)
	var candles []models.PortfolioDailyCandle

	for _, snap := range sorted {
		key := bucketKey{day: snap.RecordedAt.UTC().Format(pagination.DayLayout), user: snap.UserID}
		i, ok := index[key]
		if !ok {
			index[key] = len(candles)
			candles = append(candles, models.PortfolioDailyCandle{
				BucketDay:     key.day,
				UserID:        key.user,
				OpenValue:     snap.TotalValue,
				HighValue:     snap.TotalValue,
				LowValue:      snap.TotalValue,
				CloseValue:    snap.TotalValue,
				TotalInvested: snap.TotalInvested,
				SnapshotCount: 1,
			})
			continue
		}
		c := &candles[i]
		if snap.TotalValue.GreaterThan(c.HighValue) {
			c.HighValue = snap.TotalValue
		}
		if snap.TotalValue.LessThan(c.LowValue) {
			c.LowValue = snap.TotalValue
		}
		c.CloseValue = snap.TotalValue
		c.TotalInvested = snap.TotalInvested
		c.SnapshotCount++
	}
	return candles
}

// latestCandlePerUser picks each user's most recent bucket, ordered by user.
func latestCandlePerUser(candles []models.PortfolioDailyCandle) []models.PortfolioDailyCandle {
	latest := make(map[string]models.PortfolioDailyCandle)
	for _, c := range candles {
		if cur, ok := latest[c.UserID]; !ok || c.BucketDay > cur.BucketDay {
			latest[c.UserID] = c
		}
	}
	out := make([]models.PortfolioDailyCandle, 0, len(latest))
	for _, c := range latest {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}
