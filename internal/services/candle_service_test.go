package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"estatetoken/internal/events"
	"estatetoken/internal/models"
	"estatetoken/internal/testutil"

	"gorm.io/gorm"
)

var candleDay = time.Date(2026, 10, 14, 0, 0, 0, 0, time.UTC)

func candleSnap(user string, value string, at time.Time, id string) models.PortfolioHistory {
	return models.PortfolioHistory{ID: id, UserID: user, TotalValue: testutil.D(value), TotalInvested: testutil.D(value), RecordedAt: at}
}

func TestBuildDailyCandles(t *testing.T) {
	t.Run("ohlc_from_ordered_snapshots", func(t *testing.T) {
		snaps := []models.PortfolioHistory{
			candleSnap("u", "100", candleDay.Add(1*time.Hour), "a"),
			candleSnap("u", "150", candleDay.Add(2*time.Hour), "b"),
			candleSnap("u", "90", candleDay.Add(3*time.Hour), "c"),
			candleSnap("u", "120", candleDay.Add(4*time.Hour), "d"),
		}
		snaps[3].TotalInvested = testutil.D("110")

		candles := BuildDailyCandles(snaps)
		if len(candles) != 1 {
			t.Fatalf("expected 1 candle, got %d", len(candles))
		}
		c := candles[0]
		if c.BucketDay != "2026-10-14" || c.UserID != "u" {
			t.Errorf("unexpected bucket %s/%s", c.BucketDay, c.UserID)
		}
		testutil.AssertDecimal(t, "open", c.OpenValue, "100")
		testutil.AssertDecimal(t, "high", c.HighValue, "150")
		testutil.AssertDecimal(t, "low", c.LowValue, "90")
		testutil.AssertDecimal(t, "close", c.CloseValue, "120")
		testutil.AssertDecimal(t, "total invested", c.TotalInvested, "110")
		if c.SnapshotCount != 4 {
			t.Errorf("expected 4 snapshots, got %d", c.SnapshotCount)
		}
	})

	t.Run("input_order_is_irrelevant", func(t *testing.T) {
		snaps := []models.PortfolioHistory{
			candleSnap("u", "120", candleDay.Add(4*time.Hour), "d"),
			candleSnap("u", "90", candleDay.Add(3*time.Hour), "c"),
			candleSnap("u", "100", candleDay.Add(1*time.Hour), "a"),
			candleSnap("u", "150", candleDay.Add(2*time.Hour), "b"),
		}
		c := BuildDailyCandles(snaps)[0]
		testutil.AssertDecimal(t, "open", c.OpenValue, "100")
		testutil.AssertDecimal(t, "close", c.CloseValue, "120")
	})

	t.Run("ties_break_on_id", func(t *testing.T) {
		at := candleDay.Add(time.Hour)
		c := BuildDailyCandles([]models.PortfolioHistory{
			candleSnap("u", "7", at, "b"),
			candleSnap("u", "5", at, "a"),
		})[0]
		testutil.AssertDecimal(t, "open", c.OpenValue, "5")
		testutil.AssertDecimal(t, "close", c.CloseValue, "7")
	})

	t.Run("buckets_by_utc_day_and_user", func(t *testing.T) {
		plus8 := time.FixedZone("UTC+8", 8*3600)
		snaps := []models.PortfolioHistory{
			candleSnap("u", "1", candleDay.Add(-time.Second), "a"),
			candleSnap("u", "2", candleDay, "b"),
			candleSnap("v", "3", candleDay.Add(12*time.Hour), "c"),
			// 07:00 local on the 15th is 23:00 UTC on the 14th.
			candleSnap("v", "4", time.Date(2026, 10, 15, 7, 0, 0, 0, plus8), "d"),
		}
		candles := BuildDailyCandles(snaps)
		got := make(map[string]int64)
		for _, c := range candles {
			got[c.UserID+"@"+c.BucketDay] = c.SnapshotCount
		}
		want := map[string]int64{"u@2026-10-13": 1, "u@2026-10-14": 1, "v@2026-10-14": 2}
		if fmt.Sprint(got) != fmt.Sprint(want) {
			t.Errorf("expected buckets %v, got %v", want, got)
		}
	})

	t.Run("no_snapshots_no_candles", func(t *testing.T) {
		if got := BuildDailyCandles(nil); len(got) != 0 {
			t.Errorf("expected no candles, got %d", len(got))
		}
	})
}

func TestAggregationWindow(t *testing.T) {
	from, to := AggregationWindow(time.Date(2026, 10, 15, 13, 45, 0, 0, time.UTC))
	if !from.Equal(time.Date(2026, 10, 14, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("expected window to start yesterday, got %s", from)
	}
	if !to.Equal(time.Date(2026, 10, 17, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("expected window to end after tomorrow, got %s", to)
	}
}

func loadCandles(t *testing.T, db *gorm.DB) []models.PortfolioDailyCandle {
	t.Helper()
	var rows []models.PortfolioDailyCandle
	if err := db.Order("bucket_day, user_id").Find(&rows).Error; err != nil {
		t.Fatalf("failed to load candles: %v", err)
	}
	return rows
}

func TestAggregateWindow(t *testing.T) {
	t.Run("persists_and_is_idempotent", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewCandleService(db, newTestBus())

		user := testutil.CreateTestUser(t, db)
		idle := testutil.CreateTestUser(t, db)
		for i, v := range []string{"100", "150", "90", "120"} {
			testutil.CreateTestSnapshot(t, db, user.ID, v, "100", candleDay.Add(time.Duration(i+1)*time.Hour))
		}
		// Outside the window.
		testutil.CreateTestSnapshot(t, db, user.ID, "999", "100", candleDay.AddDate(0, 0, -5))

		from, to := candleDay, candleDay.AddDate(0, 0, 1)
		res, err := svc.AggregateWindow(context.Background(), from, to)
		testutil.AssertNoError(t, err)
		if res.Snapshots != 4 || res.Candles != 1 || res.Users != 1 {
			t.Errorf("unexpected result %+v", res)
		}

		first := loadCandles(t, db)
		if len(first) != 1 {
			t.Fatalf("expected 1 candle, got %d", len(first))
		}
		c := first[0]
		testutil.AssertDecimal(t, "open", c.OpenValue, "100")
		testutil.AssertDecimal(t, "high", c.HighValue, "150")
		testutil.AssertDecimal(t, "low", c.LowValue, "90")
		testutil.AssertDecimal(t, "close", c.CloseValue, "120")
		if c.SnapshotCount != 4 {
			t.Errorf("expected 4 snapshots, got %d", c.SnapshotCount)
		}

		_, err = svc.AggregateWindow(context.Background(), from, to)
		testutil.AssertNoError(t, err)
		second := loadCandles(t, db)
		if fmt.Sprintf("%+v", first) != fmt.Sprintf("%+v", second) {
			t.Errorf("rerun changed candles:\nfirst:  %+v\nsecond: %+v", first, second)
		}

		var idleCandles int64
		db.Model(&models.PortfolioDailyCandle{}).Where("user_id = ?", idle.ID).Count(&idleCandles)
		if idleCandles != 0 {
			t.Errorf("expected no candle for a user without snapshots, got %d", idleCandles)
		}
	})

	t.Run("rerun_overwrites_with_new_snapshots", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewCandleService(db, newTestBus())
		user := testutil.CreateTestUser(t, db)

		testutil.CreateTestSnapshot(t, db, user.ID, "100", "100", candleDay.Add(time.Hour))
		_, err := svc.AggregateWindow(context.Background(), candleDay, candleDay.AddDate(0, 0, 1))
		testutil.AssertNoError(t, err)

		testutil.CreateTestSnapshot(t, db, user.ID, "80", "100", candleDay.Add(2*time.Hour))
		_, err = svc.AggregateWindow(context.Background(), candleDay, candleDay.AddDate(0, 0, 1))
		testutil.AssertNoError(t, err)

		rows := loadCandles(t, db)
		if len(rows) != 1 {
			t.Fatalf("expected upsert to keep 1 row, got %d", len(rows))
		}
		testutil.AssertDecimal(t, "close", rows[0].CloseValue, "80")
		testutil.AssertDecimal(t, "low", rows[0].LowValue, "80")
		if rows[0].SnapshotCount != 2 {
			t.Errorf("expected 2 snapshots, got %d", rows[0].SnapshotCount)
		}
	})

	t.Run("cancelled_caller_does_not_abort_run", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewCandleService(db, newTestBus())
		user := testutil.CreateTestUser(t, db)
		testutil.CreateTestSnapshot(t, db, user.ID, "100", "100", candleDay.Add(time.Hour))

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		res, err := svc.AggregateWindow(ctx, candleDay, candleDay.AddDate(0, 0, 1))
		testutil.AssertNoError(t, err)
		if res.Candles != 1 {
			t.Errorf("expected 1 candle, got %+v", res)
		}
		if rows := loadCandles(t, db); len(rows) != 1 {
			t.Errorf("expected the run to persist 1 candle, got %d", len(rows))
		}
	})

	t.Run("notifies_latest_candle_per_user", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		bus := newTestBus()
		recorder := recordTopics(bus, events.TopicPortfolioCandleUpdated)
		svc := NewCandleService(db, bus)

		a := testutil.CreateTestUser(t, db)
		b := testutil.CreateTestUser(t, db)
		testutil.CreateTestSnapshot(t, db, a.ID, "10", "10", candleDay.Add(-2*time.Hour))
		testutil.CreateTestSnapshot(t, db, a.ID, "12", "10", candleDay.Add(2*time.Hour))
		testutil.CreateTestSnapshot(t, db, b.ID, "50", "50", candleDay.Add(3*time.Hour))

		_, err := svc.AggregateWindow(context.Background(), candleDay.AddDate(0, 0, -1), candleDay.AddDate(0, 0, 2))
		testutil.AssertNoError(t, err)

		got := recorder.all()
		if len(got) != 2 {
			t.Fatalf("expected one notification per user, got %d", len(got))
		}
		byUser := make(map[string]events.PortfolioCandleUpdated)
		for _, e := range got {
			u := e.(events.PortfolioCandleUpdated)
			byUser[u.UserID] = u
		}
		if c := byUser[a.ID].Candle; c.Date != "2026-10-14" || !c.CloseValue.Equal(testutil.D("12")) {
			t.Errorf("expected user a's latest candle for 2026-10-14, got %+v", c)
		}
		if c := byUser[b.ID].Candle; c.SnapshotCount != 1 {
			t.Errorf("unexpected candle for user b %+v", c)
		}
	})

	t.Run("notification_failure_is_not_fatal", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		bus := newTestBus()
		bus.Subscribe(events.TopicPortfolioCandleUpdated, "test.broken", func(ctx context.Context, e events.Event) error {
			panic("socket closed")
		})
		svc := NewCandleService(db, bus)
		user := testutil.CreateTestUser(t, db)
		testutil.CreateTestSnapshot(t, db, user.ID, "10", "10", candleDay.Add(time.Hour))

		res, err := svc.AggregateWindow(context.Background(), candleDay, candleDay.AddDate(0, 0, 1))
		testutil.AssertNoError(t, err)
		if res.Candles != 1 {
			t.Errorf("expected 1 candle, got %d", res.Candles)
		}
	})

	t.Run("empty_window", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewCandleService(db, newTestBus())

		res, err := svc.AggregateWindow(context.Background(), candleDay, candleDay.AddDate(0, 0, 1))
		testutil.AssertNoError(t, err)
		if res.Candles != 0 || res.Users != 0 {
			t.Errorf("expected empty result, got %+v", res)
		}
	})
}

func TestAggregate_UsesDefaultWindow(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	svc := NewCandleService(db, newTestBus()).(*candleService)
	svc.now = func() time.Time { return candleDay.Add(10 * time.Hour) }

	user := testutil.CreateTestUser(t, db)
	testutil.CreateTestSnapshot(t, db, user.ID, "10", "10", candleDay.AddDate(0, 0, -1).Add(time.Hour))
	testutil.CreateTestSnapshot(t, db, user.ID, "20", "20", candleDay.Add(time.Hour))
	testutil.CreateTestSnapshot(t, db, user.ID, "30", "30", candleDay.AddDate(0, 0, -2))

	res, err := svc.Aggregate(context.Background())
	testutil.AssertNoError(t, err)
	if res.Candles != 2 {
		t.Errorf("expected yesterday and today buckets, got %d", res.Candles)
	}
}
