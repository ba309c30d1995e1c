package repo

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/Bambale0/vpn-creative-tg-bot/internal/models"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(
		&models.User{}, &models.Subscription{}, &models.TrialActivation{},
		&models.PeerConfig{}, &models.Payment{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func givePeer(t *testing.T, db *gorm.DB, userID int64) {
	t.Helper()
	p := models.PeerConfig{
		UserID:     userID,
		PrivateKey: fmt.Sprintf("priv-%d", userID),
		PublicKey:  fmt.Sprintf("pub-%d", userID),
		Address:    fmt.Sprintf("10.0.0.%d", userID+1),
	}
	if err := db.Create(&p).Error; err != nil {
		t.Fatalf("seed peer: %v", err)
	}
}

func TestExtendStacksOnActive(t *testing.T) {
	db := testDB(t)
	s := NewSubscriptionStore(db)
	ctx := context.Background()

	first, err := s.Extend(ctx, 1, 30, "p1", false)
	if err != nil {
		t.Fatalf("extend: %v", err)
	}
	second, err := s.Extend(ctx, 1, 30, "p2", false)
	if err != nil {
		t.Fatalf("extend: %v", err)
	}
	if !second.StartDate.Equal(first.EndDate) {
		t.Fatalf("second period must start at first end: %v vs %v", second.StartDate, first.EndDate)
	}
	end, err := s.ActiveEnd(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if end == nil || time.Until(*end) < 59*24*time.Hour {
		t.Fatalf("stacked end too early: %v", end)
	}
}

func TestExpiredPeerHolders(t *testing.T) {
	db := testDB(t)
	s := NewSubscriptionStore(db)
	ctx := context.Background()
	now := time.Now().UTC()

	// 1: истёкшая подписка, пир есть — кандидат
	mustAdd(t, s, &models.Subscription{UserID: 1, StartDate: now.AddDate(0, -2, 0), EndDate: now.AddDate(0, -1, 0), PaymentID: "a", DurationDays: 30})
	givePeer(t, db, 1)

	// 2: активная подписка, пир есть — не кандидат
	mustAdd(t, s, &models.Subscription{UserID: 2, StartDate: now, EndDate: now.AddDate(0, 1, 0), PaymentID: "b", DurationDays: 30})
	givePeer(t, db, 2)

	// 3: была истёкшая, но есть и активная — не кандидат
	mustAdd(t, s, &models.Subscription{UserID: 3, StartDate: now.AddDate(0, -2, 0), EndDate: now.AddDate(0, -1, 0), PaymentID: "c", DurationDays: 30})
	mustAdd(t, s, &models.Subscription{UserID: 3, StartDate: now, EndDate: now.AddDate(0, 1, 0), PaymentID: "d", DurationDays: 30})
	givePeer(t, db, 3)

	// 4: истёкшая подписка, но пира нет — нечего снимать
	mustAdd(t, s, &models.Subscription{UserID: 4, StartDate: now.AddDate(0, -2, 0), EndDate: now.AddDate(0, -1, 0), PaymentID: "e", DurationDays: 30})

	// 5: истёкшая, пир есть, но это админ
	mustAdd(t, s, &models.Subscription{UserID: 5, StartDate: now.AddDate(0, -2, 0), EndDate: now.AddDate(0, -1, 0), PaymentID: "f", DurationDays: 30})
	givePeer(t, db, 5)

	ids, err := s.ExpiredPeerHolders(ctx, []int64{5})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(ids) != 1 || ids[0] != 1 {
		t.Fatalf("want [1], got %v", ids)
	}
}

func TestTrialOnlyPeerHolders(t *testing.T) {
	db := testDB(t)
	s := NewSubscriptionStore(db)
	ctx := context.Background()
	now := time.Now().UTC()

	// 10: триал активирован, подписок нет вовсе, пир есть — кандидат
	if ok, err := s.ActivateTrial(ctx, 10); err != nil || !ok {
		t.Fatalf("trial: ok=%v err=%v", ok, err)
	}
	givePeer(t, db, 10)

	// 11: триал + активная подписка — не кандидат
	if _, err := s.ActivateTrial(ctx, 11); err != nil {
		t.Fatal(err)
	}
	mustAdd(t, s, &models.Subscription{UserID: 11, StartDate: now, EndDate: now.AddDate(0, 1, 0), PaymentID: "g", DurationDays: 30})
	givePeer(t, db, 11)

	// 12: триал без пира — нечего снимать
	if _, err := s.ActivateTrial(ctx, 12); err != nil {
		t.Fatal(err)
	}

	ids, err := s.TrialOnlyPeerHolders(ctx, nil)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(ids) != 1 || ids[0] != 10 {
		t.Fatalf("want [10], got %v", ids)
	}
}

func TestActivateTrialOnce(t *testing.T) {
	db := testDB(t)
	s := NewSubscriptionStore(db)
	ctx := context.Background()

	ok, err := s.ActivateTrial(ctx, 7)
	if err != nil || !ok {
		t.Fatalf("first activation: ok=%v err=%v", ok, err)
	}
	ok, err = s.ActivateTrial(ctx, 7)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("trial activated twice")
	}
	had, err := s.HasTrial(ctx, 7)
	if err != nil || !had {
		t.Fatalf("HasTrial: %v %v", had, err)
	}
}

func mustAdd(t *testing.T, s *SubscriptionStore, sub *models.Subscription) {
	t.Helper()
	if err := s.Add(context.Background(), sub); err != nil {
		t.Fatalf("seed subscription: %v", err)
	}
}
