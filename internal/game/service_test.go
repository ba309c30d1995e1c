package game

import (
	"context"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/Bambale0/vpn-creative-tg-bot/config"
	"github.com/Bambale0/vpn-creative-tg-bot/internal/models"
	"github.com/Bambale0/vpn-creative-tg-bot/internal/repo"
)

func testService(t *testing.T) (*Service, *repo.GameStore, *repo.SubscriptionStore) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(
		&models.GameProfile{}, &models.AchievementAward{},
		&models.Subscription{}, &models.TrialActivation{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	cfg := &config.Config{}
	cfg.Telegram.Username = "testbot"
	cfg.Game.TrialEnabled = true
	cfg.Game.TrialDays = 10
	cfg.Game.ReferralEnabled = true
	cfg.Game.ReferralBonusFirst = 10
	cfg.Game.ReferralBonusNext = 5
	cfg.Game.DailyBonusEnabled = true
	cfg.Game.DailyBonusMin = 1
	cfg.Game.DailyBonusMax = 3
	cfg.Game.LevelUpPoints = 100
	cfg.Game.LevelRewardDays = 2

	l := logrus.New()
	l.SetOutput(io.Discard)
	games := repo.NewGameStore(db)
	subs := repo.NewSubscriptionStore(db)
	return NewService(games, subs, cfg, logrus.NewEntry(l)), games, subs
}

func TestActivateTrialOnce(t *testing.T) {
	svc, _, subs := testService(t)
	ctx := context.Background()

	days, activated, err := svc.ActivateTrial(ctx, 1)
	if err != nil {
		t.Fatalf("trial: %v", err)
	}
	if !activated || days != 10 {
		t.Fatalf("want 10-day trial, got days=%d activated=%v", days, activated)
	}
	end, err := subs.ActiveEnd(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if end == nil || time.Until(*end) < 9*24*time.Hour {
		t.Fatalf("trial subscription not extended: %v", end)
	}

	_, activated, err = svc.ActivateTrial(ctx, 1)
	if err != nil {
		t.Fatalf("second trial: %v", err)
	}
	if activated {
		t.Fatal("trial activated twice")
	}
}

func TestReferralBonuses(t *testing.T) {
	svc, games, _ := testService(t)
	ctx := context.Background()

	ref, err := games.Profile(ctx, 100)
	if err != nil {
		t.Fatal(err)
	}

	refID, bonus, err := svc.RegisterReferral(ctx, 201, ref.ReferralCode)
	if err != nil {
		t.Fatalf("first referral: %v", err)
	}
	if refID != 100 || bonus != 10 {
		t.Fatalf("first referral: want referrer 100 bonus 10, got %d/%d", refID, bonus)
	}

	_, bonus, err = svc.RegisterReferral(ctx, 202, ref.ReferralCode)
	if err != nil {
		t.Fatalf("second referral: %v", err)
	}
	if bonus != 5 {
		t.Fatalf("next referral bonus: want 5, got %d", bonus)
	}

	// повтор того же приглашённого не начисляет ничего
	refID, bonus, err = svc.RegisterReferral(ctx, 201, ref.ReferralCode)
	if err != nil || refID != 0 || bonus != 0 {
		t.Fatalf("repeat referral: referrer=%d bonus=%d err=%v", refID, bonus, err)
	}

	// самоприглашение
	refID, bonus, err = svc.RegisterReferral(ctx, 100, ref.ReferralCode)
	if err != nil || refID != 0 || bonus != 0 {
		t.Fatalf("self referral: referrer=%d bonus=%d err=%v", refID, bonus, err)
	}
}

func TestDailyBonusOncePerDay(t *testing.T) {
	svc, _, _ := testService(t)
	ctx := context.Background()

	day := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return day }

	points, streak, claimed, err := svc.ClaimDailyBonus(ctx, 7)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if !claimed || streak != 1 || points < 1 || points > 3 {
		t.Fatalf("first claim: points=%d streak=%d claimed=%v", points, streak, claimed)
	}

	_, _, claimed, err = svc.ClaimDailyBonus(ctx, 7)
	if err != nil {
		t.Fatalf("repeat claim: %v", err)
	}
	if claimed {
		t.Fatal("bonus claimed twice in one day")
	}

	day = day.AddDate(0, 0, 1)
	_, streak, claimed, err = svc.ClaimDailyBonus(ctx, 7)
	if err != nil || !claimed {
		t.Fatalf("next-day claim: claimed=%v err=%v", claimed, err)
	}
	if streak != 2 {
		t.Fatalf("streak: want 2, got %d", streak)
	}

	// пропуск дня сбрасывает серию
	day = day.AddDate(0, 0, 2)
	_, streak, _, err = svc.ClaimDailyBonus(ctx, 7)
	if err != nil {
		t.Fatal(err)
	}
	if streak != 1 {
		t.Fatalf("streak after gap: want 1, got %d", streak)
	}
}

func TestLevelUpGrantsDays(t *testing.T) {
	svc, games, subs := testService(t)
	ctx := context.Background()

	if _, err := svc.addPoints(ctx, 9, 250); err != nil {
		t.Fatalf("add points: %v", err)
	}
	p, err := games.Profile(ctx, 9)
	if err != nil {
		t.Fatal(err)
	}
	if p.Level != 3 {
		t.Fatalf("250 points: want level 3, got %d", p.Level)
	}
	end, err := subs.ActiveEnd(ctx, 9)
	if err != nil {
		t.Fatal(err)
	}
	// два взятых уровня по 2 дня
	if end == nil || time.Until(*end) < 3*24*time.Hour {
		t.Fatalf("level reward days missing: %v", end)
	}
}

func TestGrantAchievementOnce(t *testing.T) {
	svc, games, _ := testService(t)
	ctx := context.Background()

	granted, err := svc.GrantAchievement(ctx, 3, "first_config")
	if err != nil || !granted {
		t.Fatalf("grant: granted=%v err=%v", granted, err)
	}
	granted, err = svc.GrantAchievement(ctx, 3, "first_config")
	if err != nil || granted {
		t.Fatalf("regrant: granted=%v err=%v", granted, err)
	}
	p, err := games.Profile(ctx, 3)
	if err != nil {
		t.Fatal(err)
	}
	if p.Points != 10 {
		t.Fatalf("points credited twice: %d", p.Points)
	}
}
