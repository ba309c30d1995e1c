package payments

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
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

type fakeRewards struct{ calls int }

func (f *fakeRewards) RewardPurchase(_ context.Context, _ int64, months int) (int, error) {
	f.calls++
	return months * 20, nil
}

func testPayService(t *testing.T) (*Service, *repo.PaymentStore, *repo.SubscriptionStore, *fakeRewards) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&models.Payment{}, &models.Subscription{}, &models.TrialActivation{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	l := logrus.New()
	l.SetOutput(io.Discard)
	store := repo.NewPaymentStore(db)
	subs := repo.NewSubscriptionStore(db)
	rewards := &fakeRewards{}
	svc := NewService(store, subs, rewards, nil, nil, &config.Config{}, logrus.NewEntry(l))
	return svc, store, subs, rewards
}

func TestConfirmCreditsOnce(t *testing.T) {
	svc, store, subs, rewards := testPayService(t)
	ctx := context.Background()

	err := store.Create(ctx, &models.Payment{
		ExternalID: "pay-1",
		UserID:     42,
		Provider:   models.ProviderYooKassa,
		Amount:     540,
		Currency:   "RUB",
		Months:     3,
		Status:     models.PaymentPending,
	})
	if err != nil {
		t.Fatalf("create payment: %v", err)
	}

	credited, err := svc.Confirm(ctx, "pay-1")
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if !credited {
		t.Fatal("first confirm must credit")
	}

	end, err := subs.ActiveEnd(ctx, 42)
	if err != nil {
		t.Fatal(err)
	}
	if end == nil || time.Until(*end) < 89*24*time.Hour {
		t.Fatalf("3-month plan must grant 90 days, got %v", end)
	}

	// повторный вебхук или поллинг того же платежа
	credited, err = svc.Confirm(ctx, "pay-1")
	if err != nil {
		t.Fatalf("second confirm: %v", err)
	}
	if credited {
		t.Fatal("double credit")
	}
	if rewards.calls != 1 {
		t.Fatalf("rewards called %d times", rewards.calls)
	}

	after, err := subs.ActiveEnd(ctx, 42)
	if err != nil {
		t.Fatal(err)
	}
	if !after.Equal(*end) {
		t.Fatalf("second confirm extended subscription: %v -> %v", end, after)
	}
}

func TestConfirmUnknownPayment(t *testing.T) {
	svc, _, _, _ := testPayService(t)
	credited, err := svc.Confirm(context.Background(), "missing")
	if err != nil {
		t.Fatalf("confirm of unknown id: %v", err)
	}
	if credited {
		t.Fatal("credited a payment we never issued")
	}
}

func TestCryptoWebhookSignature(t *testing.T) {
	svc, store, _, _ := testPayService(t)
	ctx := context.Background()

	err := store.Create(ctx, &models.Payment{
		ExternalID: "777",
		UserID:     1,
		Provider:   models.ProviderCryptoPay,
		Amount:     200,
		Currency:   "RUB",
		Months:     1,
		Status:     models.PaymentPending,
	})
	if err != nil {
		t.Fatal(err)
	}

	l := logrus.New()
	l.SetOutput(io.Discard)
	h := NewWebhookHandler(svc, "topsecret", logrus.NewEntry(l))

	body := []byte(`{"update_type":"invoice_paid","payload":{"invoice_id":777,"status":"paid"}}`)
	sign := func(b []byte) string {
		m := hmac.New(sha256.New, []byte("topsecret"))
		m.Write(b)
		return hex.EncodeToString(m.Sum(nil))
	}

	// без подписи
	rr := httptest.NewRecorder()
	h.CryptoPay(rr, httptest.NewRequest(http.MethodPost, "/webhooks/cryptopay", bytes.NewReader(body)))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("unsigned webhook accepted: %d", rr.Code)
	}

	// битая подпись
	req := httptest.NewRequest(http.MethodPost, "/webhooks/cryptopay", bytes.NewReader(body))
	req.Header.Set("Crypto-Pay-API-Signature", sign([]byte("other body")))
	rr = httptest.NewRecorder()
	h.CryptoPay(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("forged webhook accepted: %d", rr.Code)
	}

	// валидная подпись
	req = httptest.NewRequest(http.MethodPost, "/webhooks/cryptopay", bytes.NewReader(body))
	req.Header.Set("Crypto-Pay-API-Signature", sign(body))
	rr = httptest.NewRecorder()
	h.CryptoPay(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("valid webhook rejected: %d, %s", rr.Code, rr.Body.String())
	}

	p, err := store.GetByExternalID(ctx, "777")
	if err != nil {
		t.Fatal(err)
	}
	if p.Status != models.PaymentSucceeded {
		t.Fatalf("payment not confirmed: %s", p.Status)
	}
}

func TestYooKassaWebhook(t *testing.T) {
	svc, store, _, _ := testPayService(t)
	ctx := context.Background()

	err := store.Create(ctx, &models.Payment{
		ExternalID: "yk-9",
		UserID:     2,
		Provider:   models.ProviderYooKassa,
		Amount:     200,
		Currency:   "RUB",
		Months:     1,
		Status:     models.PaymentPending,
	})
	if err != nil {
		t.Fatal(err)
	}

	l := logrus.New()
	l.SetOutput(io.Discard)
	h := NewWebhookHandler(svc, "", logrus.NewEntry(l))

	body := strings.NewReader(`{"event":"payment.succeeded","object":{"id":"yk-9","status":"succeeded"}}`)
	rr := httptest.NewRecorder()
	h.YooKassa(rr, httptest.NewRequest(http.MethodPost, "/webhooks/yookassa", body))
	if rr.Code != http.StatusOK {
		t.Fatalf("webhook rejected: %d", rr.Code)
	}

	p, err := store.GetByExternalID(ctx, "yk-9")
	if err != nil {
		t.Fatal(err)
	}
	if p.Status != models.PaymentSucceeded {
		t.Fatalf("payment not confirmed: %s", p.Status)
	}
}
