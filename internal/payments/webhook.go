package payments

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/Bambale0/vpn-creative-tg-bot/internal/models"
)

// WebhookHandler принимает серверные уведомления провайдеров.
// ЮKassa подписи не шлёт (доверие по источнику), Crypto Pay подписывает
// тело HMAC-SHA256, заголовок Crypto-Pay-API-Signature.
type WebhookHandler struct {
	Svc          *Service
	CryptoSecret []byte
	Log          *logrus.Entry
}

func NewWebhookHandler(svc *Service, cryptoSecret string, log *logrus.Entry) *WebhookHandler {
	return &WebhookHandler{Svc: svc, CryptoSecret: []byte(cryptoSecret), Log: log}
}

type yooWebhook struct {
	Event  string `json:"event"`
	Object struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	} `json:"object"`
}

// YooKassa: POST /webhooks/yookassa
func (h *WebhookHandler) YooKassa(w http.ResponseWriter, r *http.Request) {
	var ev yooWebhook
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		models.WriteProblem(w, http.StatusBadRequest, "bad payload", err.Error(), nil)
		return
	}
	if ev.Object.ID == "" {
		models.WriteProblem(w, http.StatusBadRequest, "bad payload", "missing payment id", nil)
		return
	}

	h.Log.WithFields(logrus.Fields{
		"payment_id": ev.Object.ID,
		"status":     ev.Object.Status,
	}).Info("yookassa webhook")

	switch ev.Object.Status {
	case "succeeded":
		if _, err := h.Svc.Confirm(r.Context(), ev.Object.ID); err != nil {
			models.WriteProblem(w, http.StatusInternalServerError, "confirm failed", err.Error(), nil)
			return
		}
	case "canceled":
		_ = h.Svc.Cancel(r.Context(), ev.Object.ID)
	}
	models.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type cryptoWebhook struct {
	UpdateType string `json:"update_type"`
	Payload    struct {
		InvoiceID int64  `json:"invoice_id"`
		Status    string `json:"status"`
	} `json:"payload"`
}

// CryptoPay: POST /webhooks/cryptopay
func (h *WebhookHandler) CryptoPay(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		models.WriteProblem(w, http.StatusBadRequest, "read body", err.Error(), nil)
		return
	}

	sig := r.Header.Get("Crypto-Pay-API-Signature")
	if !h.verifyCryptoSignature(body, sig) {
		models.WriteProblem(w, http.StatusUnauthorized, "invalid signature", "", nil)
		return
	}

	var ev cryptoWebhook
	if err := json.Unmarshal(body, &ev); err != nil {
		models.WriteProblem(w, http.StatusBadRequest, "bad payload", err.Error(), nil)
		return
	}

	h.Log.WithFields(logrus.Fields{
		"invoice_id": ev.Payload.InvoiceID,
		"status":     ev.Payload.Status,
	}).Info("cryptopay webhook")

	if ev.UpdateType == "invoice_paid" && ev.Payload.Status == "paid" {
		id := strconv.FormatInt(ev.Payload.InvoiceID, 10)
		if _, err := h.Svc.Confirm(r.Context(), id); err != nil {
			models.WriteProblem(w, http.StatusInternalServerError, "confirm failed", err.Error(), nil)
			return
		}
	}
	models.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *WebhookHandler) verifyCryptoSignature(body []byte, sigHex string) bool {
	if len(h.CryptoSecret) == 0 || sigHex == "" {
		return false
	}
	m := hmac.New(sha256.New, h.CryptoSecret)
	m.Write(body)
	want := hex.EncodeToString(m.Sum(nil))
	return hmac.Equal([]byte(want), []byte(sigHex))
}
