package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
)

const yooKassaAPI = "https://api.yookassa.ru/v3"

// YooKassa — клиент платёжного API ЮKassa.
type YooKassa struct {
	shopID    string
	secretKey string
	returnURL string
	baseURL   string
	http      *http.Client
}

func NewYooKassa(shopID, secretKey, returnURL string) *YooKassa {
	return &YooKassa{
		shopID:    shopID,
		secretKey: secretKey,
		returnURL: returnURL,
		baseURL:   yooKassaAPI,
		http:      &http.Client{Timeout: 30 * time.Second},
	}
}

type yooAmount struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

type yooPaymentRequest struct {
	Amount       yooAmount      `json:"amount"`
	Capture      bool           `json:"capture"`
	Confirmation map[string]any `json:"confirmation"`
	Description  string         `json:"description"`
	Metadata     map[string]any `json:"metadata"`
}

// YooPayment — ответ API на создание/чтение платежа.
type YooPayment struct {
	ID           string         `json:"id"`
	Status       string         `json:"status"`
	Paid         bool           `json:"paid"`
	Amount       yooAmount      `json:"amount"`
	Description  string         `json:"description"`
	Confirmation map[string]any `json:"confirmation"`
	Metadata     map[string]any `json:"metadata"`
	CreatedAt    string         `json:"created_at"`
}

// ConfirmationURL достаёт ссылку редиректа на оплату.
func (p *YooPayment) ConfirmationURL() string {
	url, _ := p.Confirmation["confirmation_url"].(string)
	return url
}

// CreatePayment выставляет счёт в рублях с редиректом на оплату.
func (y *YooKassa) CreatePayment(ctx context.Context, amountRUB float64, description string, userID int64, planID string) (*YooPayment, error) {
	reqBody := yooPaymentRequest{
		Amount:  yooAmount{Value: fmt.Sprintf("%.2f", amountRUB), Currency: "RUB"},
		Capture: true,
		Confirmation: map[string]any{
			"type":       "redirect",
			"return_url": y.returnURL,
		},
		Description: description,
		Metadata: map[string]any{
			"user_id": fmt.Sprintf("%d", userID),
			"plan_id": planID,
		},
	}
	data, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, y.baseURL+"/payments", bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(y.shopID, y.secretKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotence-Key", uuid.NewString())

	return y.do(req)
}

// GetPayment читает текущее состояние платежа.
func (y *YooKassa) GetPayment(ctx context.Context, paymentID string) (*YooPayment, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, y.baseURL+"/payments/"+paymentID, nil)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(y.shopID, y.secretKey)
	return y.do(req)
}

func (y *YooKassa) do(req *http.Request) (*YooPayment, error) {
	resp, err := y.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("yookassa request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("yookassa api %s: %s", resp.Status, body)
	}
	var p YooPayment
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("yookassa response: %w", err)
	}
	return &p, nil
}
