package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"
)

const cryptoPayAPI = "https://pay.crypt.bot/api"

// CryptoPay — клиент Crypto Pay API (@CryptoBot). Курсы валют кэшируются
// на час, инвойсы выставляются в криптовалюте по текущему курсу к рублю.
type CryptoPay struct {
	token   string
	baseURL string
	http    *http.Client

	mu          sync.Mutex
	rates       map[string]float64 // "USDT_RUB" -> курс
	ratesAsOf   time.Time
	ratesMaxTTL time.Duration
}

func NewCryptoPay(token, apiURL string) *CryptoPay {
	if apiURL == "" {
		apiURL = cryptoPayAPI
	}
	return &CryptoPay{
		token:       token,
		baseURL:     apiURL,
		http:        &http.Client{Timeout: 30 * time.Second},
		rates:       map[string]float64{},
		ratesMaxTTL: time.Hour,
	}
}

// Invoice — инвойс Crypto Pay.
type Invoice struct {
	InvoiceID     int64  `json:"invoice_id"`
	Status        string `json:"status"` // active | paid | expired
	Asset         string `json:"asset"`
	Amount        string `json:"amount"`
	Description   string `json:"description"`
	Payload       string `json:"payload"`
	BotInvoiceURL string `json:"bot_invoice_url"`
	PaidAt        string `json:"paid_at,omitempty"`
}

type exchangeRate struct {
	Source  string `json:"source"`
	Target  string `json:"target"`
	Rate    string `json:"rate"`
	IsValid bool   `json:"is_valid"`
}

type apiEnvelope struct {
	OK     bool            `json:"ok"`
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Code int    `json:"code"`
		Name string `json:"name"`
	} `json:"error"`
}

func (c *CryptoPay) request(ctx context.Context, method, path string, body any, out any) error {
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+"/"+path, rd)
	if err != nil {
		return err
	}
	req.Header.Set("Crypto-Pay-API-Token", c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("cryptopay request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	var env apiEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("cryptopay response: %w", err)
	}
	if !env.OK {
		if env.Error != nil {
			return fmt.Errorf("cryptopay api error %d: %s", env.Error.Code, env.Error.Name)
		}
		return fmt.Errorf("cryptopay api error: %s", raw)
	}
	if out != nil {
		return json.Unmarshal(env.Result, out)
	}
	return nil
}

// refreshRates перечитывает все курсы. Держим только пары к рублю.
func (c *CryptoPay) refreshRates(ctx context.Context) error {
	var rates []exchangeRate
	if err := c.request(ctx, http.MethodGet, "getExchangeRates", nil, &rates); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, r := range rates {
		if !r.IsValid {
			continue
		}
		v, err := strconv.ParseFloat(r.Rate, 64)
		if err != nil {
			continue
		}
		c.rates[r.Source+"_"+r.Target] = v
	}
	c.ratesAsOf = time.Now()
	return nil
}

// RateToRUB возвращает, сколько рублей стоит единица актива.
func (c *CryptoPay) RateToRUB(ctx context.Context, asset string) (float64, error) {
	c.mu.Lock()
	stale := time.Since(c.ratesAsOf) > c.ratesMaxTTL || len(c.rates) == 0
	c.mu.Unlock()
	if stale {
		if err := c.refreshRates(ctx); err != nil {
			return 0, err
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	rate, ok := c.rates[asset+"_RUB"]
	if !ok || rate <= 0 {
		return 0, fmt.Errorf("no exchange rate for %s_RUB", asset)
	}
	return rate, nil
}

// точность суммы по активу
func assetPrecision(asset string) int {
	switch asset {
	case "USDT", "TON":
		return 2
	case "ETH":
		return 6
	case "BTC":
		return 8
	default:
		return 6
	}
}

// CreateInvoiceRUB выставляет инвойс на рублёвую сумму, пересчитанную
// в актив по текущему курсу. Инвойс живёт 15 минут.
func (c *CryptoPay) CreateInvoiceRUB(ctx context.Context, amountRUB float64, asset, description string, userID int64) (*Invoice, error) {
	rate, err := c.RateToRUB(ctx, asset)
	if err != nil {
		return nil, err
	}
	p := math.Pow10(assetPrecision(asset))
	cryptoAmount := math.Round(amountRUB/rate*p) / p

	var inv Invoice
	err = c.request(ctx, http.MethodPost, "createInvoice", map[string]any{
		"asset":       asset,
		"amount":      strconv.FormatFloat(cryptoAmount, 'f', -1, 64),
		"description": description,
		"payload":     strconv.FormatInt(userID, 10),
		"expires_in":  900,
	}, &inv)
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

// GetInvoice возвращает инвойс по id, nil — если не найден.
func (c *CryptoPay) GetInvoice(ctx context.Context, invoiceID int64) (*Invoice, error) {
	var res struct {
		Items []Invoice `json:"items"`
	}
	path := fmt.Sprintf("getInvoices?invoice_ids=%d", invoiceID)
	if err := c.request(ctx, http.MethodGet, path, nil, &res); err != nil {
		return nil, err
	}
	if len(res.Items) == 0 {
		return nil, nil
	}
	return &res.Items[0], nil
}
