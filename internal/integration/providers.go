package integration

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tzedaka/maaser/internal/config"
)

// ErrNoAccessToken is returned when PayPal issues no token.
var ErrNoAccessToken = errors.New("paypal returned no access token")

func windowQuery(w Window) url.Values {
	q := url.Values{}
	if !w.Start.IsZero() {
		q.Set("start_date", w.Start.UTC().Format(time.RFC3339))
	}
	if !w.End.IsZero() {
		q.Set("end_date", w.End.UTC().Format(time.RFC3339))
	}
	return q
}

// BankProvider reads the aggregator's transaction sync feed.
type BankProvider struct {
	cfg    config.BankConfig
	client *Client
}

// NewBankProvider creates the bank aggregator provider.
func NewBankProvider(cfg config.BankConfig, client *Client) *BankProvider {
	return &BankProvider{cfg: cfg, client: client}
}

func (p *BankProvider) Name() string  { return ProviderBank }
func (p *BankProvider) Enabled() bool { return p.cfg.Enabled() }

type bankTransaction struct {
	TransactionID string     `json:"transaction_id"`
	ID            string     `json:"id"`
	Date          string     `json:"date"`
	Name          string     `json:"name"`
	Description   string     `json:"description"`
	Amount        flexAmount `json:"amount"`
	AccountID     string     `json:"account_id"`
	Category      flexString `json:"category"`
}

// Fetch ignores the window; the aggregator tracks its own cursor.
func (p *BankProvider) Fetch(ctx context.Context, _ Window) ([]Record, error) {
	var resp struct {
		Added        []bankTransaction `json:"added"`
		Transactions []bankTransaction `json:"transactions"`
	}
	err := p.client.Do(ctx, Request{
		Method: http.MethodGet,
		URL:    joinURL(p.cfg.BaseURL, "/transactions/sync"),
		Headers: map[string]string{
			"x-api-key":     p.cfg.APIKey,
			"Authorization": bearer(p.cfg.AccessToken),
		},
	}, &resp)
	if err != nil {
		return nil, err
	}

	items := resp.Added
	if len(items) == 0 {
		items = resp.Transactions
	}

	records := make([]Record, 0, len(items))
	for _, t := range items {
		id := firstNonEmpty(t.TransactionID, t.ID)
		records = append(records, Record{
			SourceID:    id,
			Date:        t.Date,
			Description: firstNonEmpty(t.Name, t.Description),
			Amount:      string(t.Amount),
			Account:     t.AccountID,
			Category:    string(t.Category),
		})
	}
	return records, nil
}

// PayPalProvider reads the PayPal transaction reporting API.
type PayPalProvider struct {
	cfg    config.PayPalConfig
	client *Client
}

// NewPayPalProvider creates the PayPal provider.
func NewPayPalProvider(cfg config.PayPalConfig, client *Client) *PayPalProvider {
	return &PayPalProvider{cfg: cfg, client: client}
}

func (p *PayPalProvider) Name() string  { return ProviderPayPal }
func (p *PayPalProvider) Enabled() bool { return p.cfg.Enabled() }

// accessToken performs the client-credentials exchange.
func (p *PayPalProvider) accessToken(ctx context.Context) (string, error) {
	credentials := base64.StdEncoding.EncodeToString([]byte(p.cfg.ClientID + ":" + p.cfg.ClientSecret))

	var resp struct {
		AccessToken string `json:"access_token"`
	}
	err := p.client.Do(ctx, Request{
		Method:  http.MethodPost,
		URL:     joinURL(p.cfg.BaseURL, "/v1/oauth2/token"),
		Headers: map[string]string{"Authorization": "Basic " + credentials},
		Form:    url.Values{"grant_type": {"client_credentials"}},
	}, &resp)
	if err != nil {
		return "", fmt.Errorf("paypal token: %w", err)
	}
	if resp.AccessToken == "" {
		return "", ErrNoAccessToken
	}
	return resp.AccessToken, nil
}

type paypalTransaction struct {
	TransactionInfo struct {
		TransactionID             string     `json:"transaction_id"`
		TransactionInitiationDate string     `json:"transaction_initiation_date"`
		TransactionAmount         flexAmount `json:"transaction_amount"`
		PayPalAccountID           string     `json:"paypal_account_id"`
		TransactionEventCode      string     `json:"transaction_event_code"`
	} `json:"transaction_info"`
	PayerInfo struct {
		PayerName payerName `json:"payer_name"`
	} `json:"payer_info"`
}

// payerName accepts either a plain string or PayPal's name object.
type payerName string

func (n *payerName) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*n = payerName(s)
		return nil
	}

	var obj struct {
		AlternateFullName string `json:"alternate_full_name"`
		GivenName         string `json:"given_name"`
		Surname           string `json:"surname"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	full := strings.TrimSpace(obj.GivenName + " " + obj.Surname)
	*n = payerName(firstNonEmpty(obj.AlternateFullName, full))
	return nil
}

func (p *PayPalProvider) Fetch(ctx context.Context, window Window) ([]Record, error) {
	token, err := p.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	var resp struct {
		TransactionDetails []paypalTransaction `json:"transaction_details"`
	}
	err = p.client.Do(ctx, Request{
		Method:  http.MethodGet,
		URL:     joinURL(p.cfg.BaseURL, "/v1/reporting/transactions"),
		Query:   windowQuery(window),
		Headers: map[string]string{"Authorization": bearer(token)},
	}, &resp)
	if err != nil {
		return nil, err
	}

	records := make([]Record, 0, len(resp.TransactionDetails))
	for _, t := range resp.TransactionDetails {
		info := t.TransactionInfo
		records = append(records, Record{
			SourceID:    info.TransactionID,
			Date:        info.TransactionInitiationDate,
			Description: firstNonEmpty(string(t.PayerInfo.PayerName), info.TransactionEventCode),
			Amount:      string(info.TransactionAmount),
			Account:     info.PayPalAccountID,
			Category:    info.TransactionEventCode,
		})
	}
	return records, nil
}

// CashAppProvider reads Cash App transfers.
type CashAppProvider struct {
	cfg    config.CashAppConfig
	client *Client
}

// NewCashAppProvider creates the Cash App provider.
func NewCashAppProvider(cfg config.CashAppConfig, client *Client) *CashAppProvider {
	return &CashAppProvider{cfg: cfg, client: client}
}

func (p *CashAppProvider) Name() string  { return ProviderCashApp }
func (p *CashAppProvider) Enabled() bool { return p.cfg.Enabled() }

type cashAppTransfer struct {
	ID        string     `json:"id"`
	CreatedAt string     `json:"created_at"`
	Date      string     `json:"date"`
	Note      string     `json:"note"`
	Amount    flexAmount `json:"amount"`
	NetAmount flexAmount `json:"net_amount"`
	AccountID string     `json:"account_id"`
	Status    string     `json:"status"`
}

func (p *CashAppProvider) Fetch(ctx context.Context, window Window) ([]Record, error) {
	var raw json.RawMessage
	err := p.client.Do(ctx, Request{
		Method:  http.MethodGet,
		URL:     joinURL(p.cfg.BaseURL, "/transfers"),
		Query:   windowQuery(window),
		Headers: map[string]string{"Authorization": bearer(p.cfg.APIKey)},
	}, &raw)
	if err != nil {
		return nil, err
	}

	items, err := decodeList[cashAppTransfer](raw, "transfers")
	if err != nil {
		return nil, err
	}

	records := make([]Record, 0, len(items))
	for _, t := range items {
		records = append(records, Record{
			SourceID:    t.ID,
			Date:        firstNonEmpty(t.CreatedAt, t.Date),
			Description: firstNonEmpty(t.Note, "Cash App transfer"),
			Amount:      firstNonEmpty(string(t.Amount), string(t.NetAmount)),
			Account:     firstNonEmpty(t.AccountID, "Cash App"),
			Category:    t.Status,
		})
	}
	return records, nil
}

// ZelleProvider reads Zelle transfers.
type ZelleProvider struct {
	cfg    config.ZelleConfig
	client *Client
}

// NewZelleProvider creates the Zelle provider.
func NewZelleProvider(cfg config.ZelleConfig, client *Client) *ZelleProvider {
	return &ZelleProvider{cfg: cfg, client: client}
}

func (p *ZelleProvider) Name() string  { return ProviderZelle }
func (p *ZelleProvider) Enabled() bool { return p.cfg.Enabled() }

type zelleTransfer struct {
	ID        string     `json:"id"`
	Date      string     `json:"date"`
	Memo      string     `json:"memo"`
	Amount    flexAmount `json:"amount"`
	Account   string     `json:"account"`
	Direction string     `json:"direction"`
}

func (p *ZelleProvider) Fetch(ctx context.Context, window Window) ([]Record, error) {
	var raw json.RawMessage
	err := p.client.Do(ctx, Request{
		Method:  http.MethodGet,
		URL:     joinURL(p.cfg.BaseURL, "/transfers"),
		Query:   windowQuery(window),
		Headers: map[string]string{"Authorization": bearer(p.cfg.APIKey)},
	}, &raw)
	if err != nil {
		return nil, err
	}

	items, err := decodeList[zelleTransfer](raw, "transfers")
	if err != nil {
		return nil, err
	}

	records := make([]Record, 0, len(items))
	for _, t := range items {
		records = append(records, Record{
			SourceID:    t.ID,
			Date:        t.Date,
			Description: firstNonEmpty(t.Memo, "Zelle transfer"),
			Amount:      string(t.Amount),
			Account:     firstNonEmpty(t.Account, "Zelle"),
			Category:    t.Direction,
		})
	}
	return records, nil
}

// VenmoProvider reads Venmo payments.
type VenmoProvider struct {
	cfg    config.VenmoConfig
	client *Client
}

// NewVenmoProvider creates the Venmo provider.
func NewVenmoProvider(cfg config.VenmoConfig, client *Client) *VenmoProvider {
	return &VenmoProvider{cfg: cfg, client: client}
}

func (p *VenmoProvider) Name() string  { return ProviderVenmo }
func (p *VenmoProvider) Enabled() bool { return p.cfg.Enabled() }

type venmoPayment struct {
	ID            string     `json:"id"`
	CreatedAt     string     `json:"created_at"`
	DateCompleted string     `json:"date_completed"`
	Note          string     `json:"note"`
	Amount        flexAmount `json:"amount"`
	Source        string     `json:"source"`
	Status        string     `json:"status"`
}

func (p *VenmoProvider) Fetch(ctx context.Context, window Window) ([]Record, error) {
	var raw json.RawMessage
	err := p.client.Do(ctx, Request{
		Method:  http.MethodGet,
		URL:     joinURL(p.cfg.BaseURL, "/payments"),
		Query:   windowQuery(window),
		Headers: map[string]string{"Authorization": bearer(p.cfg.APIKey)},
	}, &raw)
	if err != nil {
		return nil, err
	}

	items, err := decodeList[venmoPayment](raw, "payments")
	if err != nil {
		return nil, err
	}

	records := make([]Record, 0, len(items))
	for _, t := range items {
		records = append(records, Record{
			SourceID:    t.ID,
			Date:        firstNonEmpty(t.CreatedAt, t.DateCompleted),
			Description: firstNonEmpty(t.Note, "Venmo payment"),
			Amount:      string(t.Amount),
			Account:     firstNonEmpty(t.Source, "Venmo"),
			Category:    t.Status,
		})
	}
	return records, nil
}
