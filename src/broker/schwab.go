package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"
	"github.com/username/optionledger/src/config"
	"github.com/username/optionledger/src/logger"
	"github.com/username/optionledger/src/models"
	"github.com/username/optionledger/src/services"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

// --- API Response Structs ---

type schwabAccountRef struct {
	AccountNumber string `json:"accountNumber"`
	HashValue     string `json:"hashValue"`
}

type schwabAccountDetails struct {
	SecuritiesAccount struct {
		CurrentBalances struct {
			CashBalance      float64 `json:"cashBalance"`
			BuyingPower      float64 `json:"buyingPower"`
			LiquidationValue float64 `json:"liquidationValue"`
		} `json:"currentBalances"`
		Positions []struct {
			LongQuantity  float64 `json:"longQuantity"`
			ShortQuantity float64 `json:"shortQuantity"`
			AveragePrice  float64 `json:"averagePrice"`
			MarketValue   float64 `json:"marketValue"`
			Instrument    struct {
				AssetType        string  `json:"assetType"`
				Symbol           string  `json:"symbol"`
				UnderlyingSymbol string  `json:"underlyingSymbol"`
				PutCall          string  `json:"putCall"`
				StrikePrice      float64 `json:"strikePrice"`
				ExpirationDate   string  `json:"expirationDate"`
			} `json:"instrument"`
		} `json:"positions"`
	} `json:"securitiesAccount"`
}

// SchwabClient talks to the Schwab trader API. Requests share a persisted
// OAuth token, go through a rate limiter, and responses are cached briefly
// so that a snapshot run followed by a CLI query does not hit the API twice.
type SchwabClient struct {
	httpClient  *http.Client
	baseURL     string
	accountHash string
	limiter     *rate.Limiter
	cache       *cache.Cache
	cacheTTL    time.Duration
}

// NewSchwabClient builds a client from the loaded configuration. The OAuth
// token is read from cfg.SchwabTokenPath and refreshed automatically by the
// oauth2 transport.
func NewSchwabClient(cfg *config.AppConfig) (*SchwabClient, error) {
	token, err := loadToken(cfg.SchwabTokenPath)
	if err != nil {
		return nil, fmt.Errorf("loading broker token from %s: %w", cfg.SchwabTokenPath, err)
	}

	oauthCfg := &oauth2.Config{
		ClientID:     cfg.SchwabAppKey,
		ClientSecret: cfg.SchwabAppSecret,
		Endpoint: oauth2.Endpoint{
			TokenURL:  cfg.SchwabBaseURL + "/v1/oauth/token",
			AuthStyle: oauth2.AuthStyleInHeader,
		},
	}

	ctx := context.Background()
	httpClient := oauth2.NewClient(ctx, persistingTokenSource{
		path:  cfg.SchwabTokenPath,
		inner: oauthCfg.TokenSource(ctx, token),
	})
	httpClient.Timeout = cfg.BrokerTimeout

	return &SchwabClient{
		httpClient: httpClient,
		baseURL:    cfg.SchwabBaseURL,
		limiter:    rate.NewLimiter(rate.Limit(cfg.BrokerRatePerSec), cfg.BrokerRatePerSec),
		cache:      cache.New(cfg.BrokerCacheTTL, 2*cfg.BrokerCacheTTL),
		cacheTTL:   cfg.BrokerCacheTTL,
	}, nil
}

func (c *SchwabClient) get(ctx context.Context, path string, query url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("broker request %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading broker response %s: %w", path, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("broker request %s: status %d: %s", path, resp.StatusCode, truncate(string(body), 200))
	}
	return json.Unmarshal(body, out)
}

// resolveAccountHash maps the configured account number to the hashed
// account id the Schwab API expects on every account-scoped endpoint.
func (c *SchwabClient) resolveAccountHash(ctx context.Context, accountID string) (string, error) {
	if c.accountHash != "" {
		return c.accountHash, nil
	}

	var accounts []schwabAccountRef
	if err := c.get(ctx, "/trader/v1/accounts/accountNumbers", nil, &accounts); err != nil {
		return "", err
	}
	if len(accounts) == 0 {
		return "", services.ErrNoAccount
	}

	for _, acct := range accounts {
		if accountID == "" || acct.AccountNumber == accountID {
			c.accountHash = acct.HashValue
			return c.accountHash, nil
		}
	}
	return "", fmt.Errorf("%w: account %s not found among %d linked accounts", services.ErrNoAccount, accountID, len(accounts))
}

// Transactions fetches all transaction records for the window. The raw
// records come back undecoded beyond the shared RawTransaction shape; the
// classifier downstream decides what they mean.
func (c *SchwabClient) Transactions(ctx context.Context, accountID string, start, end time.Time) ([]models.RawTransaction, error) {
	hash, err := c.resolveAccountHash(ctx, accountID)
	if err != nil {
		return nil, err
	}

	cacheKey := fmt.Sprintf("txs|%s|%s|%s", hash, start.Format("2006-01-02"), end.Format("2006-01-02"))
	if cached, found := c.cache.Get(cacheKey); found {
		return cached.([]models.RawTransaction), nil
	}

	query := url.Values{}
	query.Set("startDate", start.UTC().Format("2006-01-02T15:04:05.000Z"))
	query.Set("endDate", end.UTC().Format("2006-01-02T15:04:05.000Z"))

	var txs []models.RawTransaction
	if err := c.get(ctx, "/trader/v1/accounts/"+hash+"/transactions", query, &txs); err != nil {
		return nil, err
	}

	logger.L.Debug("Fetched broker transactions", "count", len(txs),
		"start", start.Format("2006-01-02"), "end", end.Format("2006-01-02"))
	c.cache.Set(cacheKey, txs, c.cacheTTL)
	return txs, nil
}

// AccountSnapshot fetches balances and positions for the first (or
// configured) linked account.
func (c *SchwabClient) AccountSnapshot(ctx context.Context) (*models.AccountSnapshot, error) {
	if cached, found := c.cache.Get("snapshot"); found {
		return cached.(*models.AccountSnapshot), nil
	}

	hash, err := c.resolveAccountHash(ctx, "")
	if err != nil {
		return nil, err
	}

	var details schwabAccountDetails
	query := url.Values{"fields": {"positions"}}
	if err := c.get(ctx, "/trader/v1/accounts/"+hash, query, &details); err != nil {
		return nil, err
	}

	account := details.SecuritiesAccount
	liquidation := decimal.NewFromFloat(account.CurrentBalances.LiquidationValue)
	snapshot := &models.AccountSnapshot{
		GeneratedAt:      time.Now().UTC(),
		AccountID:        hash,
		Cash:             decimal.NewFromFloat(account.CurrentBalances.CashBalance),
		BuyingPower:      decimal.NewFromFloat(account.CurrentBalances.BuyingPower),
		LiquidationValue: &liquidation,
	}

	for _, pos := range account.Positions {
		qty := decimal.NewFromFloat(pos.LongQuantity - pos.ShortQuantity)
		if qty.IsZero() {
			continue
		}
		marketValue := decimal.NewFromFloat(pos.MarketValue)

		switch pos.Instrument.AssetType {
		case "OPTION":
			// Options are quoted per share but marketValue covers the whole
			// position, so divide by contracts x 100 for the per-share price.
			perShare := marketValue.Abs().Div(qty.Abs().Mul(decimal.NewFromInt(100)))
			expiry, _ := time.Parse(time.RFC3339, pos.Instrument.ExpirationDate)
			snapshot.Options = append(snapshot.Options, models.OptionPosition{
				Symbol:         pos.Instrument.UnderlyingSymbol,
				ContractSymbol: pos.Instrument.Symbol,
				Qty:            qty,
				AvgCost:        decimal.NewFromFloat(pos.AveragePrice),
				MarketPrice:    perShare,
				Strike:         decimal.NewFromFloat(pos.Instrument.StrikePrice),
				Expiry:         expiry,
				PutCall:        firstChar(pos.Instrument.PutCall),
			})
		case "EQUITY":
			snapshot.Stocks = append(snapshot.Stocks, models.StockPosition{
				Symbol:      pos.Instrument.Symbol,
				Qty:         qty,
				AvgCost:     decimal.NewFromFloat(pos.AveragePrice),
				MarketPrice: marketValue.Abs().Div(qty.Abs()),
			})
		case "MUTUAL_FUND", "COLLECTIVE_INVESTMENT":
			snapshot.Funds = append(snapshot.Funds, models.MutualFundPosition{
				Symbol:      pos.Instrument.Symbol,
				Qty:         qty,
				AvgCost:     decimal.NewFromFloat(pos.AveragePrice),
				MarketPrice: marketValue.Abs().Div(qty.Abs()),
			})
		}
	}

	c.cache.Set("snapshot", snapshot, c.cacheTTL)
	return snapshot, nil
}

// persistingTokenSource writes refreshed tokens back to disk so the next
// process start does not need a fresh authorization.
type persistingTokenSource struct {
	path  string
	inner oauth2.TokenSource
}

func (p persistingTokenSource) Token() (*oauth2.Token, error) {
	token, err := p.inner.Token()
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(token); err == nil {
		if writeErr := os.WriteFile(p.path, data, 0o600); writeErr != nil {
			logger.L.Warn("Could not persist refreshed broker token", "path", p.path, "error", writeErr)
		}
	}
	return token, nil
}

func loadToken(path string) (*oauth2.Token, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var token oauth2.Token
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("parsing token file: %w", err)
	}
	return &token, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func firstChar(s string) string {
	if s == "" {
		return ""
	}
	return s[:1]
}
