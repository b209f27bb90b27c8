// Package quote fetches current prices and exchange rates from HTTP JSON
// APIs. Values are extracted with JSONPath expressions so that a provider is
// only a URL template and a couple of paths.
package quote

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/PaesslerAG/jsonpath"
	"github.com/etnz/stocker"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

// HTTPSource is a stocker.PriceSource reading a JSON API.
type HTTPSource struct {
	Name         string
	URL          string // template, {symbol} is replaced by the escaped symbol
	PricePath    string
	CurrencyPath string // optional, the price is taken in the trading currency when empty
	Client       *http.Client
	Limiter      *rate.Limiter // optional
	Log          zerolog.Logger
}

// Yahoo returns a source reading the Yahoo Finance chart API.
func Yahoo() *HTTPSource {
	return &HTTPSource{
		Name:         "yahoo",
		URL:          "https://query1.finance.yahoo.com/v8/finance/chart/{symbol}?interval=1d&range=1d",
		PricePath:    "$.chart.result[0].meta.regularMarketPrice",
		CurrencyPath: "$.chart.result[0].meta.currency",
	}
}

// EODHD returns a source reading the EODHD real-time API.
// EODHD symbols carry their exchange, as in "AAPL.US".
func EODHD(apiKey string) *HTTPSource {
	return &HTTPSource{
		Name:      "eodhd",
		URL:       "https://eodhd.com/api/real-time/{symbol}?fmt=json&api_token=" + url.QueryEscape(apiKey),
		PricePath: "$.close",
	}
}

// Price fetches the current price of symbol.
func (s *HTTPSource) Price(ctx context.Context, symbol string) (stocker.Money, error) {
	if s.Limiter != nil {
		if err := s.Limiter.Wait(ctx); err != nil {
			return stocker.Money{}, fmt.Errorf("%w: %s: %v", stocker.ErrPriceUnavailable, symbol, err)
		}
	}
	addr := strings.ReplaceAll(s.URL, "{symbol}", url.PathEscape(symbol))
	var jobj any
	if err := jget(ctx, client(s.Client), addr, &jobj); err != nil {
		return stocker.Money{}, fmt.Errorf("%w: %s from %s: %v", stocker.ErrPriceUnavailable, symbol, s.Name, err)
	}
	price, err := number(jobj, s.PricePath)
	if err != nil {
		return stocker.Money{}, fmt.Errorf("%w: %s from %s: %v", stocker.ErrPriceUnavailable, symbol, s.Name, err)
	}
	var currency string
	if s.CurrencyPath != "" {
		if v, err := lookup(jobj, s.CurrencyPath); err == nil {
			currency, _ = v.(string)
		}
		currency = strings.ToUpper(currency)
	}
	s.Log.Debug().Str("source", s.Name).Str("symbol", symbol).Str("price", price.String()).Str("currency", currency).Msg("price fetched")
	return stocker.M(price, currency), nil
}

// HTTPRates is a stocker.RateSource reading a JSON API.
type HTTPRates struct {
	Name    string
	URL     string // template with {from} and {to}
	Path    string
	Client  *http.Client
	Limiter *rate.Limiter
	Log     zerolog.Logger
}

// YahooRates returns a rate source reading the Yahoo Finance currency pairs.
func YahooRates() *HTTPRates {
	return &HTTPRates{
		Name: "yahoo",
		URL:  "https://query1.finance.yahoo.com/v8/finance/chart/{from}{to}=X?interval=1d&range=1d",
		Path: "$.chart.result[0].meta.regularMarketPrice",
	}
}

// Rate returns how many units of to one unit of from is worth.
func (r *HTTPRates) Rate(ctx context.Context, from, to string) (decimal.Decimal, error) {
	if from == to {
		return decimal.NewFromInt(1), nil
	}
	if r.Limiter != nil {
		if err := r.Limiter.Wait(ctx); err != nil {
			return decimal.Zero, fmt.Errorf("%w: %s%s: %v", stocker.ErrRateUnavailable, from, to, err)
		}
	}
	addr := strings.NewReplacer("{from}", url.PathEscape(from), "{to}", url.PathEscape(to)).Replace(r.URL)
	var jobj any
	if err := jget(ctx, client(r.Client), addr, &jobj); err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s%s from %s: %v", stocker.ErrRateUnavailable, from, to, r.Name, err)
	}
	v, err := number(jobj, r.Path)
	if err != nil || !v.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: %s%s from %s: %v", stocker.ErrRateUnavailable, from, to, r.Name, err)
	}
	r.Log.Debug().Str("source", r.Name).Str("pair", from+to).Str("rate", v.String()).Msg("rate fetched")
	return v, nil
}

// NewLimiter returns a limiter allowing perSecond requests per second, or nil
// for no limit.
func NewLimiter(perSecond int) *rate.Limiter {
	if perSecond <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(perSecond), perSecond)
}

func client(c *http.Client) *http.Client {
	if c == nil {
		return http.DefaultClient
	}
	return c
}

func lookup(jobj any, path string) (any, error) {
	jval, err := jsonpath.Get(path, jobj)
	if err != nil {
		return nil, fmt.Errorf("%q: %w", path, err)
	}
	// jsonpath returns either a single value or a list of one.
	if jlist, ok := jval.([]any); ok {
		if len(jlist) == 0 {
			return nil, fmt.Errorf("%q: no value", path)
		}
		jval = jlist[0]
	}
	return jval, nil
}

// number reads a JSON number, or a string holding one, at path.
func number(jobj any, path string) (decimal.Decimal, error) {
	jval, err := lookup(jobj, path)
	if err != nil {
		return decimal.Zero, err
	}
	switch v := jval.(type) {
	case float64:
		return decimal.NewFromFloat(v), nil
	case string:
		v = strings.ReplaceAll(strings.TrimSpace(v), ",", "")
		if _, err := strconv.ParseFloat(v, 64); err != nil {
			return decimal.Zero, fmt.Errorf("%q: invalid number %q", path, v)
		}
		return decimal.NewFromString(v)
	default:
		return decimal.Zero, fmt.Errorf("%q: not a number: %v", path, jval)
	}
}
