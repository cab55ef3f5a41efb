// Package scraper collects raw listings from resale marketplace pages with
// a headless browser. Scraped listings feed the ingest pipeline after
// normalization.
package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"golang.org/x/sync/errgroup"

	"github.com/nightowl2626/LuxPricer/internal/listing"
)

const (
	// DefaultConcurrency bounds parallel detail-page fetches.
	DefaultConcurrency = 3

	// DefaultNavigateTimeout bounds a single page load and extraction.
	DefaultNavigateTimeout = 60 * time.Second

	// DefaultMaxRetries is how many times a failed page load is retried.
	DefaultMaxRetries = 2

	defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 " +
		"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	retryBaseDelay = 2 * time.Second
)

// Config holds scraper settings.
type Config struct {
	Concurrency     int
	NavigateTimeout time.Duration
	MaxRetries      int
	ChromeBin       string
	UserAgent       string
}

// DefaultConfig returns production defaults. The Chrome binary is located
// from CHROME_BIN or well-known paths when unset.
func DefaultConfig() Config {
	return Config{
		Concurrency:     DefaultConcurrency,
		NavigateTimeout: DefaultNavigateTimeout,
		MaxRetries:      DefaultMaxRetries,
		UserAgent:       defaultUserAgent,
	}
}

// Scraper fetches listing detail pages and extracts raw attributes.
type Scraper struct {
	cfg    Config
	logger *slog.Logger
}

// New creates a Scraper.
func New(cfg Config, logger *slog.Logger) *Scraper {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.NavigateTimeout <= 0 {
		cfg.NavigateTimeout = DefaultNavigateTimeout
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.ChromeBin == "" {
		cfg.ChromeBin = findChromeBinary()
	}
	return &Scraper{cfg: cfg, logger: logger}
}

// rawListing is the field set extracted from a detail page before price
// parsing and normalization.
type rawListing struct {
	Title       string `json:"title"`
	Brand       string `json:"brand"`
	Price       string `json:"price"`
	Condition   string `json:"condition"`
	Material    string `json:"material"`
	Color       string `json:"color"`
	Size        string `json:"size"`
	Description string `json:"description"`
}

// ScrapeListings fetches the given detail-page URLs and converts them to
// listings tagged with the platform name. Pages that fail after retries are
// logged and skipped; the error is non-nil only when the browser cannot be
// started.
func (s *Scraper) ScrapeListings(ctx context.Context, urls []string, platform string) ([]listing.Listing, error) {
	if len(urls) == 0 {
		return nil, nil
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(s.cfg.UserAgent),
	)
	if s.cfg.ChromeBin != "" {
		opts = append(opts, chromedp.ExecPath(s.cfg.ChromeBin))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	// Suppress chromedp log noise
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))
	defer cancelBrowser()

	var (
		mu  sync.Mutex
		out []listing.Listing
	)

	g, gctx := errgroup.WithContext(browserCtx)
	g.SetLimit(s.cfg.Concurrency)
	for _, url := range urls {
		g.Go(func() error {
			raw, err := s.scrapeDetail(gctx, url)
			if err != nil {
				s.logger.Warn("detail page failed, skipping",
					slog.String("url", url), slog.Any("error", err))
				return nil
			}

			l, err := s.toListing(raw, url, platform)
			if err != nil {
				s.logger.Warn("unusable listing, skipping",
					slog.String("url", url), slog.Any("error", err))
				return nil
			}

			mu.Lock()
			out = append(out, l)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	s.logger.Info("scrape complete",
		slog.String("platform", platform),
		slog.Int("requested", len(urls)),
		slog.Int("collected", len(out)))
	return out, nil
}

// scrapeDetail loads one page and extracts raw fields, retrying transient
// failures with linear backoff.
func (s *Scraper) scrapeDetail(ctx context.Context, url string) (*rawListing, error) {
	var lastErr error
	for attempt := 1; attempt <= s.cfg.MaxRetries; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(retryBaseDelay * time.Duration(attempt-1)):
			}
		}

		raw, err := s.extractOnce(ctx, url)
		if err == nil {
			return raw, nil
		}
		lastErr = err
		s.logger.Debug("scrape attempt failed",
			slog.String("url", url),
			slog.Int("attempt", attempt),
			slog.Any("error", err))
	}
	return nil, fmt.Errorf("after %d attempts: %w", s.cfg.MaxRetries, lastErr)
}

func (s *Scraper) extractOnce(parent context.Context, url string) (*rawListing, error) {
	ctx, cancel := chromedp.NewContext(parent)
	defer cancel()

	ctx, cancelTimeout := context.WithTimeout(ctx, s.cfg.NavigateTimeout)
	defer cancelTimeout()

	var raw rawListing
	err := chromedp.Run(ctx,
		chromedp.Navigate(url),
		chromedp.Sleep(3*time.Second),
		chromedp.Evaluate(`
			(function() {
				var result = {
					title: '', brand: '', price: '', condition: '',
					material: '', color: '', size: '', description: ''
				};

				var titleEl = document.querySelector('h1[itemprop="name"]') ||
				              document.querySelector('[data-testid="listing-title"]') ||
				              document.querySelector('h1');
				if (titleEl) result.title = titleEl.innerText.trim();

				var brandEl = document.querySelector('[itemprop="brand"]') ||
				              document.querySelector('[data-testid="listing-brand"]') ||
				              document.querySelector('a[href*="/brand/"]');
				if (brandEl) result.brand = brandEl.innerText.trim();

				var priceEl = document.querySelector('[itemprop="price"]') ||
				              document.querySelector('[data-testid="listing-price"]') ||
				              document.querySelector('span[class*="price"]') ||
				              document.querySelector('div[class*="price"]');
				if (priceEl) {
					var m = priceEl.innerText.match(/(\$|€|£)\s*[\d,]+(\.\d+)?/);
					result.price = m ? m[0] : priceEl.innerText.trim();
				}

				// Attribute tables: dt/dd pairs or "Label: value" rows.
				var labeled = function(name) {
					var dts = document.querySelectorAll('dt, th, span[class*="label"]');
					for (var i = 0; i < dts.length; i++) {
						if (dts[i].innerText.toLowerCase().indexOf(name) !== -1) {
							var sib = dts[i].nextElementSibling;
							if (sib) return sib.innerText.trim();
						}
					}
					var rows = document.querySelectorAll('li, tr, p');
					var re = new RegExp(name + '\\s*:?\\s*(.+)', 'i');
					for (var j = 0; j < rows.length; j++) {
						var text = rows[j].innerText || '';
						if (text.length > 120) continue;
						var m = text.match(re);
						if (m && m[1]) return m[1].trim().split('\n')[0];
					}
					return '';
				};
				result.condition = labeled('condition');
				result.material = labeled('material');
				result.color = labeled('color');
				result.size = labeled('size');

				var descEl = document.querySelector('[itemprop="description"]') ||
				             document.querySelector('[data-testid="listing-description"]') ||
				             document.querySelector('div[class*="description"]');
				if (descEl) result.description = descEl.innerText.trim().substring(0, 1000);

				return result;
			})()
		`, &raw),
	)
	if err != nil {
		return nil, fmt.Errorf("chromedp extract: %w", err)
	}
	if raw.Title == "" {
		return nil, fmt.Errorf("page yielded no title")
	}
	return &raw, nil
}

// toListing converts raw page fields into a catalog listing. The brand is
// taken from the page's brand element when present, otherwise the first
// token of the title; the remainder of the title is the model.
func (s *Scraper) toListing(raw *rawListing, url, platform string) (listing.Listing, error) {
	price, err := parsePrice(raw.Price)
	if err != nil {
		return listing.Listing{}, fmt.Errorf("price %q: %w", raw.Price, err)
	}

	brand := strings.TrimSpace(raw.Brand)
	model := strings.TrimSpace(raw.Title)
	if brand == "" {
		fields := strings.Fields(model)
		if len(fields) < 2 {
			return listing.Listing{}, fmt.Errorf("cannot split brand from title %q", raw.Title)
		}
		brand = fields[0]
		model = strings.Join(fields[1:], " ")
	} else if rest := strings.TrimSpace(strings.TrimPrefix(model, brand)); rest != "" {
		model = rest
	}

	l := listing.Listing{
		Brand:          brand,
		Model:          model,
		Price:          price,
		ConditionLabel: strings.ToLower(strings.TrimSpace(raw.Condition)),
		Material:       strings.TrimSpace(raw.Material),
		Color:          strings.TrimSpace(raw.Color),
		Description:    strings.TrimSpace(raw.Description),
		SourcePlatform: platform,
		SourceURL:      url,
	}
	if size := strings.TrimSpace(raw.Size); size != "" {
		l.Sizes = []string{size}
	}
	return l, nil
}

var priceRe = regexp.MustCompile(`[\d,]+(?:\.\d+)?`)

// parsePrice extracts a numeric amount from scraped price text.
func parsePrice(text string) (float64, error) {
	m := priceRe.FindString(text)
	if m == "" {
		return 0, fmt.Errorf("no numeric amount")
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(m, ",", ""), 64)
	if err != nil {
		return 0, err
	}
	if v <= 0 {
		return 0, fmt.Errorf("non-positive amount %v", v)
	}
	return v, nil
}

// findChromeBinary locates a Chrome/Chromium binary.
func findChromeBinary() string {
	if bin := os.Getenv("CHROME_BIN"); bin != "" {
		return bin
	}

	names := []string{"google-chrome-stable", "google-chrome", "chromium", "chromium-browser"}
	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	paths := []string{
		"/usr/bin/google-chrome-stable",
		"/usr/bin/google-chrome",
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/snap/bin/chromium",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}
