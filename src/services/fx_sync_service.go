package services

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/username/kabutax/backend/src/logger"
	"github.com/username/kabutax/backend/src/processors"
	"golang.org/x/net/publicsuffix"
)

// fxSyncServiceImpl pulls fresh TTS/TTB quotes from the configured upstream
// feed and merges them into the on-disk per-currency tables. Some bank feeds
// require session cookies, so the client carries a cookie jar.
type fxSyncServiceImpl struct {
	httpClient http.Client
	baseURL    string
	store      *processors.FxStore
}

func NewFxSyncService(store *processors.FxStore, baseURL string) FxSyncService {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		logger.L.Error("Failed to create cookie jar", "error", err)
	}

	client := http.Client{
		Jar:     jar,
		Timeout: 20 * time.Second,
	}

	return &fxSyncServiceImpl{
		httpClient: client,
		baseURL:    strings.TrimRight(baseURL, "/"),
		store:      store,
	}
}

// SyncCurrency fetches the upstream table for one currency, merges it with
// the local file (upstream wins on duplicate dates), rewrites the file
// date-descending, and reloads the in-memory store. It returns the number of
// newly added quote dates.
func (s *fxSyncServiceImpl) SyncCurrency(currency string) (int, error) {
	if s.baseURL == "" {
		return 0, fmt.Errorf("fx sync is not configured (FX_SYNC_BASE_URL is empty)")
	}

	url := fmt.Sprintf("%s/%s.json", s.baseURL, strings.ToLower(currency))
	logger.L.Info("Fetching upstream exchange rates", "currency", currency, "url", url)

	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch rates for %s: %w", currency, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("upstream returned status %d for %s", resp.StatusCode, currency)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("failed to read upstream response for %s: %w", currency, err)
	}

	var upstream processors.FxTable
	if err := json.Unmarshal(body, &upstream); err != nil {
		return 0, fmt.Errorf("failed to parse upstream rates for %s: %w", currency, err)
	}

	path := filepath.Join(s.store.Dir(), strings.ToLower(currency)+".json")
	var local processors.FxTable
	if raw, err := os.ReadFile(path); err == nil {
		if err := json.Unmarshal(raw, &local); err != nil {
			logger.L.Warn("Local rate file is malformed, replacing it wholesale", "path", path, "error", err)
			local = nil
		}
	}

	merged, added := mergeFxTables(local, upstream)

	out, err := json.MarshalIndent(merged, "", "  ")
	if err != nil {
		return 0, err
	}
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return 0, fmt.Errorf("failed to write merged rates to %s: %w", path, err)
	}

	if err := s.store.Reload(); err != nil {
		return 0, fmt.Errorf("rates written but reload failed: %w", err)
	}

	logger.L.Info("Exchange rates synced", "currency", currency, "added", added, "total", len(merged))
	return added, nil
}

// mergeFxTables overlays upstream quotes on the local table by date and
// returns the result sorted newest first.
func mergeFxTables(local, upstream processors.FxTable) (processors.FxTable, int) {
	byDate := make(map[string]processors.FxQuote, len(local)+len(upstream))
	for _, q := range local {
		byDate[q.Date] = q
	}
	added := 0
	for _, q := range upstream {
		if _, exists := byDate[q.Date]; !exists {
			added++
		}
		byDate[q.Date] = q
	}

	merged := make(processors.FxTable, 0, len(byDate))
	for _, q := range byDate {
		merged = append(merged, q)
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].Date > merged[j].Date })
	return merged, added
}
