package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
)

const vaultTimeout = 10 * time.Second

// VaultRetriever queries the remote vault's note search over HTTP.
// Network failures and 404s degrade to empty results, never errors.
type VaultRetriever struct {
	baseURL string
	token   string
	client  *http.Client
	log     *zap.Logger
}

func NewVaultRetriever(baseURL, token string, log *zap.Logger) *VaultRetriever {
	if log == nil {
		log = zap.NewNop()
	}
	return &VaultRetriever{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: vaultTimeout},
		log:     log,
	}
}

func (r *VaultRetriever) Name() string { return "vault" }

func (r *VaultRetriever) Available() bool { return r.baseURL != "" }

type vaultSearchResponse struct {
	Results []struct {
		Path    string  `json:"path"`
		Title   string  `json:"title"`
		Snippet string  `json:"snippet"`
		Score   float64 `json:"score"`
		Updated string  `json:"updated"`
	} `json:"results"`
}

func (r *VaultRetriever) Retrieve(ctx context.Context, query string, limit int) ([]Result, error) {
	ctx, cancel := context.WithTimeout(ctx, vaultTimeout)
	defer cancel()

	endpoint := fmt.Sprintf("%s/api/search?q=%s&limit=%d", r.baseURL, url.QueryEscape(query), limit)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, nil
	}
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		r.log.Debug("vault unreachable", zap.Error(err))
		return nil, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		r.log.Debug("vault search non-200", zap.Int("status", resp.StatusCode))
		return nil, nil
	}

	var parsed vaultSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		r.log.Debug("vault response undecodable", zap.Error(err))
		return nil, nil
	}

	results := make([]Result, 0, len(parsed.Results))
	for _, item := range parsed.Results {
		meta := map[string]string{"title": item.Title}
		if item.Updated != "" {
			meta["updated"] = item.Updated
		}
		results = append(results, Result{
			Content:    item.Snippet,
			SourceType: SourceVault,
			SourcePath: item.Path,
			Method:     MethodBM25,
			Score:      clampScore(item.Score),
			TokenCount: estimateTokens(item.Snippet),
			Metadata:   meta,
		})
	}
	return results, nil
}
