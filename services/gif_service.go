package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/nexushq/nexus/pkg"
	"github.com/nexushq/nexus/pkg/cache"
)

const giphyBaseURL = "https://api.giphy.com/v1/gifs"

// GifResult, provider'dan bağımsız sadeleştirilmiş GIF görünümü —
// client provider'ın ham API formatını hiç görmez.
type GifResult struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	URL     string `json:"url"`     // tam boyut
	Preview string `json:"preview"` // küçük önizleme
}

// GifService, GIF arama proxy'sidir.
//
// API anahtarı server'da kalır — client'a asla sızmaz. Sonuçlar sorgu
// başına kısa süre cache'lenir; trending özellikle tekrar eden bir sorgudur.
type GifService interface {
	Search(ctx context.Context, query string, limit int) ([]GifResult, error)
	Trending(ctx context.Context, limit int) ([]GifResult, error)
}

type gifService struct {
	apiKey string
	client *http.Client
	cache  *cache.TTLCache[string, []GifResult]
}

// NewGifService, constructor. apiKey boşsa çağrılar ErrBadRequest döner —
// özellik yapılandırılmamıştır.
func NewGifService(apiKey string) GifService {
	return &gifService{
		apiKey: apiKey,
		client: &http.Client{Timeout: 5 * time.Second},
		cache:  cache.New[string, []GifResult](5*time.Minute, time.Minute),
	}
}

func (s *gifService) Search(ctx context.Context, query string, limit int) ([]GifResult, error) {
	if query == "" {
		return nil, fmt.Errorf("%w: query is required", pkg.ErrBadRequest)
	}
	return s.fetch(ctx, "search", url.Values{"q": {query}}, limit)
}

func (s *gifService) Trending(ctx context.Context, limit int) ([]GifResult, error) {
	return s.fetch(ctx, "trending", url.Values{}, limit)
}

// giphyResponse, Giphy API yanıtından ihtiyaç duyulan alt küme.
type giphyResponse struct {
	Data []struct {
		ID     string `json:"id"`
		Title  string `json:"title"`
		Images struct {
			Original struct {
				URL string `json:"url"`
			} `json:"original"`
			FixedWidthSmall struct {
				URL string `json:"url"`
			} `json:"fixed_width_small"`
		} `json:"images"`
	} `json:"data"`
}

func (s *gifService) fetch(ctx context.Context, endpoint string, params url.Values, limit int) ([]GifResult, error) {
	if s.apiKey == "" {
		return nil, fmt.Errorf("%w: gif search is not configured", pkg.ErrBadRequest)
	}
	if limit <= 0 || limit > 50 {
		limit = 25
	}

	params.Set("api_key", s.apiKey)
	params.Set("limit", strconv.Itoa(limit))
	params.Set("rating", "pg-13")
	requestURL := giphyBaseURL + "/" + endpoint + "?" + params.Encode()

	cacheKey := endpoint + "|" + params.Get("q") + "|" + strconv.Itoa(limit)
	if cached, ok := s.cache.Get(cacheKey); ok {
		return cached, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gif provider request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gif provider returned status %d", resp.StatusCode)
	}

	var parsed giphyResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode gif provider response: %w", err)
	}

	results := make([]GifResult, 0, len(parsed.Data))
	for _, item := range parsed.Data {
		results = append(results, GifResult{
			ID:      item.ID,
			Title:   item.Title,
			URL:     item.Images.Original.URL,
			Preview: item.Images.FixedWidthSmall.URL,
		})
	}

	s.cache.Set(cacheKey, results)
	return results, nil
}
