package services

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/nexushq/nexus/models"
	"github.com/nexushq/nexus/pkg"
	"github.com/nexushq/nexus/pkg/cache"
)

// ogFetchLimit: önizleme için sayfanın yalnızca başı gerekir — meta
// tag'ler head içindedir. Sınır hem bellek hem kötü niyetli dev yanıtlara
// karşı korumadır.
const ogFetchLimit = 512 * 1024

const ogCacheTTL = 15 * time.Minute

// OGService, link önizlemesi için OpenGraph meta verisi çeker.
//
// Yalnızca http/https şemaları kabul edilir; yanıt boyutu sınırlıdır ve
// sonuçlar URL başına cache'lenir — aynı linki içeren her mesaj için
// siteye tekrar gidilmez.
type OGService interface {
	Fetch(ctx context.Context, rawURL string) (*models.Embed, error)
}

type ogService struct {
	client *http.Client
	cache  *cache.TTLCache[string, models.Embed]
}

// NewOGService, constructor.
func NewOGService() OGService {
	return &ogService{
		client: &http.Client{Timeout: 5 * time.Second},
		cache:  cache.New[string, models.Embed](ogCacheTTL, time.Minute),
	}
}

func (s *ogService) Fetch(ctx context.Context, rawURL string) (*models.Embed, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return nil, fmt.Errorf("%w: invalid url", pkg.ErrBadRequest)
	}

	if cached, ok := s.cache.Get(rawURL); ok {
		return &cached, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid url", pkg.ErrBadRequest)
	}
	req.Header.Set("User-Agent", "Nexus-LinkPreview/1.0")
	req.Header.Set("Accept", "text/html")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch failed", pkg.ErrBadRequest)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: fetch failed with status %d", pkg.ErrBadRequest, resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.Contains(ct, "text/html") {
		return nil, fmt.Errorf("%w: not an html page", pkg.ErrBadRequest)
	}

	embed, err := parseOG(io.LimitReader(resp.Body, ogFetchLimit), rawURL)
	if err != nil {
		return nil, err
	}

	s.cache.Set(rawURL, *embed)
	return embed, nil
}

// parseOG, HTML'den og:* meta tag'lerini toplar. og:title yoksa <title>
// fallback'i kullanılır.
func parseOG(r io.Reader, pageURL string) (*models.Embed, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("%w: unparseable page", pkg.ErrBadRequest)
	}

	embed := &models.Embed{URL: pageURL}
	var title string

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "title":
				if n.FirstChild != nil && title == "" {
					title = strings.TrimSpace(n.FirstChild.Data)
				}
			case "meta":
				var property, content string
				for _, attr := range n.Attr {
					switch attr.Key {
					case "property", "name":
						property = attr.Val
					case "content":
						content = attr.Val
					}
				}
				switch property {
				case "og:title":
					embed.Title = content
				case "og:description", "description":
					if embed.Description == "" {
						embed.Description = content
					}
				case "og:image":
					embed.ImageURL = content
				case "theme-color":
					embed.Color = content
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	if embed.Title == "" {
		embed.Title = title
	}
	if embed.Title == "" && embed.Description == "" && embed.ImageURL == "" {
		return nil, fmt.Errorf("%w: no preview metadata", pkg.ErrNotFound)
	}
	return embed, nil
}
