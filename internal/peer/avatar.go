package peer

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"time"

	_ "golang.org/x/image/webp"

	"companion-call-demo/backend/pkg/cache"
	"companion-call-demo/backend/pkg/logger"
	"companion-call-demo/backend/pkg/resilience"
)

const maxAvatarBytes = 4 << 20

// AvatarLoader fetches and decodes companion avatar images. Results are
// cached per URL and the fetches go through a circuit breaker so a dead
// image host does not slow every call setup.
type AvatarLoader struct {
	client  *http.Client
	cache   *cache.Cache
	breaker *resilience.CircuitBreaker
	log     *logger.Logger
}

// NewAvatarLoader creates a loader. A nil client uses one with timeout.
func NewAvatarLoader(client *http.Client, timeout time.Duration, c *cache.Cache, log *logger.Logger) *AvatarLoader {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	if c == nil {
		c = cache.New(cache.Options{TTL: time.Hour, MaxItems: 64})
	}
	if log == nil {
		log = logger.Discard()
	}

	cfg := resilience.DefaultConfig("avatar-fetch")
	cfg.Timeout = timeout

	return &AvatarLoader{
		client:  client,
		cache:   c,
		breaker: resilience.NewCircuitBreaker(cfg, log),
		log:     log,
	}
}

// Load returns the decoded avatar at url. On failure it returns nil and the
// error; callers render the initial-letter fallback.
func (l *AvatarLoader) Load(ctx context.Context, url string) (image.Image, error) {
	if url == "" {
		return nil, fmt.Errorf("avatar: empty url")
	}
	if v, ok := l.cache.Get(url); ok {
		return v.(image.Image), nil
	}

	var img image.Image
	err := l.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		img, err = l.fetch(ctx, url)
		return err
	})
	if err != nil {
		l.log.Warn("Avatar unavailable, using fallback", "url", url, "error", err)
		return nil, err
	}

	l.cache.Set(url, img)
	return img, nil
}

// Breaker exposes the fetch circuit breaker for health reporting
func (l *AvatarLoader) Breaker() *resilience.CircuitBreaker { return l.breaker }

func (l *AvatarLoader) fetch(ctx context.Context, url string) (image.Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("avatar: %w", err)
	}
	req.Header.Set("Accept", "image/*")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("avatar: fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("avatar: unexpected status %d", resp.StatusCode)
	}

	img, _, err := image.Decode(io.LimitReader(resp.Body, maxAvatarBytes))
	if err != nil {
		return nil, fmt.Errorf("avatar: decode: %w", err)
	}
	return img, nil
}
