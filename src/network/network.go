package network

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"quote-ticker/src/helpers"
	"quote-ticker/src/interfaces"
	"quote-ticker/src/logger"
	"quote-ticker/src/models"

	"github.com/cenkalti/backoff/v4"
)

// maxBodyBytes bounds provider payloads; quote responses are a few KB.
const maxBodyBytes = 4 << 20

type AsyncNetworkManager struct {
	Config       *models.MConfig
	ProxyManager interfaces.IProxyManager
	Logger       *logger.Logger
	// RetryBaseDelay is the first backoff interval; it doubles per attempt.
	RetryBaseDelay time.Duration

	mu     sync.RWMutex
	client *http.Client
}

// -----------------------------------------------------------------------------

func NewAsyncNetworkManager(cfg *models.MConfig, log *logger.Logger) *AsyncNetworkManager {
	var proxies []string
	if cfg.Network.Enabled {
		proxies = cfg.Network.Proxies
	}

	nm := &AsyncNetworkManager{
		Config:         cfg,
		ProxyManager:   helpers.NewProxyManager(proxies, cfg.Network.UserAgent),
		Logger:         log,
		RetryBaseDelay: 500 * time.Millisecond,
	}
	nm.client = nm.createClient()
	return nm
}

// -----------------------------------------------------------------------------

func (nm *AsyncNetworkManager) createClient() *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConnsPerHost = 4

	if nm.ProxyManager.HasProxies() {
		proxyStr, err := nm.ProxyManager.GetCurrentProxy()
		if err == nil && proxyStr != "" {
			proxyURL, err := url.Parse(proxyStr)
			if err == nil {
				transport.Proxy = http.ProxyURL(proxyURL)
			}
		}
	}

	return &http.Client{
		Transport: transport,
		Timeout:   time.Duration(nm.Config.Network.RequestTimeout) * time.Second,
	}
}

// -----------------------------------------------------------------------------

func (nm *AsyncNetworkManager) rotateProxy() {
	if !nm.ProxyManager.HasProxies() {
		return
	}

	nm.ProxyManager.RotateProxy()
	client := nm.createClient()

	nm.mu.Lock()
	nm.client = client
	nm.mu.Unlock()
}

// -----------------------------------------------------------------------------

func (nm *AsyncNetworkManager) currentClient() *http.Client {
	nm.mu.RLock()
	defer nm.mu.RUnlock()
	return nm.client
}

// -----------------------------------------------------------------------------

// Get performs a GET request with retries and proxy rotation. Transport errors
// and 5xx are retried with exponential backoff; 429/403 are retried only when a
// proxy is available to rotate to; other statuses fail immediately.
func (nm *AsyncNetworkManager) Get(ctx context.Context, urlStr string, params map[string]string) ([]byte, error) {
	reqUrl, err := url.Parse(urlStr)
	if err != nil {
		return nil, err
	}

	q := reqUrl.Query()
	for k, v := range params {
		q.Set(k, v)
	}
	reqUrl.RawQuery = q.Encode()
	finalUrl := reqUrl.String()

	attempt := 0
	operation := func() ([]byte, error) {
		attempt++
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, finalUrl, nil)
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		req.Header.Set("User-Agent", nm.ProxyManager.GetUserAgent())
		req.Header.Set("Accept", "application/json")

		resp, err := nm.currentClient().Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, backoff.Permanent(ctx.Err())
			}
			nm.Logger.Debug("Request failed (attempt %d): %v", attempt, err)
			return nil, helpers.NewNetworkError("request failed", 0, err)
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusForbidden:
			blocked := helpers.NewNetworkError(fmt.Sprintf("blocked (status %d)", resp.StatusCode), resp.StatusCode, nil)
			if !nm.ProxyManager.HasProxies() {
				return nil, backoff.Permanent(blocked)
			}
			nm.Logger.Info("Request blocked (%d). Rotating proxy.", resp.StatusCode)
			nm.rotateProxy()
			return nil, blocked
		case resp.StatusCode >= 500:
			return nil, helpers.NewNetworkError(fmt.Sprintf("bad status: %d", resp.StatusCode), resp.StatusCode, nil)
		case resp.StatusCode != http.StatusOK:
			return nil, backoff.Permanent(helpers.NewNetworkError(fmt.Sprintf("bad status: %d", resp.StatusCode), resp.StatusCode, nil))
		}

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if err != nil {
			return nil, helpers.NewNetworkError("read body", resp.StatusCode, err)
		}
		return body, nil
	}

	body, err := backoff.RetryWithData(operation, nm.newBackOff(ctx))
	if err != nil {
		var permanent *backoff.PermanentError
		if errors.As(err, &permanent) {
			err = permanent.Err
		}
		return nil, err
	}
	return body, nil
}

// -----------------------------------------------------------------------------

func (nm *AsyncNetworkManager) newBackOff(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = nm.RetryBaseDelay
	exp.Multiplier = 2
	exp.RandomizationFactor = 0.2
	exp.MaxElapsedTime = time.Duration(nm.Config.Network.RequestTimeout) * time.Second * 3

	retries := nm.Config.Network.MaxRetries
	if retries < 0 {
		retries = 0
	}
	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(retries)), ctx)
}
