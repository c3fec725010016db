package fetch

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/adiwardana/idx-shareholder-etl/internal/etl"
)

// Client implements etl.Fetcher over the configured transport.
type Client struct {
	cfg       Config
	collector *colly.Collector
	limiter   *rate.Limiter
	logger    *zap.Logger
}

// New builds a Client. The politeness limiter caps request rate against
// the exchange regardless of how many backfill workers are in flight.
func New(cfg Config, logger *zap.Logger) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	qps := cfg.RateLimitQPS
	if qps <= 0 {
		qps = 1
	}
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 1
	}

	c := colly.NewCollector(colly.Async(false))
	c.AllowURLRevisit = true
	c.IgnoreRobotsTxt = true
	c.SetRequestTimeout(cfg.Timeout)
	if cfg.UserAgent != "" {
		c.UserAgent = cfg.UserAgent
	}
	if cfg.ProxyURL != "" {
		if err := c.SetProxy(cfg.ProxyURL); err != nil {
			return nil, fmt.Errorf("set proxy: %w", err)
		}
	}

	return &Client{
		cfg:       cfg,
		collector: c,
		limiter:   rate.NewLimiter(rate.Limit(qps), burst),
		logger:    logger,
	}, nil
}

// Fetch locates the disclosure announcement for the date and downloads its
// tabular appendix. It returns etl.ErrNotPublished when the exchange has
// no matching announcement, e.g. on a holiday.
func (c *Client) Fetch(ctx context.Context, date etl.BusinessDate) (etl.Document, error) {
	body, err := c.get(ctx, "list announcements", c.cfg.BaseURL, c.cfg.listQuery(date))
	if err != nil {
		return etl.Document{}, err
	}

	list, err := decodeAnnouncements(body)
	if err != nil {
		// An unreadable reply is indistinguishable from a relay hiccup;
		// classify conservatively as retryable and leave a trail.
		c.logger.Warn("undecodable announcement reply", zap.String("date", date.String()), zap.Error(err))
		return etl.Document{}, &etl.TransientError{Op: "decode announcements", Err: err}
	}
	if len(list.Replies) == 0 {
		return etl.Document{}, etl.ErrNotPublished
	}

	ann, att, err := selectAttachment(list, date, c.logger)
	if err != nil {
		return etl.Document{}, err
	}

	c.logger.Info("downloading disclosure attachment",
		zap.String("date", date.String()),
		zap.String("file", att.OriginalFilename),
	)
	pdfBytes, err := c.get(ctx, "download attachment", att.FullSavePath, nil)
	if err != nil {
		return etl.Document{}, err
	}
	if len(pdfBytes) == 0 {
		return etl.Document{}, &etl.TransientError{
			Op:  "download attachment",
			Err: errors.New("empty response body"),
		}
	}

	doc := etl.Document{
		Bytes:    pdfBytes,
		Filename: att.OriginalFilename,
		Title:    ann.Title,
	}
	if announced, ok := announcedDate(ann.Date); ok {
		doc.AnnouncedAt = announced.Time()
	}
	return doc, nil
}

// get performs one GET through the selected transport and maps transport
// and HTTP failures onto the pipeline error taxonomy.
func (c *Client) get(ctx context.Context, op, target string, query url.Values) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	requestURL, err := c.buildURL(target, query)
	if err != nil {
		return nil, &etl.PermanentError{Op: op, Err: err}
	}

	var (
		body       []byte
		statusCode int
		fetchErr   error
	)
	collector := c.collector.Clone()
	collector.OnRequest(func(r *colly.Request) {
		if ctx.Err() != nil {
			r.Abort()
			return
		}
		if c.cfg.Transport == TransportDirect {
			r.Headers.Set("Referer", c.cfg.Referer)
			r.Headers.Set("Origin", c.cfg.Origin)
			r.Headers.Set("Accept", "application/json, text/javascript, */*; q=0.01")
			r.Headers.Set("X-Requested-With", "XMLHttpRequest")
		}
	})
	collector.OnResponse(func(r *colly.Response) {
		statusCode = r.StatusCode
		body = r.Body
	})
	collector.OnError(func(r *colly.Response, err error) {
		if r != nil {
			statusCode = r.StatusCode
		}
		fetchErr = err
	})

	if err := collector.Visit(requestURL); err != nil && fetchErr == nil {
		fetchErr = err
	}
	collector.Wait()

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if fetchErr != nil {
		return nil, classify(op, statusCode, fetchErr)
	}
	if statusCode != http.StatusOK {
		return nil, classify(op, statusCode, fmt.Errorf("unexpected status %d", statusCode))
	}
	return body, nil
}

func (c *Client) buildURL(target string, query url.Values) (string, error) {
	u, err := url.Parse(target)
	if err != nil {
		return "", fmt.Errorf("parse target url: %w", err)
	}
	if query != nil {
		u.RawQuery = query.Encode()
	}
	if c.cfg.Transport != TransportRelay {
		return u.String(), nil
	}

	relay, err := url.Parse(c.cfg.RelayBaseURL)
	if err != nil {
		return "", fmt.Errorf("parse relay url: %w", err)
	}
	rq := url.Values{}
	rq.Set("api_key", c.cfg.RelayAPIKey)
	rq.Set("url", u.String())
	relay.RawQuery = rq.Encode()
	return relay.String(), nil
}

// classify maps an HTTP failure onto the error taxonomy: rate limiting and
// server-side errors are retryable, other client errors are not.
func classify(op string, status int, err error) error {
	var netErr net.Error
	switch {
	case status == http.StatusTooManyRequests, status >= http.StatusInternalServerError:
		return &etl.TransientError{Op: op, Err: err}
	case status >= http.StatusBadRequest:
		return &etl.PermanentError{Op: op, Err: err}
	case errors.As(err, &netErr) && netErr.Timeout():
		return &etl.TransientError{Op: op, Err: err}
	default:
		return &etl.TransientError{Op: op, Err: err}
	}
}
