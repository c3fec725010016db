// Package fetch obtains the raw disclosure document from the IDX
// announcement API, abstracting over a direct connection or a third-party
// scraping relay. The orchestrator never sees which transport ran.
package fetch

import (
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/adiwardana/idx-shareholder-etl/internal/etl"
)

// Transport selection values.
const (
	TransportDirect = "direct"
	TransportRelay  = "relay"
)

// attachmentMarker tags the tabular appendix among an announcement's
// attachments; the other files are narrative notices.
const attachmentMarker = "_lamp"

// Config controls the fetcher.
type Config struct {
	Transport    string
	BaseURL      string
	Keyword      string
	UserAgent    string
	Referer      string
	Origin       string
	ProxyURL     string
	RelayBaseURL string
	RelayAPIKey  string
	Timeout      time.Duration
	RateLimitQPS float64
	RateBurst    int
}

// LoadConfig constructs a Config by reading from Viper.
func LoadConfig(v *viper.Viper) (Config, error) {
	cfg := Config{
		Transport:    v.GetString("fetch.transport"),
		BaseURL:      v.GetString("fetch.base_url"),
		Keyword:      v.GetString("fetch.keyword"),
		UserAgent:    v.GetString("fetch.user_agent"),
		Referer:      v.GetString("fetch.referer"),
		Origin:       v.GetString("fetch.origin"),
		ProxyURL:     v.GetString("fetch.proxy_url"),
		RelayBaseURL: v.GetString("fetch.relay.base_url"),
		RelayAPIKey:  v.GetString("fetch.relay.api_key"),
		Timeout:      v.GetDuration("fetch.timeout"),
		RateLimitQPS: v.GetFloat64("fetch.rate_limit_qps"),
		RateBurst:    v.GetInt("fetch.rate_burst"),
	}
	return cfg, cfg.Validate()
}

// Validate checks the transport selection is usable.
func (c Config) Validate() error {
	switch c.Transport {
	case TransportDirect:
	case TransportRelay:
		if c.RelayBaseURL == "" || c.RelayAPIKey == "" {
			return fmt.Errorf("relay transport requires fetch.relay.base_url and fetch.relay.api_key")
		}
	default:
		return fmt.Errorf("unknown fetch transport: %q", c.Transport)
	}
	if c.BaseURL == "" {
		return fmt.Errorf("fetch.base_url must be set")
	}
	return nil
}

// Announcement API wire format.
type announcementList struct {
	Replies []announcementItem `json:"Replies"`
}

type announcementItem struct {
	Pengumuman  announcement `json:"pengumuman"`
	Attachments []attachment `json:"attachments"`
}

type announcement struct {
	Title string `json:"JudulPengumuman"`
	Date  string `json:"TglPengumuman"`
}

type attachment struct {
	OriginalFilename string `json:"OriginalFilename"`
	FullSavePath     string `json:"FullSavePath"`
}

// preWrapped extracts JSON a relay occasionally hands back wrapped in an
// HTML <pre> block.
var preWrapped = regexp.MustCompile(`(?s)<pre>(.*?)</pre>`)

func decodeAnnouncements(body []byte) (announcementList, error) {
	var list announcementList
	if err := json.Unmarshal(body, &list); err == nil {
		return list, nil
	}
	m := preWrapped.FindSubmatch(body)
	if m == nil {
		return list, fmt.Errorf("response is neither JSON nor <pre>-wrapped JSON")
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(string(m[1]))), &list); err != nil {
		return list, fmt.Errorf("decode <pre>-wrapped body: %w", err)
	}
	return list, nil
}

// listQuery builds the announcement search parameters for an exact date.
// The window extends a week past the target because announcements are
// indexed by publication, which can lag the session date.
func (c Config) listQuery(date etl.BusinessDate) url.Values {
	q := url.Values{}
	q.Set("kodeEmiten", "")
	q.Set("emitenType", "*")
	q.Set("indexFrom", "0")
	q.Set("pageSize", "10")
	q.Set("dateFrom", date.Compact())
	q.Set("dateTo", date.AddDays(7).Compact())
	q.Set("lang", "id")
	q.Set("keyword", c.Keyword)
	return q
}

// selectAttachment walks announcements newest-first and returns the
// tabular appendix whose announcement date matches the target.
func selectAttachment(list announcementList, date etl.BusinessDate, logger *zap.Logger) (announcement, attachment, error) {
	items := make([]announcementItem, len(list.Replies))
	copy(items, list.Replies)
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Pengumuman.Date > items[j].Pengumuman.Date
	})

	for _, item := range items {
		announced, ok := announcedDate(item.Pengumuman.Date)
		if !ok {
			logger.Warn("announcement with unparseable date",
				zap.String("date", item.Pengumuman.Date))
			continue
		}
		if announced != date {
			continue
		}
		for _, att := range item.Attachments {
			if strings.Contains(strings.ToLower(att.OriginalFilename), attachmentMarker) {
				return item.Pengumuman, att, nil
			}
		}
	}
	return announcement{}, attachment{}, etl.ErrNotPublished
}

func announcedDate(raw string) (etl.BusinessDate, bool) {
	if len(raw) < len("2006-01-02") {
		return etl.BusinessDate{}, false
	}
	t, err := time.Parse("2006-01-02", raw[:len("2006-01-02")])
	if err != nil {
		return etl.BusinessDate{}, false
	}
	return etl.DateOf(t), true
}
