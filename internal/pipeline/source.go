package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"time"

	"github.com/rajasatyajit/TransitDisruptions/config"
	"github.com/rajasatyajit/TransitDisruptions/internal/models"
)

const (
	defaultInterval = 15 * time.Minute
	maxFeedBytes    = 32 << 20

	// RecentDataAge is how old the newest cached message may be before the
	// cache counts as stale.
	RecentDataAge = 2 * time.Hour
)

// cacheFile is the on-disk message cache layout.
type cacheFile struct {
	Messages []models.Message `json:"tweets"`
}

// DecodeMessages reads either a message cache object or a bare JSON array of
// messages. The result has unique ids in ascending order.
func DecodeMessages(r io.Reader) ([]models.Message, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read messages: %w", err)
	}

	var msgs []models.Message
	trimmed := bytes.TrimSpace(data)
	switch {
	case len(trimmed) == 0:
		return []models.Message{}, nil
	case trimmed[0] == '[':
		err = json.Unmarshal(trimmed, &msgs)
	default:
		var c cacheFile
		err = json.Unmarshal(trimmed, &c)
		msgs = c.Messages
	}
	if err != nil {
		return nil, fmt.Errorf("decode messages: %w", err)
	}
	return normalize(msgs), nil
}

// EncodeCache writes msgs in the message cache layout.
func EncodeCache(w io.Writer, msgs []models.Message) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(cacheFile{Messages: normalize(msgs)})
}

// normalize drops repeated ids, keeping the first, and sorts by id.
func normalize(msgs []models.Message) []models.Message {
	seen := make(map[uint64]bool, len(msgs))
	out := make([]models.Message, 0, len(msgs))
	for _, m := range msgs {
		if seen[m.ID] {
			continue
		}
		seen[m.ID] = true
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// FileSource reads a message cache from disk.
type FileSource struct {
	name     string
	path     string
	interval time.Duration
}

func NewFileSource(name, path string, interval time.Duration) *FileSource {
	if interval <= 0 {
		interval = defaultInterval
	}
	return &FileSource{name: name, path: path, interval: interval}
}

func (f *FileSource) Name() string            { return f.name }
func (f *FileSource) Interval() time.Duration { return f.interval }
func (f *FileSource) Path() string            { return f.path }

// Fetch reads the cache. A missing file yields no messages.
func (f *FileSource) Fetch(ctx context.Context) ([]models.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	file, err := os.Open(f.path)
	if os.IsNotExist(err) {
		return []models.Message{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}
	defer file.Close()
	return DecodeMessages(file)
}

// HasRecentData reports whether the newest cached message was posted less
// than RecentDataAge before now.
func (f *FileSource) HasRecentData(ctx context.Context, now time.Time) (bool, error) {
	msgs, err := f.Fetch(ctx)
	if err != nil {
		return false, err
	}
	var newest time.Time
	for _, m := range msgs {
		if m.PostedAt.After(newest) {
			newest = m.PostedAt
		}
	}
	if newest.IsZero() {
		return false, nil
	}
	return now.Sub(newest) < RecentDataAge, nil
}

// HTTPSource fetches a JSON message list from a URL. Each fetch is a single
// request.
type HTTPSource struct {
	name     string
	url      string
	interval time.Duration
	client   *http.Client
}

func NewHTTPSource(name, url string, interval time.Duration, client *http.Client) *HTTPSource {
	if interval <= 0 {
		interval = defaultInterval
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPSource{name: name, url: url, interval: interval, client: client}
}

func (h *HTTPSource) Name() string            { return h.name }
func (h *HTTPSource) Interval() time.Duration { return h.interval }

func (h *HTTPSource) Fetch(ctx context.Context) ([]models.Message, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "TransitDisruptions/1.0")
	req.Header.Set("Accept", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch messages: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}

	return DecodeMessages(io.LimitReader(resp.Body, maxFeedBytes))
}

// BuildSources turns configured sources into Source values.
func BuildSources(cfgs []config.SourceConfig, client *http.Client) ([]Source, error) {
	sources := make([]Source, 0, len(cfgs))
	for _, c := range cfgs {
		switch c.Type {
		case "file":
			sources = append(sources, NewFileSource(c.Name, c.Path, c.Interval))
		case "http":
			sources = append(sources, NewHTTPSource(c.Name, c.URL, c.Interval, client))
		default:
			return nil, fmt.Errorf("source %q: unknown type %q", c.Name, c.Type)
		}
	}
	return sources, nil
}
