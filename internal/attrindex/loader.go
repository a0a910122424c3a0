package attrindex

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/park285/ballknower/internal/obslog"
)

// Sources names where the reference tables come from. Each entry is a local
// path or an http(s) URL.
type Sources struct {
	Players        string
	Teams          string
	CollegeAliases string
}

// Loader fetches and decodes the reference tables.
type Loader struct {
	http           *fasthttp.Client
	defaultTimeout time.Duration
	retryMax       int
}

type Option func(*Loader)

func WithTimeout(d time.Duration) Option {
	return func(l *Loader) { l.defaultTimeout = d }
}

func WithRetry(max int) Option {
	return func(l *Loader) { l.retryMax = max }
}

func NewLoader(opts ...Option) *Loader {
	l := &Loader{
		http: &fasthttp.Client{
			ReadTimeout:         30 * time.Second,
			WriteTimeout:        10 * time.Second,
			MaxResponseBodySize: 256 << 20,
		},
		defaultTimeout: 30 * time.Second,
		retryMax:       3,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load reads every source and builds the index.
func (l *Loader) Load(ctx context.Context, src Sources) (*Index, error) {
	if strings.TrimSpace(src.Players) == "" {
		return nil, errors.New("players source is required")
	}
	if strings.TrimSpace(src.Teams) == "" {
		return nil, errors.New("teams source is required")
	}
	raw, err := l.read(ctx, src.Players)
	if err != nil {
		return nil, fmt.Errorf("players: %w", err)
	}
	athletes, err := DecodeAthletes(raw)
	if err != nil {
		return nil, fmt.Errorf("players: %w", err)
	}
	raw, err = l.read(ctx, src.Teams)
	if err != nil {
		return nil, fmt.Errorf("teams: %w", err)
	}
	teams, err := DecodeTeams(raw)
	if err != nil {
		return nil, fmt.Errorf("teams: %w", err)
	}
	if strings.TrimSpace(src.CollegeAliases) != "" {
		raw, err = l.read(ctx, src.CollegeAliases)
		if err != nil {
			return nil, fmt.Errorf("college aliases: %w", err)
		}
		aliases, err := DecodeCollegeAliases(raw)
		if err != nil {
			return nil, fmt.Errorf("college aliases: %w", err)
		}
		ApplyCollegeAliases(athletes, aliases)
	}
	idx := New(athletes, teams)
	na, nt := idx.Size()
	obslog.L().Info("attrindex_loaded",
		zap.Int("athletes", na),
		zap.Int("teams", nt),
		zap.Int("colleges", len(idx.Colleges())),
	)
	return idx, nil
}

func (l *Loader) read(ctx context.Context, src string) ([]byte, error) {
	src = strings.TrimSpace(src)
	if strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") {
		return l.fetch(ctx, src)
	}
	return os.ReadFile(src)
}

func (l *Loader) fetch(ctx context.Context, url string) ([]byte, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()
	req.Header.SetMethod(fasthttp.MethodGet)
	req.SetRequestURI(url)
	req.Header.Set("Accept", "application/json, application/yaml")

	attempts := l.retryMax
	if attempts <= 0 {
		attempts = 1
	}
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		err := l.http.DoDeadline(req, resp, l.computeDeadline(ctx))
		if err == nil {
			status := resp.StatusCode()
			if status >= 200 && status < 300 {
				return append([]byte(nil), resp.Body()...), nil
			}
			err = fmt.Errorf("fetch %s: status=%d", url, status)
			if !shouldRetryStatus(status) {
				return nil, err
			}
		}
		lastErr = err
		if attempt == attempts {
			break
		}
		obslog.L().Warn("attrindex_fetch_retry", zap.String("url", url), zap.Int("attempt", attempt), zap.Error(err))
		if sleepErr := sleepWithContext(ctx, backoffDuration(attempt)); sleepErr != nil {
			return nil, lastErr
		}
	}
	return nil, fmt.Errorf("request failed: %w", lastErr)
}

func (l *Loader) computeDeadline(ctx context.Context) time.Time {
	clientDL := time.Now().Add(l.defaultTimeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(clientDL) {
		return dl
	}
	return clientDL
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func backoffDuration(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 6 {
		attempt = 6
	}
	return time.Duration(1<<uint(attempt-1)) * 200 * time.Millisecond
}

func shouldRetryStatus(code int) bool {
	switch code {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

// DecodeAthletes accepts either an object keyed by id or a plain array.
// A keyed entry without its own id takes the key.
func DecodeAthletes(b []byte) ([]*Athlete, error) {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '[' {
		var list []*Athlete
		if err := json.Unmarshal(b, &list); err != nil {
			return nil, err
		}
		return list, nil
	}
	var keyed map[string]*Athlete
	if err := json.Unmarshal(b, &keyed); err != nil {
		return nil, err
	}
	out := make([]*Athlete, 0, len(keyed))
	for id, a := range keyed {
		if a == nil {
			continue
		}
		if strings.TrimSpace(a.ID) == "" {
			a.ID = id
		}
		out = append(out, a)
	}
	return out, nil
}

// DecodeTeams accepts either an object keyed by id or a plain array.
func DecodeTeams(b []byte) ([]*Team, error) {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '[' {
		var list []*Team
		if err := json.Unmarshal(b, &list); err != nil {
			return nil, err
		}
		return list, nil
	}
	var keyed map[string]*Team
	if err := json.Unmarshal(b, &keyed); err != nil {
		return nil, err
	}
	out := make([]*Team, 0, len(keyed))
	for id, t := range keyed {
		if t == nil {
			continue
		}
		if strings.TrimSpace(t.ID) == "" {
			t.ID = id
		}
		out = append(out, t)
	}
	return out, nil
}

// DecodeCollegeAliases reads the grouped alias format
//
//	stanford: [Stanford, Stanford University, Stanford U.]
//
// where the first entry of each group is canonical. The result maps every
// lowercased spelling to its canonical name. JSON input parses too.
func DecodeCollegeAliases(b []byte) (map[string]string, error) {
	var grouped map[string][]string
	if err := yaml.Unmarshal(b, &grouped); err != nil {
		return nil, err
	}
	out := make(map[string]string)
	for key, names := range grouped {
		if len(names) == 0 {
			continue
		}
		canon := strings.TrimSpace(names[0])
		if canon == "" {
			continue
		}
		out[normalize(key)] = canon
		for _, n := range names {
			if n = normalize(n); n != "" {
				out[n] = canon
			}
		}
	}
	return out, nil
}

// ApplyCollegeAliases rewrites each athlete's colleges to canonical names,
// dropping duplicates produced by the rewrite. It runs before New, while the
// athletes are still private to the loader.
func ApplyCollegeAliases(athletes []*Athlete, aliases map[string]string) {
	if len(aliases) == 0 {
		return
	}
	for _, a := range athletes {
		if a == nil || len(a.Colleges) == 0 {
			continue
		}
		seen := make(map[string]struct{}, len(a.Colleges))
		out := a.Colleges[:0]
		for _, c := range a.Colleges {
			if canon, ok := aliases[normalize(c)]; ok {
				c = canon
			}
			key := normalize(c)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, c)
		}
		a.Colleges = out
	}
}
