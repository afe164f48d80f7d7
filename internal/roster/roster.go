// Package roster polls the identity service for the characters the logged-in
// player may open sessions for.
package roster

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/oops"
)

type Character struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Config struct {
	URL      string
	Interval time.Duration
	Client   *http.Client
	Logger   zerolog.Logger
	// Static characters are always listed, before the first poll succeeds
	// and when no URL is configured.
	Static []string
}

type Poller struct {
	cfg Config

	mu         sync.RWMutex
	characters []Character
	lastErr    string
	lastPoll   time.Time
}

func NewPoller(cfg Config) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: 10 * time.Second}
	}
	p := &Poller{cfg: cfg}
	p.characters = merge(nil, cfg.Static)
	return p
}

// Run polls until ctx is done. Without a URL it returns immediately.
func (p *Poller) Run(ctx context.Context) {
	if p.cfg.URL == "" {
		return
	}
	t := time.NewTicker(p.cfg.Interval)
	defer t.Stop()
	for {
		if err := p.Poll(ctx); err != nil && ctx.Err() == nil {
			p.cfg.Logger.Warn().Err(err).Str("url", p.cfg.URL).Msg("roster poll failed")
		}
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

// Poll fetches the roster once. On failure the previous list is kept.
func (p *Poller) Poll(ctx context.Context) error {
	chars, err := p.fetch(ctx)
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastPoll = time.Now()
	if err != nil {
		p.lastErr = err.Error()
		return err
	}
	p.lastErr = ""
	p.characters = merge(chars, p.cfg.Static)
	return nil
}

func (p *Poller) fetch(ctx context.Context) ([]Character, error) {
	errb := oops.In("roster").With("url", p.cfg.URL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.URL, nil)
	if err != nil {
		return nil, errb.Wrapf(err, "build request")
	}
	req.Header.Set("accept", "application/json")
	res, err := p.cfg.Client.Do(req)
	if err != nil {
		return nil, errb.Wrapf(err, "get roster")
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return nil, errb.Errorf("roster status %d", res.StatusCode)
	}
	var chars []Character
	if err := json.NewDecoder(io.LimitReader(res.Body, 1<<20)).Decode(&chars); err != nil {
		return nil, errb.Wrapf(err, "decode roster")
	}
	return chars, nil
}

// Characters returns the current roster sorted by id.
func (p *Poller) Characters() []Character {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]Character(nil), p.characters...)
}

// LastPoll reports when the roster was last fetched and the error of that
// fetch, if any. The time is zero before the first poll.
func (p *Poller) LastPoll() (time.Time, string) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastPoll, p.lastErr
}

func merge(polled []Character, static []string) []Character {
	byID := map[string]Character{}
	for _, id := range static {
		id = strings.TrimSpace(id)
		if id != "" {
			byID[id] = Character{ID: id, Name: id}
		}
	}
	for _, c := range polled {
		c.ID = strings.TrimSpace(c.ID)
		if c.ID == "" {
			continue
		}
		if c.Name == "" {
			c.Name = c.ID
		}
		byID[c.ID] = c
	}
	out := make([]Character, 0, len(byID))
	for _, c := range byID {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
