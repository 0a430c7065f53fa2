// Package catalog holds the pool of draftable players.
package catalog

import (
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"sync"

	"gopkg.in/yaml.v3"
)

type Player struct {
	ID       string  `yaml:"id" json:"id"`
	Name     string  `yaml:"name" json:"name"`
	Position string  `yaml:"position" json:"position"`
	Team     string  `yaml:"team,omitempty" json:"team,omitempty"`
	ADP      float64 `yaml:"adp,omitempty" json:"adp,omitempty"`
	Inactive bool    `yaml:"inactive,omitempty" json:"inactive,omitempty"`
}

type file struct {
	PositionCaps map[string]int `yaml:"position_caps"`
	Players      []Player       `yaml:"players"`
}

// DefaultCaps is the roster limit per position used when a pool file sets none.
func DefaultCaps() map[string]int {
	return map[string]int{"QB": 2, "RB": 4, "WR": 4, "TE": 2, "K": 1, "DEF": 1}
}

type Catalog struct {
	mu      sync.RWMutex
	players map[string]Player
	caps    map[string]int
}

func New(caps map[string]int, players ...Player) *Catalog {
	if len(caps) == 0 {
		caps = DefaultCaps()
	}
	c := &Catalog{
		players: make(map[string]Player, len(players)),
		caps:    maps.Clone(caps),
	}
	c.Add(players...)
	return c
}

func Load(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open player pool: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

func Parse(r io.Reader) (*Catalog, error) {
	var doc file
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decode player pool: %w", err)
	}
	for i, p := range doc.Players {
		if p.ID == "" || p.Position == "" {
			return nil, fmt.Errorf("player pool entry %d: id and position are required", i)
		}
	}
	return New(doc.PositionCaps, doc.Players...), nil
}

// Add inserts or replaces players. Used to replenish the pool of a stalled draft.
func (c *Catalog) Add(players ...Player) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range players {
		c.players[p.ID] = p
	}
}

func (c *Catalog) Get(id string) (Player, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.players[id]
	return p, ok
}

func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.players)
}

func (c *Catalog) Caps() map[string]int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return maps.Clone(c.caps)
}

func (c *Catalog) IsAvailable(id string) bool {
	p, ok := c.Get(id)
	return ok && !p.Inactive
}

func (c *Catalog) PositionOf(id string) string {
	p, _ := c.Get(id)
	return p.Position
}

func (c *Catalog) RankScore(id string) (float64, bool) {
	p, ok := c.Get(id)
	if !ok || p.ADP <= 0 {
		return 0, false
	}
	return p.ADP, true
}

func (c *Catalog) EntityIDs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Sorted(maps.Keys(c.players))
}

// Players returns every player ordered by id.
func (c *Catalog) Players() []Player {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Player, 0, len(c.players))
	for _, id := range slices.Sorted(maps.Keys(c.players)) {
		out = append(out, c.players[id])
	}
	return out
}
