package universe

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/wonho/pulserank/internal/domain"
	"github.com/wonho/pulserank/pkg/logger"
)

// Seed is the YAML shape of a universe file.
type Seed struct {
	Instruments []domain.Instrument `yaml:"instruments"`
}

// LoadSeed reads an instrument seed file. Unknown fields are rejected
// so a typo in a seed file fails loudly instead of silently dropping an
// attribute.
func LoadSeed(path string) ([]domain.Instrument, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open universe seed: %w", err)
	}
	defer f.Close()

	var seed Seed
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&seed); err != nil {
		return nil, fmt.Errorf("parse universe seed %s: %w", path, err)
	}

	for i := range seed.Instruments {
		if seed.Instruments[i].Symbol == "" {
			return nil, fmt.Errorf("universe seed %s: instrument %d has no symbol", path, i)
		}
		seed.Instruments[i].Symbol = strings.ToUpper(seed.Instruments[i].Symbol)
	}
	return seed.Instruments, nil
}

// DelistFunc is called for each symbol that leaves the universe.
type DelistFunc func(symbol string)

// Universe is the in-memory membership of rankable instruments.
// Membership changes flow through Replace so delistings always reach
// the cache invalidation hook.
type Universe struct {
	mu       sync.RWMutex
	bySymbol map[string]domain.Instrument
	onDelist []DelistFunc
	logger   *logger.Logger
}

// New creates an empty universe.
func New(log *logger.Logger) *Universe {
	return &Universe{
		bySymbol: make(map[string]domain.Instrument),
		logger:   log,
	}
}

// OnDelist registers a hook invoked for symbols removed by Replace.
// Hooks run in registration order.
func (u *Universe) OnDelist(fn DelistFunc) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.onDelist = append(u.onDelist, fn)
}

// Replace swaps the full membership, reporting what changed. Removed
// symbols fire the delist hook after the swap so the hook never sees a
// universe that still contains them.
func (u *Universe) Replace(insts []domain.Instrument) (added, removed []string) {
	next := make(map[string]domain.Instrument, len(insts))
	for _, inst := range insts {
		next[strings.ToUpper(inst.Symbol)] = inst
	}

	u.mu.Lock()
	for sym := range next {
		if _, ok := u.bySymbol[sym]; !ok {
			added = append(added, sym)
		}
	}
	for sym := range u.bySymbol {
		if _, ok := next[sym]; !ok {
			removed = append(removed, sym)
		}
	}
	u.bySymbol = next
	hooks := u.onDelist
	u.mu.Unlock()

	sort.Strings(added)
	sort.Strings(removed)

	for _, sym := range removed {
		for _, hook := range hooks {
			hook(sym)
		}
	}

	if len(added) > 0 || len(removed) > 0 {
		u.logger.WithFields(map[string]interface{}{
			"size":    len(next),
			"added":   len(added),
			"removed": len(removed),
		}).Info("Universe membership updated")
	}
	return added, removed
}

// List returns the members in symbol order.
func (u *Universe) List() []domain.Instrument {
	u.mu.RLock()
	defer u.mu.RUnlock()

	insts := make([]domain.Instrument, 0, len(u.bySymbol))
	for _, inst := range u.bySymbol {
		insts = append(insts, inst)
	}
	sort.Slice(insts, func(i, j int) bool { return insts[i].Symbol < insts[j].Symbol })
	return insts
}

// Get looks up one member.
func (u *Universe) Get(symbol string) (domain.Instrument, bool) {
	u.mu.RLock()
	defer u.mu.RUnlock()
	inst, ok := u.bySymbol[strings.ToUpper(symbol)]
	return inst, ok
}

// Symbols returns the member symbols in order.
func (u *Universe) Symbols() []string {
	u.mu.RLock()
	defer u.mu.RUnlock()

	syms := make([]string, 0, len(u.bySymbol))
	for sym := range u.bySymbol {
		syms = append(syms, sym)
	}
	sort.Strings(syms)
	return syms
}

// Len reports the current membership size.
func (u *Universe) Len() int {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return len(u.bySymbol)
}
