package strategy

import (
	"sort"
	"strings"

	"go.uber.org/zap"
)

// Dispatcher resolves a requested mode name to the variant serving it.
// The table is built once at startup and is read-only afterwards.
type Dispatcher struct {
	byMode map[string]Strategy
	log    *zap.Logger
}

func NewDispatcher(log *zap.Logger, variants ...Strategy) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	d := &Dispatcher{
		byMode: make(map[string]Strategy, len(variants)),
		log:    log,
	}
	for _, v := range variants {
		for _, mode := range v.Purpose() {
			mode = normalizeMode(mode)
			if _, dup := d.byMode[mode]; dup {
				d.log.Warn("duplicate mode registration, later variant wins",
					zap.String("mode", mode))
			}
			d.byMode[mode] = v
		}
	}
	return d
}

// normalizeMode folds the free-text mode field: surrounding space is
// ignored, matching is case-insensitive, and an absent mode means chat.
func normalizeMode(mode string) string {
	mode = strings.ToLower(strings.TrimSpace(mode))
	if mode == "" {
		return ModeChat
	}
	return mode
}

// Choose never fails: unknown modes come back as the invalid variant,
// which echoes the normalized name to the caller.
func (d *Dispatcher) Choose(mode string) Strategy {
	m := normalizeMode(mode)
	if s, ok := d.byMode[m]; ok {
		return s
	}
	return NewInvalidStrategy(m)
}

// Modes lists the registered mode names, sorted, for startup logging.
func (d *Dispatcher) Modes() []string {
	modes := make([]string, 0, len(d.byMode))
	for m := range d.byMode {
		modes = append(modes, m)
	}
	sort.Strings(modes)
	return modes
}
