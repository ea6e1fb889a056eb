package config

import "sync/atomic"

// Holder provides thread-safe access to the loaded configuration. There
// is no reload path (dynamic config reload is a Non-goal): the pointer
// is set once at startup and read concurrently by every route execution
// thereafter, the way app.ProxyService.dynamicCfg was used in the
// teacher, minus the swap side.
type Holder struct {
	ptr atomic.Pointer[Config]
}

// NewHolder loads path and returns a Holder wrapping the result.
func NewHolder(path string) (*Holder, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	h := &Holder{}
	h.ptr.Store(cfg)
	return h, nil
}

// Get returns the current configuration.
func (h *Holder) Get() *Config {
	return h.ptr.Load()
}
