// Package strategy turns buffered market data into trading signals.
package strategy

import (
	"sort"
	"sync"

	"github.com/yanun0323/errors"

	"main/internal/marketdata"
	"main/internal/model"
)

// SignalProvider evaluates the current market data for one symbol.
type SignalProvider interface {
	Name() string
	Evaluate(buffer *marketdata.Buffer, symbol, interval string) model.Signal
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]SignalProvider)
)

// Register adds a provider to the global registry. Later registrations with
// the same name replace earlier ones.
func Register(provider SignalProvider) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[provider.Name()] = provider
}

// Lookup returns the registered provider with the given name.
func Lookup(name string) (SignalProvider, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	provider, ok := registry[name]
	if !ok {
		return nil, errors.Errorf("strategy: unknown provider %q", name)
	}
	return provider, nil
}

// Names lists the registered providers, sorted.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
