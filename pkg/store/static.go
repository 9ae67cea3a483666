package store

import (
	"context"
	"sync"

	"github.com/lintang-b-s/navigatorx-pg/pkg/datastructure"
)

// StaticSource serves a network held in memory. Set replaces it for the next load.
type StaticSource struct {
	mu      sync.RWMutex
	network *datastructure.Network
}

func NewStaticSource(network *datastructure.Network) *StaticSource {
	return &StaticSource{network: network}
}

func (s *StaticSource) Name() string {
	return "static"
}

func (s *StaticSource) Load(ctx context.Context) (*datastructure.Network, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.network, nil
}

func (s *StaticSource) Set(network *datastructure.Network) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.network = network
}
