package configuration

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/form3tech-oss/pact-harness/internal/app/providers"
	log "github.com/sirupsen/logrus"
)

// Servers holds the running mock providers by name.
type Servers struct {
	servers sync.Map
}

func NewServers() *Servers {
	return &Servers{}
}

// Start starts the named mock provider on port, 0 picking a free one.
// Only one instance of each provider runs at a time.
func (s *Servers) Start(name string, port int) (*providers.Server, error) {
	if server, loaded := s.Get(name); loaded {
		return nil, fmt.Errorf("%s provider already running at %s", name, server.URL())
	}

	server, err := providers.New(name)
	if err != nil {
		return nil, err
	}

	if _, loaded := s.servers.LoadOrStore(name, server); loaded {
		return nil, fmt.Errorf("%s provider already running", name)
	}

	if err := server.Listen(fmt.Sprintf("127.0.0.1:%d", port)); err != nil {
		s.servers.Delete(name)
		return nil, err
	}
	return server, nil
}

func (s *Servers) Get(name string) (*providers.Server, bool) {
	server, loaded := s.servers.Load(name)
	if !loaded {
		return nil, false
	}
	return server.(*providers.Server), loaded
}

// Running lists the running providers sorted by name.
func (s *Servers) Running() []*providers.Server {
	var running []*providers.Server
	s.servers.Range(func(_, value interface{}) bool {
		running = append(running, value.(*providers.Server))
		return true
	})
	sort.Slice(running, func(i, j int) bool { return running[i].Name < running[j].Name })
	return running
}

func (s *Servers) ShutdownAll(ctx context.Context) {
	s.servers.Range(func(key, _ interface{}) bool {
		server, loaded := s.servers.LoadAndDelete(key)
		if loaded {
			if err := server.(*providers.Server).Close(ctx); err != nil {
				log.Error(err)
			}
		}
		return true
	})
}
