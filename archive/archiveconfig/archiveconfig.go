// Package archiveconfig opens archive stores from JSON configuration.
//
//	{
//	  "write_policy": "all",
//	  "backends": [
//	    {"name": "localfs", "config": {"dir": "/var/lib/wxmsg/archive"}},
//	    {"name": "grpc", "id": "remote", "config": {"target": "archive:7443", "timeout": "2s"}}
//	  ]
//	}
//
// WritePolicy "first" (default) writes to the first backend and reads fall
// back in order. "all" writes to every backend and requires equal IDs.
package archiveconfig

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"xdao.co/wxmsg/archive"
	"xdao.co/wxmsg/archive/grpcarchive"
	"xdao.co/wxmsg/archive/localfs"
	"xdao.co/wxmsg/archive/memory"
)

const (
	WriteFirst = "first"
	WriteAll   = "all"
)

type Config struct {
	WritePolicy string          `json:"write_policy,omitempty"`
	Backends    []BackendConfig `json:"backends"`
}

type BackendConfig struct {
	// Name selects the backend implementation: "memory", "localfs" or "grpc".
	Name string `json:"name"`
	// ID optionally distinguishes two backends of the same kind. Defaults to Name.
	ID     string            `json:"id,omitempty"`
	Config map[string]string `json:"config,omitempty"`
}

func (b BackendConfig) id() string {
	if b.ID != "" {
		return b.ID
	}
	return b.Name
}

// Opener builds one backend from its config map. The returned close func may
// be nil.
type Opener func(cfg map[string]string) (archive.Store, func() error, error)

var openers = map[string]Opener{
	"memory":  openMemory,
	"localfs": openLocalFS,
	"grpc":    openGRPC,
}

// Backends returns the supported backend names, sorted.
func Backends() []string {
	out := make([]string, 0, len(openers))
	for name := range openers {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func LoadFile(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, errors.New("archiveconfig: empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := json.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("archiveconfig: %w", err)
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if len(c.Backends) == 0 {
		return errors.New("archiveconfig: at least one backend is required")
	}
	seen := make(map[string]struct{}, len(c.Backends))
	for _, b := range c.Backends {
		if b.Name == "" {
			return errors.New("archiveconfig: backend name is required")
		}
		if _, ok := openers[b.Name]; !ok {
			return fmt.Errorf("archiveconfig: unknown backend %q (have %s)", b.Name, strings.Join(Backends(), ", "))
		}
		if _, ok := seen[b.id()]; ok {
			return fmt.Errorf("archiveconfig: duplicate backend id %q", b.id())
		}
		seen[b.id()] = struct{}{}
	}
	switch c.WritePolicy {
	case "", WriteFirst, WriteAll:
		return nil
	default:
		return fmt.Errorf("archiveconfig: invalid write_policy %q", c.WritePolicy)
	}
}

// Open opens every backend and combines them per WritePolicy. The returned
// func closes all backends in reverse order.
func (c Config) Open() (archive.Store, func() error, error) {
	if err := c.Validate(); err != nil {
		return nil, nil, err
	}

	named := make([]archive.NamedStore, 0, len(c.Backends))
	closers := make([]func() error, 0, len(c.Backends))
	closeAll := func() error {
		var firstErr error
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		return firstErr
	}

	for _, b := range c.Backends {
		store, closeFn, err := openers[b.Name](b.Config)
		if err != nil {
			_ = closeAll()
			return nil, nil, fmt.Errorf("archiveconfig: backend %q: %w", b.id(), err)
		}
		named = append(named, archive.NamedStore{Name: b.id(), Store: store})
		if closeFn != nil {
			closers = append(closers, closeFn)
		}
	}

	if len(named) == 1 {
		return named[0].Store, closeAll, nil
	}
	if c.WritePolicy == WriteAll {
		return archive.Replicating{Backends: named}, closeAll, nil
	}
	stores := make([]archive.Store, 0, len(named))
	for _, n := range named {
		stores = append(stores, n.Store)
	}
	return archive.Multi{Stores: stores}, closeAll, nil
}

func openMemory(map[string]string) (archive.Store, func() error, error) {
	return memory.New(), nil, nil
}

func openLocalFS(cfg map[string]string) (archive.Store, func() error, error) {
	dir := strings.TrimSpace(cfg["dir"])
	if dir == "" {
		return nil, nil, errors.New(`missing "dir"`)
	}
	s, err := localfs.New(dir)
	if err != nil {
		return nil, nil, err
	}
	return s, nil, nil
}

func openGRPC(cfg map[string]string) (archive.Store, func() error, error) {
	target := strings.TrimSpace(cfg["target"])
	if target == "" {
		return nil, nil, errors.New(`missing "target"`)
	}
	var opts grpcarchive.DialOptions
	if v := cfg["max_msg_bytes"]; v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, nil, fmt.Errorf("max_msg_bytes: %w", err)
		}
		opts.MaxMsgBytes = n
	}
	var timeout time.Duration
	if v := cfg["timeout"]; v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, nil, fmt.Errorf("timeout: %w", err)
		}
		timeout = d
	}
	client, err := grpcarchive.Dial(target, opts)
	if err != nil {
		return nil, nil, err
	}
	client.Timeout = timeout
	return client, client.Close, nil
}
