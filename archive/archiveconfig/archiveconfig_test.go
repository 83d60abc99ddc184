package archiveconfig

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"xdao.co/wxmsg/archive"
	"xdao.co/wxmsg/archive/grpcarchive"
	"xdao.co/wxmsg/archive/localfs"
	"xdao.co/wxmsg/archive/memory"
)

func TestValidate(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
		want string
	}{
		{"empty", Config{}, "at least one backend"},
		{"unnamed", Config{Backends: []BackendConfig{{}}}, "name is required"},
		{"unknown", Config{Backends: []BackendConfig{{Name: "s3"}}}, `unknown backend "s3"`},
		{"duplicate", Config{Backends: []BackendConfig{{Name: "memory"}, {Name: "memory"}}}, "duplicate backend id"},
		{"policy", Config{WritePolicy: "some", Backends: []BackendConfig{{Name: "memory"}}}, "invalid write_policy"},
	}
	for _, tc := range cases {
		err := tc.cfg.Validate()
		if err == nil || !strings.Contains(err.Error(), tc.want) {
			t.Fatalf("%s: got %v want error containing %q", tc.name, err, tc.want)
		}
	}

	ok := Config{Backends: []BackendConfig{{Name: "memory"}, {Name: "memory", ID: "second"}}}
	if err := ok.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestOpen_Policies(t *testing.T) {
	dir := t.TempDir()
	single := Config{Backends: []BackendConfig{{Name: "localfs", Config: map[string]string{"dir": dir}}}}
	s, closeFn, err := single.Open()
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer closeFn()
	if _, ok := s.(*localfs.Store); !ok {
		t.Fatalf("single backend: got %T want *localfs.Store", s)
	}

	first := Config{Backends: []BackendConfig{{Name: "memory"}, {Name: "localfs", Config: map[string]string{"dir": dir}}}}
	s, _, err = first.Open()
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	m, ok := s.(archive.Multi)
	if !ok || len(m.Stores) != 2 {
		t.Fatalf("first policy: got %T", s)
	}
	if _, ok := m.Stores[0].(*memory.Store); !ok {
		t.Fatalf("first store: got %T want *memory.Store", m.Stores[0])
	}

	all := first
	all.WritePolicy = WriteAll
	s, _, err = all.Open()
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	r, ok := s.(archive.Replicating)
	if !ok || r.Backends[1].Name != "localfs" {
		t.Fatalf("all policy: got %#v", s)
	}
	if _, err := r.Put(context.Background(), []byte("doc")); err != nil {
		t.Fatalf("Replicating Put: %v", err)
	}
}

func TestOpen_BackendErrors(t *testing.T) {
	cases := []Config{
		{Backends: []BackendConfig{{Name: "localfs"}}},
		{Backends: []BackendConfig{{Name: "grpc"}}},
		{Backends: []BackendConfig{{Name: "grpc", Config: map[string]string{"target": "localhost:1", "timeout": "soon"}}}},
		{Backends: []BackendConfig{{Name: "grpc", Config: map[string]string{"target": "localhost:1", "max_msg_bytes": "lots"}}}},
	}
	for i, cfg := range cases {
		if _, _, err := cfg.Open(); err == nil {
			t.Fatalf("case %d: Open should fail", i)
		}
	}
}

func TestOpen_GRPCClient(t *testing.T) {
	cfg := Config{Backends: []BackendConfig{{Name: "grpc", Config: map[string]string{"target": "localhost:7443", "timeout": "2s"}}}}
	s, closeFn, err := cfg.Open()
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	c, ok := s.(*grpcarchive.Client)
	if !ok {
		t.Fatalf("got %T want *grpcarchive.Client", s)
	}
	if c.Timeout.String() != "2s" {
		t.Fatalf("timeout: %s", c.Timeout)
	}
	if err := closeFn(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "archive.json")
	body := `{"write_policy":"all","backends":[{"name":"memory"},{"name":"memory","id":"mirror"}]}`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.WritePolicy != WriteAll || len(cfg.Backends) != 2 || cfg.Backends[1].ID != "mirror" {
		t.Fatalf("LoadFile: %+v", cfg)
	}
	if _, err := LoadFile(""); err == nil {
		t.Fatalf("LoadFile(\"\") should fail")
	}
	if err := os.WriteFile(path, []byte("{"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFile(path); err == nil {
		t.Fatalf("LoadFile with bad JSON should fail")
	}
}

func TestBackends(t *testing.T) {
	got := strings.Join(Backends(), ",")
	if got != "grpc,localfs,memory" {
		t.Fatalf("Backends: %s", got)
	}
}
