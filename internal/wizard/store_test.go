package wizard

import (
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "sessions.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestNewStoreRejectsDirectoryPath(t *testing.T) {
	// sqlite cannot open a directory; migration fails and the handle is
	// released instead of leaking.
	if _, err := NewStore(t.TempDir()); err == nil {
		t.Fatal("NewStore on a directory path should fail")
	}
}

func TestStoreFirstAccessCreatesDefaults(t *testing.T) {
	s := newTestStore(t)

	st, err := s.Get(DefaultSession)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if st.UpstreamDNS != UpstreamUnbound || !st.EnableUnbound {
		t.Errorf("first access did not return defaults: %+v", st)
	}
	if st.Blocklists == nil {
		t.Error("blocklists should be an empty slice, not nil")
	}
}

func TestStoreLastWriteWins(t *testing.T) {
	s := newTestStore(t)

	st := Defaults()
	st.PiholeIP = "192.168.1.10"
	if err := s.Put(DefaultSession, st); err != nil {
		t.Fatalf("Put: %v", err)
	}

	st.PiholeIP = "192.168.1.20"
	if err := s.Put(DefaultSession, st); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := s.Get(DefaultSession)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.PiholeIP != "192.168.1.20" {
		t.Errorf("pihole_ip = %q, want last write", got.PiholeIP)
	}
}

func TestStoreReset(t *testing.T) {
	s := newTestStore(t)

	st := Defaults()
	st.Deployment = DeploymentBareMetal
	if err := s.Put(DefaultSession, st); err != nil {
		t.Fatal(err)
	}
	if err := s.Reset(DefaultSession); err != nil {
		t.Fatalf("Reset: %v", err)
	}

	got, err := s.Get(DefaultSession)
	if err != nil {
		t.Fatal(err)
	}
	if got.Deployment != "" {
		t.Errorf("deployment = %q after reset, want empty", got.Deployment)
	}
}
