package registry

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/relayforge/conductord/internal/agentfile"
)

const twoAgents = `==== START: alpha ====
Title: Alpha
Name: Alpha Prime
HandoffTo: beta

==== START: beta ====
Title: Beta
Name: Beta Prime
HandoffFrom: alpha
`

func writeAgentFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "agents.txt")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRegistry_LoadAndGet(t *testing.T) {
	r := New(nil)
	if err := r.Load(writeAgentFile(t, twoAgents)); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	d, err := r.Get("alpha")
	if err != nil {
		t.Fatalf("Get(alpha) failed: %v", err)
	}
	if d.Name != "Alpha Prime" {
		t.Errorf("d.Name = %q, want Alpha Prime", d.Name)
	}

	_, err = r.Get("missing")
	if !errors.Is(err, ErrUnknownAgent) {
		t.Errorf("Get(missing) err = %v, want ErrUnknownAgent", err)
	}
}

func TestRegistry_ListInsertionOrder(t *testing.T) {
	r := New(nil)
	if err := r.Load(writeAgentFile(t, twoAgents)); err != nil {
		t.Fatal(err)
	}

	agents := r.List()
	if len(agents) != 2 {
		t.Fatalf("List returned %d agents, want 2", len(agents))
	}
	if agents[0].ID != "alpha" || agents[1].ID != "beta" {
		t.Errorf("order = [%s %s], want [alpha beta]", agents[0].ID, agents[1].ID)
	}
}

func TestRegistry_LoadMissingSource(t *testing.T) {
	r := New(nil)
	err := r.Load(filepath.Join(t.TempDir(), "absent.txt"))
	if !errors.Is(err, agentfile.ErrSourceUnavailable) {
		t.Errorf("err = %v, want ErrSourceUnavailable", err)
	}
}

func TestRegistry_RefreshReplacesSet(t *testing.T) {
	path := writeAgentFile(t, twoAgents)
	r := New(nil)
	if err := r.Load(path); err != nil {
		t.Fatal(err)
	}

	replacement := `==== START: gamma ====
Title: Gamma
Name: Gamma Prime
`
	if err := os.WriteFile(path, []byte(replacement), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := r.Refresh(); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	if r.Len() != 1 {
		t.Fatalf("Len = %d after refresh, want 1", r.Len())
	}
	if _, err := r.Get("alpha"); !errors.Is(err, ErrUnknownAgent) {
		t.Error("alpha still present after full replacement")
	}
	if _, err := r.Get("gamma"); err != nil {
		t.Errorf("gamma absent after refresh: %v", err)
	}
}

func TestRegistry_RefreshMalformedKeepsPriorSet(t *testing.T) {
	path := writeAgentFile(t, twoAgents)
	r := New(nil)
	if err := r.Load(path); err != nil {
		t.Fatal(err)
	}

	// No well-formed agent sections at all.
	if err := os.WriteFile(path, []byte("garbage without markers\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	err := r.Refresh()
	if !errors.Is(err, ErrNoAgents) {
		t.Fatalf("Refresh err = %v, want ErrNoAgents", err)
	}

	agents := r.List()
	if len(agents) != 2 || agents[0].ID != "alpha" || agents[1].ID != "beta" {
		t.Errorf("prior set not retained: %v", agents)
	}
}

func TestRegistry_RefreshMissingFileKeepsPriorSet(t *testing.T) {
	path := writeAgentFile(t, twoAgents)
	r := New(nil)
	if err := r.Load(path); err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}

	if err := r.Refresh(); !errors.Is(err, agentfile.ErrSourceUnavailable) {
		t.Fatalf("Refresh err = %v, want ErrSourceUnavailable", err)
	}
	if r.Len() != 2 {
		t.Errorf("Len = %d, want prior set of 2", r.Len())
	}
}

func TestRegistry_GetReturnsCopy(t *testing.T) {
	r := New(nil)
	if err := r.Load(writeAgentFile(t, twoAgents)); err != nil {
		t.Fatal(err)
	}

	d, err := r.Get("alpha")
	if err != nil {
		t.Fatal(err)
	}
	d.Name = "mutated"
	d.HandoffTo[0] = "mutated"

	fresh, err := r.Get("alpha")
	if err != nil {
		t.Fatal(err)
	}
	if fresh.Name != "Alpha Prime" || fresh.HandoffTo[0] != "beta" {
		t.Error("registry contents mutated through a returned descriptor")
	}
}

func TestRegistry_ConcurrentReadsDuringRefresh(t *testing.T) {
	path := writeAgentFile(t, twoAgents)
	r := New(nil)
	if err := r.Load(path); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				agents := r.List()
				// Complete set, never a mix: always both or the refreshed both.
				if len(agents) != 2 {
					t.Errorf("List returned %d agents mid-refresh", len(agents))
					return
				}
			}
		}()
	}
	for j := 0; j < 20; j++ {
		if err := r.Refresh(); err != nil {
			t.Errorf("Refresh failed: %v", err)
		}
	}
	wg.Wait()
}
