package sharedctx

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_SnapshotIsolation(t *testing.T) {
	s := NewStore()
	s.SetProjectInfo("name", StringValue("demo"))
	s.SetActiveAgents([]string{"alpha"})
	s.SetKnowledge("stack", ListValue("go", "nats"))

	snap := s.Snapshot()

	// Mutate everything reachable from the snapshot.
	snap.ProjectInfo["name"] = StringValue("corrupted")
	snap.ActiveAgents[0] = "corrupted"
	snap.KnowledgeBase["stack"].List[0] = "corrupted"
	snap.Phase = PhaseComplete

	fresh := s.Snapshot()
	assert.Equal(t, "demo", fresh.ProjectInfo["name"].Str)
	assert.Equal(t, []string{"alpha"}, fresh.ActiveAgents)
	assert.Equal(t, "go", fresh.KnowledgeBase["stack"].List[0])
	assert.Equal(t, PhaseInitialization, fresh.Phase)
}

func TestStore_NotifiesObserversWithKey(t *testing.T) {
	s := NewStore()

	var (
		mu   sync.Mutex
		keys []Key
	)
	s.Subscribe(func(key Key, snap Snapshot) {
		mu.Lock()
		keys = append(keys, key)
		mu.Unlock()
	})

	s.SetPhase(PhaseActive, "alpha")
	s.SetActiveAgents([]string{"alpha"})
	s.AppendDecision("alpha", "use sectioned agent files")

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []Key{KeyPhase, KeyActiveAgents, KeyDecisions}, keys)
}

func TestStore_ObserverSeesPostMutationState(t *testing.T) {
	s := NewStore()

	var observed Snapshot
	s.Subscribe(func(key Key, snap Snapshot) {
		observed = snap
	})

	s.SetPhase(PhaseActive, "alpha")
	assert.Equal(t, PhaseActive, observed.Phase)
	assert.Equal(t, "alpha", observed.ActiveAgentID)
}

func TestStore_HandoffQueueFIFO(t *testing.T) {
	s := NewStore()

	first := s.PushHandoff("alpha", "beta")
	second := s.PushHandoff("beta", "gamma")
	require.NotEqual(t, first, second)

	got, ok := s.PopHandoff()
	require.True(t, ok)
	assert.Equal(t, first, got.ID)
	assert.Equal(t, "alpha", got.FromAgent)

	got, ok = s.PopHandoff()
	require.True(t, ok)
	assert.Equal(t, second, got.ID)

	_, ok = s.PopHandoff()
	assert.False(t, ok)
}

func TestStore_DecisionsAppendOnly(t *testing.T) {
	s := NewStore()
	s.AppendDecision("alpha", "first")
	s.AppendDecision("beta", "second")

	snap := s.Snapshot()
	require.Len(t, snap.Decisions, 2)
	assert.Equal(t, "first", snap.Decisions[0].Summary)
	assert.Equal(t, "second", snap.Decisions[1].Summary)
	assert.NotEmpty(t, snap.Decisions[0].ID)
	assert.False(t, snap.Decisions[0].RecordedAt.IsZero())
}

func TestStore_ConcurrentUpdatesAndReads(t *testing.T) {
	s := NewStore()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				s.SetDependencyStatus("dep", "ok")
				s.AppendDecision("alpha", "concurrent")
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				snap := s.Snapshot()
				_ = len(snap.Decisions)
			}
		}()
	}
	wg.Wait()

	assert.Len(t, s.Snapshot().Decisions, 8*50)
}

func TestValue_BlobClone(t *testing.T) {
	raw := json.RawMessage(`{"framework":"echo"}`)
	v := BlobValue(raw)
	raw[2] = 'X'
	assert.JSONEq(t, `{"framework":"echo"}`, string(v.Blob))
}
