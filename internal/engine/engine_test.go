package engine_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loglens/loglens/internal/config"
	"github.com/loglens/loglens/internal/core/model"
	"github.com/loglens/loglens/internal/engine"
	"github.com/loglens/loglens/internal/engine/broadcast"
	"github.com/loglens/loglens/internal/engine/index"
	"github.com/loglens/loglens/internal/testing/fixtures"
)

var t0 = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func startEngine(t *testing.T, root string) *engine.Engine {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Root = root
	cfg.DebounceWindow = 10 * time.Millisecond
	cfg.RescanInterval = 250 * time.Millisecond

	e := engine.New(cfg)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() {
		if err := e.Run(ctx); err != nil {
			t.Errorf("engine run: %v", err)
		}
	}()
	return e
}

func waitEvent(t *testing.T, sub *broadcast.Subscription) model.Event {
	t.Helper()
	select {
	case ev := <-sub.Events():
		return ev
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for event")
		return model.Event{}
	}
}

func waitEventOfType(t *testing.T, sub *broadcast.Subscription, want model.EventType) model.Event {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case ev := <-sub.Events():
			if ev.Type == want {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s event", want)
			return model.Event{}
		}
	}
}

func TestStartupScanLoadsExistingSessions(t *testing.T) {
	gen := fixtures.NewGenerator(t.TempDir())
	_, err := gen.WriteSession("webapp", "sess-1", fixtures.Conversation(t0)...)
	require.NoError(t, err)

	e := startEngine(t, gen.Root())

	require.Eventually(t, func() bool {
		entries, err := e.GetEntries("webapp", "sess-1")
		return err == nil && len(entries) == 5
	}, 3*time.Second, 20*time.Millisecond)

	projects := e.ListProjects()
	require.Len(t, projects, 1)
	assert.Equal(t, "webapp", projects[0].Name)
	assert.Equal(t, 1, projects[0].SessionCount)

	sessions, err := e.ListSessions("webapp")
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "sess-1", sessions[0].ID)
	assert.Equal(t, 5, sessions[0].EntryCount)
}

func TestLiveAppendsAreDeliveredInOrder(t *testing.T) {
	gen := fixtures.NewGenerator(t.TempDir())
	_, err := gen.WriteSession("webapp", "sess-1", fixtures.UserMessage("hello", t0))
	require.NoError(t, err)

	e := startEngine(t, gen.Root())
	require.Eventually(t, func() bool {
		entries, err := e.GetEntries("webapp", "sess-1")
		return err == nil && len(entries) == 1
	}, 3*time.Second, 20*time.Millisecond)

	sub, err := e.Subscribe("webapp", "sess-1", nil)
	require.NoError(t, err)
	defer sub.Close()

	require.NoError(t, gen.Append("webapp", "sess-1",
		fixtures.AssistantText("hi", t0.Add(time.Second)),
		fixtures.UserMessage("how are you?", t0.Add(2*time.Second)),
		fixtures.AssistantText("fine", t0.Add(3*time.Second)),
	))

	var seqs []int64
	for len(seqs) < 3 {
		ev := waitEventOfType(t, sub, model.EventEntry)
		seqs = append(seqs, ev.Entry.Sequence)
	}
	assert.Equal(t, []int64{2, 3, 4}, seqs)
}

func TestToolRoundTripProducesInteraction(t *testing.T) {
	gen := fixtures.NewGenerator(t.TempDir())
	_, err := gen.WriteSession("webapp", "sess-1", fixtures.UserMessage("run ls", t0))
	require.NoError(t, err)

	e := startEngine(t, gen.Root())
	require.Eventually(t, func() bool {
		entries, err := e.GetEntries("webapp", "sess-1")
		return err == nil && len(entries) == 1
	}, 3*time.Second, 20*time.Millisecond)

	sub, err := e.Subscribe("webapp", "sess-1", nil)
	require.NoError(t, err)
	defer sub.Close()

	require.NoError(t, gen.Append("webapp", "sess-1",
		fixtures.ToolCall("toolu_42", "Bash", map[string]string{"command": "ls"}, t0.Add(time.Second)),
		fixtures.ToolResult("toolu_42", "go.mod\n", t0.Add(2*time.Second)),
	))

	ev := waitEventOfType(t, sub, model.EventInteraction)
	require.NotNil(t, ev.Interaction)
	assert.Equal(t, "toolu_42", ev.Interaction.CorrelationID)
	assert.Equal(t, "Bash", ev.Interaction.ToolName)
	assert.Equal(t, model.KindToolCall, ev.Interaction.Call.Kind)
	assert.Equal(t, model.KindToolResult, ev.Interaction.Result.Kind)
}

func TestTruncationEmitsResetAndRebuilds(t *testing.T) {
	gen := fixtures.NewGenerator(t.TempDir())
	_, err := gen.WriteSession("webapp", "sess-1", fixtures.Conversation(t0)...)
	require.NoError(t, err)

	e := startEngine(t, gen.Root())
	require.Eventually(t, func() bool {
		entries, err := e.GetEntries("webapp", "sess-1")
		return err == nil && len(entries) == 5
	}, 3*time.Second, 20*time.Millisecond)

	sub, err := e.Subscribe("webapp", "sess-1", nil)
	require.NoError(t, err)
	defer sub.Close()

	_, err = gen.WriteSession("webapp", "sess-1", fixtures.UserMessage("fresh start", t0.Add(time.Minute)))
	require.NoError(t, err)

	ev := waitEventOfType(t, sub, model.EventReset)
	assert.Equal(t, "sess-1", ev.Session)

	entry := waitEventOfType(t, sub, model.EventEntry)
	assert.Equal(t, int64(1), entry.Entry.Sequence)
	assert.Equal(t, "fresh start", entry.Entry.Text)
}

func TestRemovalHidesSession(t *testing.T) {
	gen := fixtures.NewGenerator(t.TempDir())
	path, err := gen.WriteSession("webapp", "sess-1", fixtures.UserMessage("hello", t0))
	require.NoError(t, err)

	e := startEngine(t, gen.Root())
	require.Eventually(t, func() bool {
		_, err := e.GetEntries("webapp", "sess-1")
		return err == nil
	}, 3*time.Second, 20*time.Millisecond)

	require.NoError(t, os.Remove(path))

	require.Eventually(t, func() bool {
		_, err := e.GetEntries("webapp", "sess-1")
		return err != nil
	}, 3*time.Second, 20*time.Millisecond)

	_, err = e.GetEntries("webapp", "sess-1")
	assert.ErrorIs(t, err, index.ErrSessionNotFound)
}

func TestGlobalFeedCarriesActivityNotices(t *testing.T) {
	gen := fixtures.NewGenerator(t.TempDir())
	_, err := gen.WriteSession("webapp", "sess-1", fixtures.UserMessage("hello", t0))
	require.NoError(t, err)

	e := startEngine(t, gen.Root())
	require.Eventually(t, func() bool {
		_, err := e.GetEntries("webapp", "sess-1")
		return err == nil
	}, 3*time.Second, 20*time.Millisecond)

	sub, err := e.Subscribe("", "", nil)
	require.NoError(t, err)
	defer sub.Close()

	require.NoError(t, gen.Append("webapp", "sess-1", fixtures.AssistantText("hi", t0.Add(time.Second))))

	ev := waitEvent(t, sub)
	assert.Equal(t, model.EventActivity, ev.Type)
	assert.Equal(t, "webapp", ev.Project)
	assert.Equal(t, "sess-1", ev.Session)
	assert.Nil(t, ev.Entry)
}

func TestSubscribeWithCursorCatchesUpThenStreams(t *testing.T) {
	gen := fixtures.NewGenerator(t.TempDir())
	_, err := gen.WriteSession("webapp", "sess-1",
		fixtures.UserMessage("one", t0),
		fixtures.AssistantText("two", t0.Add(time.Second)),
	)
	require.NoError(t, err)

	e := startEngine(t, gen.Root())
	require.Eventually(t, func() bool {
		entries, err := e.GetEntries("webapp", "sess-1")
		return err == nil && len(entries) == 2
	}, 3*time.Second, 20*time.Millisecond)

	from := int64(1)
	sub, err := e.Subscribe("webapp", "sess-1", &from)
	require.NoError(t, err)
	defer sub.Close()

	replayed := waitEventOfType(t, sub, model.EventEntry)
	assert.Equal(t, int64(2), replayed.Entry.Sequence)

	require.NoError(t, gen.Append("webapp", "sess-1", fixtures.UserMessage("three", t0.Add(2*time.Second))))
	live := waitEventOfType(t, sub, model.EventEntry)
	assert.Equal(t, int64(3), live.Entry.Sequence)
}

func TestSubscribeValidatesTarget(t *testing.T) {
	e := startEngine(t, fixtures.NewGenerator(t.TempDir()).Root())

	_, err := e.Subscribe("webapp", "", nil)
	assert.Error(t, err)

	_, err = e.Subscribe("ghost", "none", nil)
	assert.ErrorIs(t, err, index.ErrSessionNotFound)
}
