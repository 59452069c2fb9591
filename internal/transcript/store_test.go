package transcript

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entry(id, bot, user, prompt string, at time.Time) Entry {
	return Entry{ID: id, BotID: bot, UserID: user, Prompt: prompt, CreatedAt: at}
}

// storeUnderTest runs the shared Store contract against an implementation.
func storeUnderTest(t *testing.T, store Store) {
	ctx := context.Background()
	base := time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.SavePrompt(ctx, entry("p1", "bot-1", "alice", "first question", base)))
	require.NoError(t, store.SavePrompt(ctx, entry("p2", "bot-1", "alice", "second question", base.Add(time.Minute))))
	require.NoError(t, store.SavePrompt(ctx, entry("p3", "bot-1", "bob", "unrelated question", base.Add(2*time.Minute))))
	require.NoError(t, store.SavePrompt(ctx, entry("p4", "bot-2", "alice", "other bot question", base.Add(3*time.Minute))))

	require.NoError(t, store.SaveResponse(ctx, "p1", "first answer"))

	got, err := store.History(ctx, "bot-1", "alice")
	require.NoError(t, err)
	require.Len(t, got, 2, "history is scoped to the bot/user pair")

	assert.Equal(t, "p1", got[0].ID, "oldest first")
	assert.Equal(t, "first answer", got[0].Response)
	assert.Equal(t, "p2", got[1].ID)
	assert.Empty(t, got[1].Response, "unanswered prompt keeps an empty response")

	other, err := store.History(ctx, "bot-1", "carol")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestMemoryStore_Contract(t *testing.T) {
	store := NewMemoryStore(time.Hour)
	defer store.Close()

	storeUnderTest(t, store)
}

func TestMemoryStore_TTLExpiry(t *testing.T) {
	store := NewMemoryStore(50 * time.Millisecond)
	defer store.Close()

	ctx := context.Background()
	require.NoError(t, store.SavePrompt(ctx, entry("p1", "b", "u", "q", time.Now())))

	time.Sleep(120 * time.Millisecond)

	got, err := store.History(ctx, "b", "u")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMemoryStore_CloseIsSafe(t *testing.T) {
	store := NewMemoryStore(time.Hour)

	require.NoError(t, store.Close())
	require.NoError(t, store.Close())

	// Writes after Close are dropped, not panics.
	assert.NoError(t, store.SavePrompt(context.Background(), entry("p1", "b", "u", "q", time.Now())))
}

func TestSQLiteStore_Contract(t *testing.T) {
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "transcripts.db"))
	require.NoError(t, err)
	defer store.Close()

	storeUnderTest(t, store)
}

func TestSQLiteStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "transcripts.db")
	ctx := context.Background()

	store, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, store.SavePrompt(ctx, entry("p1", "b", "u", "q", time.Now().UTC())))
	require.NoError(t, store.SaveResponse(ctx, "p1", "a"))
	require.NoError(t, store.Close())

	reopened, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.History(ctx, "b", "u")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].Response)
}
