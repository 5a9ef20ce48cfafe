package conversation

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		// the go-cache janitor stops only when its cache is garbage collected
		goleak.IgnoreTopFunction("github.com/patrickmn/go-cache.(*janitor).Run"),
	)
}

func TestSession_AppendAndTurns(t *testing.T) {
	t.Parallel()

	s := NewSession("farmer@example.com", "Swahili")
	require.NotEmpty(t, s.ID)
	assert.Empty(t, s.Turns())
	assert.NotNil(t, s.Turns())

	s.Append(SenderAssistant, "hello")
	turns := s.Append(SenderUser, "how to treat rust?")
	require.Len(t, turns, 2)
	assert.Equal(t, Turn{Sender: "AI", Message: "hello"}, turns[0])
	assert.Equal(t, Turn{Sender: "User", Message: "how to treat rust?"}, turns[1])

	// snapshots are independent of later appends
	s.Append(SenderAssistant, "remove leaves")
	assert.Len(t, turns, 2)
	assert.Len(t, s.Turns(), 3)
}

func TestSession_Detection(t *testing.T) {
	t.Parallel()

	s := NewSession("u", "")
	_, ok := s.Detection()
	assert.False(t, ok)

	s.Append(SenderUser, "old question")
	s.SetDetection(Detection{Label: "rust", Confidence: 0.7})
	assert.Empty(t, s.Turns(), "new detection starts a new transcript")

	s.SetRecordID(42)
	d, ok := s.Detection()
	require.True(t, ok)
	assert.Equal(t, uint(42), d.RecordID)
	assert.Equal(t, "rust", d.Label)

	s.ClearDetection()
	_, ok = s.Detection()
	assert.False(t, ok)
}

func TestSession_ConcurrentAppend(t *testing.T) {
	t.Parallel()

	s := NewSession("u", "")
	var wg sync.WaitGroup
	for i := range 50 {
		wg.Go(func() {
			s.Append(SenderUser, fmt.Sprintf("q%d", i))
		})
	}
	wg.Wait()
	assert.Len(t, s.Turns(), 50)
}

func TestEncodeDecode(t *testing.T) {
	t.Parallel()

	data, err := Encode([]Turn{{Sender: SenderAssistant, Message: "You can now ask questions about the disease or remedies."}})
	require.NoError(t, err)
	assert.JSONEq(t, `[{"sender":"AI","message":"You can now ask questions about the disease or remedies."}]`, data)

	empty, err := Encode(nil)
	require.NoError(t, err)
	assert.Equal(t, "[]", empty)

	turns, err := Decode(data)
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.Equal(t, SenderAssistant, turns[0].Sender)

	turns, err = Decode("")
	require.NoError(t, err)
	assert.Empty(t, turns)

	_, err = Decode("{not json")
	require.Error(t, err)
}

func TestStore_Lifecycle(t *testing.T) {
	t.Parallel()

	store := NewStore(time.Minute)
	defer store.Flush()

	s := store.Create("u", "Luo")
	got, ok := store.Get(s.ID)
	require.True(t, ok)
	assert.Same(t, s, got)
	assert.Equal(t, 1, store.Len())

	store.Delete(s.ID)
	_, ok = store.Get(s.ID)
	assert.False(t, ok)

	_, ok = store.Get("missing")
	assert.False(t, ok)
}

func TestStore_Expiry(t *testing.T) {
	t.Parallel()

	store := NewStore(20 * time.Millisecond)
	defer store.Flush()

	s := store.Create("u", "")
	time.Sleep(60 * time.Millisecond)
	_, ok := store.Get(s.ID)
	assert.False(t, ok)
}

func TestStore_DefaultTTL(t *testing.T) {
	t.Parallel()

	store := NewStore(0)
	defer store.Flush()
	assert.Equal(t, DefaultTTL, store.ttl)
}
