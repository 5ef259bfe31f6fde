package presence

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s := NewStore(DefaultStoreConfig())
	t.Cleanup(s.Close)
	return s
}

func register(t *testing.T, s *Store, handle, connID string) *Binding {
	t.Helper()
	b, err := s.Register(&Binding{Handle: handle, ConnectionID: connID})
	require.NoError(t, err)
	return b
}

func TestRegisterAndLookup(t *testing.T) {
	s := newTestStore(t)

	b := register(t, s, "alice@example.com", "conn-1")
	assert.NotEmpty(t, b.BindingID)
	assert.Equal(t, 60, b.Expires, "default expires applied")
	assert.False(t, b.IsExpired())

	got := s.Lookup("alice@example.com")
	require.Len(t, got, 1)
	assert.Equal(t, b.BindingID, got[0].BindingID)
	assert.True(t, s.Has("alice@example.com"))
	assert.False(t, s.Has("nobody@example.com"))
}

func TestRegisterValidation(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Register(&Binding{ConnectionID: "conn-1"})
	assert.Error(t, err)

	_, err = s.Register(&Binding{Handle: "alice@example.com"})
	assert.Error(t, err)
}

func TestRegisterIntervalTooBrief(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Register(&Binding{
		Handle:       "alice@example.com",
		ConnectionID: "conn-1",
		Expires:      10,
	})
	assert.ErrorIs(t, err, ErrIntervalTooBrief)
	assert.Equal(t, 30, s.MinExpires())
}

func TestRegisterClampsMaxExpires(t *testing.T) {
	s := newTestStore(t)

	b, err := s.Register(&Binding{
		Handle:       "alice@example.com",
		ConnectionID: "conn-1",
		Expires:      100000,
	})
	require.NoError(t, err)
	assert.Equal(t, 120, b.Expires)
}

func TestMultipleBindingsPerHandle(t *testing.T) {
	s := newTestStore(t)

	register(t, s, "alice@example.com", "tab-1")
	register(t, s, "alice@example.com", "tab-2")

	assert.Len(t, s.Lookup("alice@example.com"), 2)
	assert.Equal(t, 2, s.Count())
	assert.Equal(t, 1, s.CountHandles())
}

func TestReregisterSameConnectionRefreshes(t *testing.T) {
	s := newTestStore(t)

	first := register(t, s, "alice@example.com", "conn-1")
	second := register(t, s, "alice@example.com", "conn-1")

	assert.Equal(t, first.BindingID, second.BindingID, "binding id is stable per connection")
	assert.Len(t, s.Lookup("alice@example.com"), 1)
}

func TestUnregisterOneBinding(t *testing.T) {
	s := newTestStore(t)

	b1 := register(t, s, "alice@example.com", "tab-1")
	register(t, s, "alice@example.com", "tab-2")

	require.NoError(t, s.Unregister("alice@example.com", b1.BindingID, false))
	got := s.Lookup("alice@example.com")
	require.Len(t, got, 1)
	assert.NotEqual(t, b1.BindingID, got[0].BindingID)
}

func TestUnregisterWildcard(t *testing.T) {
	s := newTestStore(t)

	register(t, s, "alice@example.com", "tab-1")
	register(t, s, "alice@example.com", "tab-2")

	require.NoError(t, s.Unregister("alice@example.com", "", true))
	assert.False(t, s.Has("alice@example.com"))
}

func TestUnregisterUnknown(t *testing.T) {
	s := newTestStore(t)

	err := s.Unregister("nobody@example.com", "x", false)
	assert.ErrorIs(t, err, ErrNotRegistered)

	register(t, s, "alice@example.com", "tab-1")
	err = s.Unregister("alice@example.com", "no-such-binding", false)
	assert.Error(t, err)
}

func TestLookupOnePicksHighestPriority(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Register(&Binding{Handle: "alice@example.com", ConnectionID: "low", Priority: 0.5})
	require.NoError(t, err)
	_, err = s.Register(&Binding{Handle: "alice@example.com", ConnectionID: "high", Priority: 2.0})
	require.NoError(t, err)

	best := s.LookupOne("alice@example.com")
	require.NotNil(t, best)
	assert.Equal(t, "high", best.ConnectionID)

	assert.Nil(t, s.LookupOne("nobody@example.com"))
}

func TestBusyFlag(t *testing.T) {
	s := newTestStore(t)

	register(t, s, "alice@example.com", "tab-1")
	assert.False(t, s.IsBusy("alice@example.com"))

	s.SetBusy("alice@example.com", true)
	assert.True(t, s.IsBusy("alice@example.com"))

	s.SetBusy("alice@example.com", false)
	assert.False(t, s.IsBusy("alice@example.com"))

	// No-op on unknown handles.
	s.SetBusy("nobody@example.com", true)
	assert.False(t, s.IsBusy("nobody@example.com"))
}

func TestExpiredBindingInvisible(t *testing.T) {
	s := newTestStore(t)

	b := register(t, s, "alice@example.com", "tab-1")
	b.ExpiresAt = time.Now().Add(-time.Second)

	assert.Empty(t, s.Lookup("alice@example.com"))
	assert.Nil(t, s.LookupOne("alice@example.com"))
	assert.Zero(t, s.Count())
}

func TestLookupReturnsCopies(t *testing.T) {
	s := newTestStore(t)

	register(t, s, "alice@example.com", "tab-1")

	got := s.Lookup("alice@example.com")
	require.Len(t, got, 1)
	got[0].Busy = true

	assert.False(t, s.IsBusy("alice@example.com"),
		"mutating a looked-up binding must not leak into the store")
}

func TestStoreConcurrentAccess(t *testing.T) {
	s := newTestStore(t)
	register(t, s, "alice@example.com", "tab-0")

	start := make(chan struct{})
	var wg sync.WaitGroup

	wg.Add(3)
	go func() {
		defer wg.Done()
		<-start
		for i := 0; i < 200; i++ {
			_, err := s.Register(&Binding{
				Handle:       "alice@example.com",
				ConnectionID: fmt.Sprintf("tab-%d", i%4),
			})
			assert.NoError(t, err)
		}
	}()
	go func() {
		defer wg.Done()
		<-start
		for i := 0; i < 200; i++ {
			s.LookupOne("alice@example.com")
			s.IsBusy("alice@example.com")
			s.Count()
			s.List()
		}
	}()
	go func() {
		defer wg.Done()
		<-start
		for i := 0; i < 200; i++ {
			s.SetBusy("alice@example.com", i%2 == 0)
		}
	}()

	close(start)
	wg.Wait()

	assert.True(t, s.Has("alice@example.com"))
}

func TestGenerateBindingIDDeterministic(t *testing.T) {
	a := GenerateBindingID("alice@example.com", "conn-1")
	b := GenerateBindingID("alice@example.com", "conn-1")
	c := GenerateBindingID("alice@example.com", "conn-2")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 16)
}
