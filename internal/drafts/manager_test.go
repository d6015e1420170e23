package drafts

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_SaveLoadClear(t *testing.T) {
	store := newRecordingStore()
	m := NewManager(store, time.Hour, "daoquery:draft:", zerolog.Nop())
	ctx := context.Background()

	_, err := m.Load(ctx, "dao")
	assert.ErrorIs(t, err, ErrDraftNotFound)

	require.NoError(t, m.Save("dao", json.RawMessage(`{"name":"a"}`)))
	require.NoError(t, m.Save("dao", json.RawMessage(`{"name":"b"}`)))

	doc, err := m.Load(ctx, "dao")
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"b"}`, string(doc))
	assert.Empty(t, store.Writes())

	require.NoError(t, m.Close(ctx))
	assert.Equal(t, []string{`{"name":"b"}`}, store.Writes())

	value, found, err := store.Read(ctx, "daoquery:draft:dao")
	require.NoError(t, err)
	require.True(t, found)
	assert.JSONEq(t, `{"name":"b"}`, value)

	require.NoError(t, m.Save("dao", json.RawMessage(`{"name":"c"}`)))
	require.NoError(t, m.Clear(ctx, "dao"))

	doc, err = m.Load(ctx, "dao")
	require.NoError(t, err)
	assert.Equal(t, "null", string(doc))
	assert.Equal(t, []string{`{"name":"b"}`, `null`}, store.Writes())
}

func TestManager_Validation(t *testing.T) {
	m := NewManager(NewMemoryStore(), time.Hour, "", zerolog.Nop())

	assert.ErrorIs(t, m.Save("", json.RawMessage(`{}`)), ErrInvalidDraftID)
	assert.Error(t, m.Save("x", json.RawMessage(`{bad`)))

	_, err := m.Load(context.Background(), "")
	assert.ErrorIs(t, err, ErrInvalidDraftID)
}

func TestManager_DebouncedWrite(t *testing.T) {
	store := newRecordingStore()
	m := NewManager(store, testDelay, "", zerolog.Nop())

	require.NoError(t, m.Save("a", json.RawMessage(`1`)))
	require.NoError(t, m.Save("b", json.RawMessage(`2`)))

	require.Eventually(t, func() bool { return len(store.Writes()) == 2 }, time.Second, 5*time.Millisecond)
	assert.ElementsMatch(t, []string{"1", "2"}, store.Writes())
	assert.Equal(t, uint64(0), m.Failures())
}

func TestManager_UnknownIDsKeepNoState(t *testing.T) {
	m := NewManager(NewMemoryStore(), time.Hour, "", zerolog.Nop())
	ctx := context.Background()

	for i := 0; i < 1000; i++ {
		_, err := m.Load(ctx, "unknown-"+strconv.Itoa(i))
		require.ErrorIs(t, err, ErrDraftNotFound)
	}
	for i := 0; i < 100; i++ {
		require.NoError(t, m.Clear(ctx, "cleared-"+strconv.Itoa(i)))
	}
	assert.Equal(t, 0, m.Active())
	assert.Empty(t, m.debouncers)

	doc, err := m.Load(ctx, "cleared-7")
	require.NoError(t, err)
	assert.Equal(t, "null", string(doc))
}

func TestManager_ReleasesDebouncerOnceWritten(t *testing.T) {
	store := newRecordingStore()
	m := NewManager(store, testDelay, "", zerolog.Nop())
	ctx := context.Background()

	require.NoError(t, m.Save("timer", json.RawMessage(`1`)))
	require.NoError(t, m.Save("flushed", json.RawMessage(`2`)))
	require.NoError(t, m.Save("cleared", json.RawMessage(`3`)))
	assert.Equal(t, 3, m.Active())

	require.NoError(t, m.Clear(ctx, "cleared"))
	require.NoError(t, m.Flush(ctx))
	require.Eventually(t, func() bool { return m.Active() == 0 }, time.Second, 5*time.Millisecond)

	doc, err := m.Load(ctx, "flushed")
	require.NoError(t, err)
	assert.Equal(t, "2", string(doc))
}

func TestManager_FailuresSurviveRelease(t *testing.T) {
	store := newRecordingStore()
	store.fail = errors.New("disk full")
	m := NewManager(store, testDelay, "", zerolog.Nop())

	require.NoError(t, m.Save("a", json.RawMessage(`1`)))
	require.Eventually(t, func() bool { return m.Active() == 0 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, uint64(1), m.Failures())

	err := m.Clear(context.Background(), "b")
	var werr *PersistenceWriteError
	require.ErrorAs(t, err, &werr)
	assert.Equal(t, "b", werr.Key)
	assert.Equal(t, uint64(2), m.Failures())
}

func TestNewDaoDocument(t *testing.T) {
	store := NewMemoryStore()
	d := New(store, NewDaoKey(""), time.Hour, DefaultNewDao(), zerolog.Nop())

	doc, err := d.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, DefaultVotingModuleAdapterID, doc.VotingModuleAdapter.ID)
	require.Len(t, doc.ProposalModuleAdapters, 1)

	doc.Name = "My DAO"
	d.Schedule(doc)
	require.NoError(t, d.Flush(context.Background()))

	loaded, err := d.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "My DAO", loaded.Name)

	assert.Equal(t, "newDao:juno1parent", NewDaoKey("juno1parent"))
	assert.Equal(t, "proposalDraft:juno1prop:3", ProposalDraftKey("juno1prop", 3))
}
