package drafts

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

func exerciseStore(t *testing.T, store Store, key string) {
	t.Helper()
	ctx := context.Background()

	_, found, err := store.Read(ctx, key)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, store.Write(ctx, key, `{"name":"first"}`))
	require.NoError(t, store.Write(ctx, key, `{"name":"second"}`))

	value, found, err := store.Read(ctx, key)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, `{"name":"second"}`, value)
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore(), "draft")
}

func TestSQLiteStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "drafts.db")
	store, err := OpenSQLite(context.Background(), path)
	require.NoError(t, err)

	exerciseStore(t, store, "draft")
	require.NoError(t, store.Close())

	reopened, err := OpenSQLite(context.Background(), path)
	require.NoError(t, err)
	defer reopened.Close()

	value, found, err := reopened.Read(context.Background(), "draft")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, `{"name":"second"}`, value)
}

func TestOpenSQLite_EmptyPath(t *testing.T) {
	_, err := OpenSQLite(context.Background(), "")
	assert.Error(t, err)
}

type RedisStoreSuite struct {
	suite.Suite

	store *RedisStore
	key   string
}

func TestRedisStoreSuite(t *testing.T) {
	suite.Run(t, new(RedisStoreSuite))
}

func (s *RedisStoreSuite) SetupSuite() {
	addr := os.Getenv("DAOQUERY_TEST_REDIS_ADDR")
	if addr == "" {
		s.T().Skip("DAOQUERY_TEST_REDIS_ADDR not set")
	}

	store, err := DialRedis(context.Background(), addr, "", 0)
	s.Require().NoError(err)
	s.store = store
}

func (s *RedisStoreSuite) TearDownSuite() {
	if s.store != nil {
		s.store.Close()
	}
}

func (s *RedisStoreSuite) SetupTest() {
	s.key = "daoquery:test:" + s.T().Name()
}

func (s *RedisStoreSuite) TearDownTest() {
	s.store.cli.Del(context.Background(), s.key)
}

func (s *RedisStoreSuite) TestReadWrite() {
	exerciseStore(s.T(), s.store, s.key)
}

func (s *RedisStoreSuite) TestDebouncedWrite() {
	d := New(s.store, s.key, testDelay, NewDao{}, zerolog.Nop())
	d.Schedule(NewDao{Name: "redis"})

	s.Eventually(func() bool {
		_, found, err := s.store.Read(context.Background(), s.key)
		return err == nil && found
	}, time.Second, 5*time.Millisecond)

	doc, err := d.Load(context.Background())
	s.Require().NoError(err)
	s.Equal("redis", doc.Name)
}
