package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cachedThing struct {
	Name string `json:"name"`
}

func setupMiniredis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	SetClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() {
		SetClient(nil)
		mr.Close()
	})
	return mr
}

func TestAside_MissThenHit(t *testing.T) {
	mr := setupMiniredis(t)
	ctx := context.Background()

	calls := 0
	fetch := func(dest *cachedThing) func() error {
		return func() error {
			calls++
			dest.Name = "alice"
			return nil
		}
	}

	var first cachedThing
	require.NoError(t, Aside(ctx, ProfileKey("Alice"), &first, ProfileTTL, fetch(&first)))
	assert.Equal(t, "alice", first.Name)
	assert.True(t, mr.Exists("profile:public:alice"))

	var second cachedThing
	require.NoError(t, Aside(ctx, ProfileKey("alice"), &second, ProfileTTL, fetch(&second)))
	assert.Equal(t, "alice", second.Name)
	assert.Equal(t, 1, calls)

	InvalidateProfile(ctx, "ALICE")
	assert.False(t, mr.Exists("profile:public:alice"))
}

func TestAside_FetchErrorNotCached(t *testing.T) {
	mr := setupMiniredis(t)

	var dest cachedThing
	err := Aside(context.Background(), TagKey("go"), &dest, TagTTL, func() error {
		return errors.New("db down")
	})
	assert.EqualError(t, err, "db down")
	assert.False(t, mr.Exists("tag:go"))
}

func TestAside_NoClient(t *testing.T) {
	SetClient(nil)

	var dest cachedThing
	err := Aside(context.Background(), "profile:public:x", &dest, time.Minute, func() error {
		dest.Name = "x"
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "x", dest.Name)

	found, err := GetJSON(context.Background(), "k", &dest)
	assert.NoError(t, err)
	assert.False(t, found)
}

func TestInitRedis(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	defer SetClient(nil)

	c := InitRedis("redis://" + mr.Addr())
	require.NotNil(t, c)
	assert.Same(t, c, GetClient())

	assert.Nil(t, InitRedis("redis://%zz"))
	assert.Nil(t, GetClient())
}

func TestFamily(t *testing.T) {
	assert.Equal(t, "profile", Family("profile:public:bob"))
	assert.Equal(t, "plain", Family("plain"))
}
