package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetOrFetchStoresAndServes(t *testing.T) {
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	c := NewWithClock(t.TempDir(), func() time.Time { return now })

	calls := 0
	fetch := func(context.Context) ([]byte, error) {
		calls++
		return []byte(`{"v":1}`), nil
	}

	got, err := c.GetOrFetch(context.Background(), "https://example/registry", 7, fetch)
	require.NoError(t, err)
	assert.JSONEq(t, `{"v":1}`, string(got))
	assert.Equal(t, 1, calls)

	// Second call within the TTL hits the disk entry.
	got, err = c.GetOrFetch(context.Background(), "https://example/registry", 7, fetch)
	require.NoError(t, err)
	assert.JSONEq(t, `{"v":1}`, string(got))
	assert.Equal(t, 1, calls)
}

func TestGetOrFetchTTLBoundary(t *testing.T) {
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	c := NewWithClock(t.TempDir(), func() time.Time { return now })

	payload := []byte(`1`)
	calls := 0
	fetch := func(context.Context) ([]byte, error) {
		calls++
		return payload, nil
	}

	_, err := c.GetOrFetch(context.Background(), "k", 7, fetch)
	require.NoError(t, err)
	require.Equal(t, 1, calls)

	// Exactly 7 days old is still fresh.
	now = now.AddDate(0, 0, 7)
	_, err = c.GetOrFetch(context.Background(), "k", 7, fetch)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	// Strictly more than 7 whole days triggers a refresh.
	now = now.AddDate(0, 0, 1).Add(time.Hour)
	_, err = c.GetOrFetch(context.Background(), "k", 7, fetch)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestGetOrFetchServesStaleOnFetchError(t *testing.T) {
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	c := NewWithClock(t.TempDir(), func() time.Time { return now })

	_, err := c.GetOrFetch(context.Background(), "k", 7, func(context.Context) ([]byte, error) {
		return []byte(`"old"`), nil
	})
	require.NoError(t, err)

	now = now.AddDate(0, 0, 30)
	got, err := c.GetOrFetch(context.Background(), "k", 7, func(context.Context) ([]byte, error) {
		return nil, errors.New("registry down")
	})
	require.NoError(t, err)
	assert.Equal(t, `"old"`, string(got))
}

func TestGetOrFetchErrorWithoutCache(t *testing.T) {
	c := New(t.TempDir())
	_, err := c.GetOrFetch(context.Background(), "k", 7, func(context.Context) ([]byte, error) {
		return nil, errors.New("registry down")
	})
	assert.Error(t, err)
}

func TestGetJSON(t *testing.T) {
	c := New(t.TempDir())
	type doc struct {
		Name string `json:"name"`
	}
	got, err := GetJSON[doc](context.Background(), c, "k", 7, func(context.Context) ([]byte, error) {
		return []byte(`{"name":"flomsoner"}`), nil
	})
	require.NoError(t, err)
	assert.Equal(t, "flomsoner", got.Name)
}

func TestSlugifyDistinctKeys(t *testing.T) {
	assert.NotEqual(t, slugify("https://a/x"), slugify("https://a/y"))
}
