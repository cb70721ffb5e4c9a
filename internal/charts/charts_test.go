package charts

import (
	"context"
	"errors"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGetter map[string]string

func (f fakeGetter) Get(_ context.Context, key string) *redis.StringCmd {
	if key == KeyPrefix+"broken" {
		return redis.NewStringResult("", errors.New("i/o timeout"))
	}
	v, ok := f[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

var profileSeries = []Series{
	{Name: "consumption", Kind: "bar", Points: []Point{{"Ocak", 4200}, {"Şubat", 3900}}},
	{Name: "sectors", Kind: "pie", Points: []Point{{"Sanayi", 250}, {"Konut", 300}, {"Tarım", 250}}},
}

func TestStatic(t *testing.T) {
	s := NewStatic(profileSeries)
	assert.Equal(t, []string{"consumption", "sectors"}, s.Names())
	got, err := s.Series(context.Background(), "consumption")
	require.NoError(t, err)
	assert.Len(t, got.Points, 2)
	_, err = s.Series(context.Background(), "weather")
	assert.ErrorIs(t, err, ErrUnknownSeries)
}

func TestChainPrefersRedis(t *testing.T) {
	rdb := fakeGetter{KeyPrefix + "consumption": `{"kind":"bar","points":[{"label":"Ocak","value":1}]}`}
	c := Chain{NewRedis(rdb), NewStatic(profileSeries)}

	got, err := c.Series(context.Background(), "consumption")
	require.NoError(t, err)
	assert.Equal(t, "consumption", got.Name)
	assert.Equal(t, []Point{{"Ocak", 1}}, got.Points)

	got, err = c.Series(context.Background(), "sectors")
	require.NoError(t, err)
	assert.Len(t, got.Points, 3)

	_, err = c.Series(context.Background(), "broken")
	assert.ErrorIs(t, err, ErrUnknownSeries)
}

func TestTotalAndSorted(t *testing.T) {
	s := profileSeries[1]
	assert.Equal(t, 800.0, Total(s))
	assert.Equal(t, []Point{{"Konut", 300}, {"Sanayi", 250}, {"Tarım", 250}}, Sorted(s))
	// input untouched
	assert.Equal(t, "Sanayi", s.Points[0].Label)
}

func TestChainNamesMergesListers(t *testing.T) {
	extra := NewStatic([]Series{{Name: "sectors"}, {Name: "imports"}})
	c := Chain{NewRedis(fakeGetter{}), NewStatic(profileSeries), extra}
	assert.Equal(t, []string{"consumption", "sectors", "imports"}, c.Names())
	assert.Empty(t, Chain{NewRedis(fakeGetter{})}.Names())
}
