package tracker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PolaricServer/aprsd-go/aprs"
)

func item(at time.Time, lat, lon float64) TrailItem {
	return TrailItem{Time: at, Pos: aprs.Position{Lat: lat, Lon: lon}}
}

func TestTrailNewestFirst(t *testing.T) {
	tr := NewTrail(0, 0)
	base := time.Now()
	tr.Add(item(base, 60.00, 10.75))
	tr.Add(item(base.Add(time.Minute), 60.01, 10.75))
	tr.Add(item(base.Add(2*time.Minute), 60.02, 10.75))

	items := tr.Items()
	require.Len(t, items, 3)
	for i := 1; i < len(items); i++ {
		assert.True(t, items[i-1].Time.After(items[i].Time), "item %d out of order", i)
	}

	newest, ok := tr.Newest()
	require.True(t, ok)
	assert.Equal(t, base.Add(2*time.Minute), newest.Time)
	oldest, ok := tr.Oldest()
	require.True(t, ok)
	assert.Equal(t, base, oldest.Time)
}

func TestTrailInsertKeepsOrder(t *testing.T) {
	tr := NewTrail(0, 0)
	base := time.Now()
	tr.Add(item(base, 60.00, 10.75))
	tr.Add(item(base.Add(4*time.Minute), 60.02, 10.75))

	// Late-arriving item lands between the two.
	tr.Insert(item(base.Add(2*time.Minute), 60.01, 10.75))

	items := tr.Items()
	require.Len(t, items, 3)
	assert.Equal(t, base.Add(4*time.Minute), items[0].Time)
	assert.Equal(t, base.Add(2*time.Minute), items[1].Time)
	assert.Equal(t, base, items[2].Time)
}

func TestTrailInsertAtEnds(t *testing.T) {
	tr := NewTrail(0, 0)
	base := time.Now()
	tr.Add(item(base, 60.00, 10.75))

	tr.Insert(item(base.Add(-time.Minute), 60.01, 10.75))
	tr.Insert(item(base.Add(time.Minute), 60.02, 10.75))

	items := tr.Items()
	require.Len(t, items, 3)
	assert.Equal(t, base.Add(time.Minute), items[0].Time)
	assert.Equal(t, base.Add(-time.Minute), items[2].Time)
}

func TestTrailCleanUpTrimsOld(t *testing.T) {
	tr := NewTrail(30*time.Minute, 10*time.Minute)
	now := time.Now()
	tr.Add(item(now.Add(-40*time.Minute), 60.00, 10.75))
	tr.Add(item(now.Add(-35*time.Minute), 60.01, 10.75))
	tr.Add(item(now.Add(-5*time.Minute), 60.02, 10.75))

	assert.True(t, tr.CleanUp(now))
	assert.Equal(t, 1, tr.Len())
	assert.False(t, tr.ItemsExpired())
}

func TestTrailCleanUpPauseDropsAll(t *testing.T) {
	tr := NewTrail(30*time.Minute, 10*time.Minute)
	now := time.Now()
	tr.Add(item(now.Add(-25*time.Minute), 60.00, 10.75))
	tr.Add(item(now.Add(-15*time.Minute), 60.01, 10.75))

	// The newest item is older than maxPause: everything goes at once.
	assert.True(t, tr.CleanUp(now))
	assert.Equal(t, 0, tr.Len())
	assert.True(t, tr.ItemsExpired())

	// A new fix resets the expired state.
	tr.Add(item(now, 60.02, 10.75))
	assert.False(t, tr.ItemsExpired())
}

func TestTrailCleanUpNoop(t *testing.T) {
	tr := NewTrail(30*time.Minute, 10*time.Minute)
	now := time.Now()
	tr.Add(item(now.Add(-5*time.Minute), 60.00, 10.75))
	assert.False(t, tr.CleanUp(now))
	assert.Equal(t, 1, tr.Len())
}
