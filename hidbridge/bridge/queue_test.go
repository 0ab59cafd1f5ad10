package bridge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func snapshotWithID(id uint8) *Snapshot {
	s := &Snapshot{ReportID: id}
	s.Raw = s.rawBuf[:1]
	s.rawBuf[0] = id
	return s
}

func TestQueueFIFO(t *testing.T) {
	q := newQueue(4)
	for id := uint8(1); id <= 4; id++ {
		require.True(t, q.push(snapshotWithID(id)))
	}
	for id := uint8(1); id <= 4; id++ {
		rec := q.pop()
		require.NotNil(t, rec)
		assert.Equal(t, id, rec.ReportID)
		assert.Equal(t, []byte{id}, rec.Raw)
		q.release(rec)
	}
}

func TestQueuePushCopies(t *testing.T) {
	q := newQueue(2)
	src := snapshotWithID(7)
	require.True(t, q.push(src))

	// Mutating the producer's snapshot must not touch the queued record.
	src.ReportID = 9
	src.rawBuf[0] = 9

	rec := q.pop()
	require.NotNil(t, rec)
	assert.Equal(t, uint8(7), rec.ReportID)
	assert.Equal(t, []byte{7}, rec.Raw)
}

func TestQueueDropsNewestWhenFull(t *testing.T) {
	q := newQueue(1)
	require.True(t, q.push(snapshotWithID(1)))

	// Nobody pops, so the second push waits out pushWait and gives up.
	assert.False(t, q.push(snapshotWithID(2)))

	rec := q.pop()
	require.NotNil(t, rec)
	assert.Equal(t, uint8(1), rec.ReportID)
}

func TestQueuePopAfterClose(t *testing.T) {
	q := newQueue(2)
	require.True(t, q.push(snapshotWithID(3)))
	q.close()

	// Buffered records drain before the nil sentinel.
	rec := q.pop()
	require.NotNil(t, rec)
	assert.Equal(t, uint8(3), rec.ReportID)
	assert.Nil(t, q.pop())
}
