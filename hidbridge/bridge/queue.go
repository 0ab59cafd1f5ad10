package bridge

import (
	"sync"
	"time"

	"dio.wtf/hidbridge/hidbridge/log"
)

// pushWait is how long a push may hold the producer before the report is
// dropped. Drop newest, never stall the transfer path.
const pushWait = 100 * time.Millisecond

// queue hands snapshots from the producer to the single worker. Records
// come from a pool and ownership transfers on send; the worker gives them
// back with release.
type queue struct {
	ch   chan *Snapshot
	pool sync.Pool
}

func newQueue(size int) *queue {
	q := &queue{ch: make(chan *Snapshot, size)}
	q.pool.New = func() any { return new(Snapshot) }
	return q
}

// push copies the snapshot into a pooled record and enqueues it, waiting
// at most pushWait on a full queue before dropping the report.
func (q *queue) push(s *Snapshot) bool {
	rec := q.pool.Get().(*Snapshot)
	rec.copyFrom(s)

	select {
	case q.ch <- rec:
		return true
	default:
	}

	t := time.NewTimer(pushWait)
	defer t.Stop()
	select {
	case q.ch <- rec:
		return true
	case <-t.C:
		q.pool.Put(rec)
		log.WarnF("report queue full, dropping report id %d on interface %d", s.ReportID, s.Interface)
		return false
	}
}

// pop blocks until a record arrives, returning nil once the queue closes.
func (q *queue) pop() *Snapshot {
	rec, ok := <-q.ch
	if !ok {
		return nil
	}
	return rec
}

func (q *queue) release(s *Snapshot) {
	q.pool.Put(s)
}

func (q *queue) close() {
	close(q.ch)
}
