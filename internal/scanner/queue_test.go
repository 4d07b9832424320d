package scanner

import (
	"errors"
	"sync"
	"testing"

	"github.com/sift-inventory/sift/internal/protocol"
)

func TestUpsertQueue_PushLen(t *testing.T) {
	var q upsertQueue
	if q.len() != 0 {
		t.Fatalf("len() = %d, want 0", q.len())
	}
	q.push(protocol.FileRecord{Path: "/a"})
	q.push(protocol.FileRecord{Path: "/b"})
	if got := q.len(); got != 2 {
		t.Fatalf("len() = %d, want 2", got)
	}
}

func TestUpsertQueue_TryFlush_Success(t *testing.T) {
	var q upsertQueue
	q.push(protocol.FileRecord{Path: "/a"})
	q.push(protocol.FileRecord{Path: "/b"})

	var sent []protocol.FileRecord
	ok := q.tryFlush(func(batch []protocol.FileRecord) error {
		sent = batch
		return nil
	})
	if !ok {
		t.Fatal("tryFlush returned false, want true")
	}
	if len(sent) != 2 {
		t.Fatalf("sent %d records, want 2", len(sent))
	}
	if q.len() != 0 {
		t.Fatalf("queue not drained, len() = %d", q.len())
	}
}

func TestUpsertQueue_TryFlush_RestoresOnSendError(t *testing.T) {
	var q upsertQueue
	q.push(protocol.FileRecord{Path: "/a"})

	ok := q.tryFlush(func(batch []protocol.FileRecord) error {
		return errors.New("server down")
	})
	if ok {
		t.Fatal("tryFlush returned true, want false on send error")
	}
	if got := q.len(); got != 1 {
		t.Fatalf("record was not restored: len() = %d, want 1", got)
	}
}

func TestUpsertQueue_TryFlush_EmptyQueueSucceeds(t *testing.T) {
	var q upsertQueue
	called := false
	ok := q.tryFlush(func(batch []protocol.FileRecord) error {
		called = true
		return nil
	})
	if !ok {
		t.Fatal("tryFlush on empty queue returned false, want true")
	}
	if called {
		t.Error("send should not be called for an empty queue")
	}
}

func TestUpsertQueue_TryFlush_ContentionRestoresToHead(t *testing.T) {
	var q upsertQueue
	q.push(protocol.FileRecord{Path: "/old"})

	q.flushMu.Lock()
	ok := q.tryFlush(func(batch []protocol.FileRecord) error {
		t.Fatal("send should not run while flushMu is already held")
		return nil
	})
	q.flushMu.Unlock()

	if ok {
		t.Fatal("tryFlush returned true while flushMu was held, want false")
	}
	if got := q.len(); got != 1 {
		t.Fatalf("contended tryFlush must not drain the queue, len() = %d", got)
	}

	q.push(protocol.FileRecord{Path: "/new"})
	var sent []protocol.FileRecord
	if !q.tryFlush(func(batch []protocol.FileRecord) error {
		sent = batch
		return nil
	}) {
		t.Fatal("tryFlush after contention released returned false")
	}
	if len(sent) != 2 || sent[0].Path != "/old" || sent[1].Path != "/new" {
		t.Fatalf("sent = %+v, want [/old /new] in order", sent)
	}
}

func TestUpsertQueue_ForceFlush_RestoresOnError(t *testing.T) {
	var q upsertQueue
	q.push(protocol.FileRecord{Path: "/a"})

	err := q.forceFlush(func(batch []protocol.FileRecord) error {
		return errors.New("boom")
	})
	if err == nil {
		t.Fatal("forceFlush returned nil error, want the send error")
	}
	if got := q.len(); got != 1 {
		t.Fatalf("record was not restored: len() = %d, want 1", got)
	}
}

func TestUpsertQueue_ConcurrentPush(t *testing.T) {
	var q upsertQueue
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			q.push(protocol.FileRecord{Path: "/x"})
		}(i)
	}
	wg.Wait()
	if got := q.len(); got != 100 {
		t.Fatalf("len() = %d, want 100", got)
	}
}

func TestSeenQueue_TryFlush_RestoresOnSendError(t *testing.T) {
	var q seenQueue
	q.push(protocol.SeenPath{Path: "/a"})

	ok := q.tryFlush(func(batch []protocol.SeenPath) error {
		return errors.New("server down")
	})
	if ok {
		t.Fatal("tryFlush returned true, want false on send error")
	}
	if got := q.len(); got != 1 {
		t.Fatalf("record was not restored: len() = %d, want 1", got)
	}
}

func TestSeenQueue_ForceFlush_DrainsAll(t *testing.T) {
	var q seenQueue
	q.push(protocol.SeenPath{Path: "/a"})
	q.push(protocol.SeenPath{Path: "/b"})
	q.push(protocol.SeenPath{Path: "/c"})

	var sent []protocol.SeenPath
	if err := q.forceFlush(func(batch []protocol.SeenPath) error {
		sent = batch
		return nil
	}); err != nil {
		t.Fatalf("forceFlush: %v", err)
	}
	if len(sent) != 3 {
		t.Fatalf("sent %d paths, want 3", len(sent))
	}
	if q.len() != 0 {
		t.Fatalf("queue not drained, len() = %d", q.len())
	}
}

func TestUpsertQueue_DrainPartial(t *testing.T) {
	var q upsertQueue
	q.push(protocol.FileRecord{Path: "/a"})
	q.push(protocol.FileRecord{Path: "/b"})
	q.push(protocol.FileRecord{Path: "/c"})

	batch := q.drain(2)
	if len(batch) != 2 {
		t.Fatalf("drain(2) returned %d records, want 2", len(batch))
	}
	if q.len() != 1 {
		t.Fatalf("remaining len() = %d, want 1", q.len())
	}

	q.restore(batch)
	if q.len() != 3 {
		t.Fatalf("after restore len() = %d, want 3", q.len())
	}
	if q.records[0].Path != "/a" || q.records[1].Path != "/b" {
		t.Fatalf("restore did not put the batch back at the head: %+v", q.records)
	}
}
