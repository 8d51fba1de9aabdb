package payload

// entry is a single write queue node: a reference to a shared Block plus
// this queue's own read offset into it, mirroring the original's
// co_buffer{data, data_offset, next}.
type entry struct {
	block  *Block
	offset int
	next   *entry
}

// WriteQueue is a per-connection FIFO of pending outbound data. It is
// owned exclusively by its Task and the Controller turn that drains it;
// both only ever run with the single-goroutine-at-a-time guarantee the
// scheduler provides, so WriteQueue needs no internal locking.
type WriteQueue struct {
	head, tail *entry
}

// Enqueue retains block and appends it to the back of the queue.
func (q *WriteQueue) Enqueue(block *Block) {
	block.Retain()
	e := &entry{block: block}
	if q.tail == nil {
		q.head, q.tail = e, e
		return
	}
	q.tail.next = e
	q.tail = e
}

// Empty reports whether the queue has no pending data.
func (q *WriteQueue) Empty() bool { return q.head == nil }

// Pending returns the unwritten bytes of the front entry, or nil if the
// queue is empty.
func (q *WriteQueue) Pending() []byte {
	if q.head == nil {
		return nil
	}
	data := q.head.block.Bytes()
	return data[q.head.offset:]
}

// Advance records that n bytes of the front entry were successfully
// written. Once an entry is fully written it is popped and its Block
// reference released.
func (q *WriteQueue) Advance(n int) {
	if q.head == nil || n <= 0 {
		return
	}
	q.head.offset += n
	if q.head.offset >= q.head.block.Len() {
		front := q.head
		q.head = front.next
		if q.head == nil {
			q.tail = nil
		}
		front.block.Release()
	}
}

// Drain releases every remaining entry's Block reference without
// writing it, used when a Task is torn down with unsent data still
// queued.
func (q *WriteQueue) Drain() {
	for e := q.head; e != nil; {
		next := e.next
		e.block.Release()
		e = next
	}
	q.head, q.tail = nil, nil
}
