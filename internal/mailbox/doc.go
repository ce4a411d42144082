// Package mailbox provides the unbounded FIFO queue that backs every
// single-writer loop in flowrt: the standalone flow run loop and actor
// mailboxes.
//
// Producers may enqueue from any goroutine. Exactly one consumer drains the
// queue, either by polling TryDequeue or by waiting on Wait() between polls:
//
//	for {
//	    if item, ok := q.TryDequeue(); ok {
//	        handle(item)
//	        continue
//	    }
//	    select {
//	    case <-ctx.Done():
//	        return ctx.Err()
//	    case <-q.Wait():
//	    }
//	}
//
// The queue never blocks producers. Cascading work (an action that schedules
// more actions) can therefore enqueue arbitrarily many items without
// deadlocking the consumer that is currently running it.
package mailbox
