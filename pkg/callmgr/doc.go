/*
Package callmgr runs long, blocking calls (typically LLM requests) off the
interactive loop.

Submitted tasks go to an unbounded FIFO queue. A single consumer goroutine
dequeues them in submission order and hands each one to a worker pool capped
at MaxWorkers (default 5). Every task ends with exactly one event posted to
the sink given to New: call_complete with the result, or call_error with the
error text. Completion order is not submission order; correlate on InputID.

There is no cancellation. Shutdown stops accepting work, lets queued and
running tasks finish, then returns.
*/
package callmgr
