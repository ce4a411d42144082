// Package actor provides a minimal actor host: a mailbox drained by a single
// goroutine, an optional message handler and a flow coordinator whose actions
// are mailbox tasks.
//
// Flows bound to Actor.Coordinator interleave with the actor's own messages
// and run on the actor's goroutine, so operator state needs no locks. When
// the actor terminates its coordinator is disposed: queued flow actions are
// dropped and every subscription attributed to it is disposed.
//
// Ask bridges request/response between coordinators with a flow.Promise.
package actor
