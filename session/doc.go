// Package session provides aggregate accounting over sequences of
// executions.
//
// A session groups the executions of one logical interaction (for example
// a learner's run of consecutive submissions) and accumulates counts and
// wall-time totals. Execution itself never requires a session; callers opt
// in. Multiple executions belonging to one session may be in flight
// concurrently; their results are applied to the aggregate under a
// single-writer mutex, in completion order, not submission order.
package session
