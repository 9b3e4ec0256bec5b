// Package policy validates execution requests against the
// administrator-configured security policy before any code runs.
//
// The policy package implements a pure validation gate: language
// allow-list, code-size ceiling, a lexical scan for blocked imports and
// function calls, and per-caller rate limits. Checks run in that order and
// short-circuit on the first failure. The validator mutates nothing on
// either outcome; a rejected request never reaches the executor and is
// never counted toward rate limits.
//
// Rate accounting is split into a read side (RateCounterView, consumed by
// Validate) and a write side (RateRecorder, invoked by the orchestrating
// layer once a request is actually attempted). An in-memory sliding-window
// counter and a redis-backed fixed-window counter are provided.
package policy
