// Package ratelimit implements a sliding-window attempt limiter.
//
// A Limiter records one timestamp per allowed attempt under a caller-chosen
// key (typically an e-mail address) and refuses further attempts once the
// number of timestamps inside the trailing window reaches the budget.
// Refused attempts are not recorded. Pruning is lazy: stale timestamps are
// dropped on each check and there is no background sweeper.
//
// The ledger lives in a Store. MemoryStore keeps it in process, which is only
// correct for a single instance; RedisStore keeps it in a sorted set per key
// so several instances share one budget.
package ratelimit
