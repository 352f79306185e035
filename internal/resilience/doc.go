// Package resilience wraps outbound calls to the CRM and mail composer with
// a circuit breaker, bounded retry with exponential backoff, and a
// per-caller-identity token bucket rate limiter for inbound control
// operations.
//
// All state here is process-local and guarded by locks, per the
// concurrency model: there is no Redis or other cross-process backing
// store for breaker state or rate-limit buckets.
package resilience
