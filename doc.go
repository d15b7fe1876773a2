// An adaptive concurrency throttle for coordinating calls against rate-limited APIs.
//
// Features:
//
// - Bounds the number of in-flight calls and enforces a jittered minimum spacing between dispatches
//
// - Decelerates (halved concurrency, doubled spacing) when rate-limit failures cluster inside a sliding window
//
// - Reaccelerates gradually after a failure-free cooling period, never past the last known safe concurrency ceiling
//
// - Submitter helper with per-call exponential backoff, honoring provider retry-after hints
//
// - Composite throttles to gate a single call through multiple independent budgets
//
// - Progress snapshots with ETA estimation and pluggable progress observers
//
// - Thread safe
//
package gentlify
