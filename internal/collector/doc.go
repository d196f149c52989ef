// Package collector drives Eufy collection cycles and schedules them.
//
// One cycle resolves the regional API origin, obtains a session, lists
// devices, optionally fetches fresh parameters per device, maps each
// device to a metric and hands it to every configured sink. The cycle's
// outcome goes to the sinks and the audit log.
//
// # Error Policy
//
//   - Network errors and timeouts abort the cycle without touching the session.
//   - Decrypt, peer-key, auth, malformed-envelope and token errors from an
//     authenticated call invalidate the session, then abort.
//   - Other API or protocol errors while fetching one device's parameters
//     skip that device; the cycle continues.
//   - Sink failures are logged and counted; they never abort a cycle.
//
// # Scheduling
//
// Scheduler runs cycles on a fixed interval from a single goroutine, so
// cycles never overlap. Manual triggers arriving while a cycle runs are
// coalesced into one follow-up cycle.
package collector
