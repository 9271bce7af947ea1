// Package polling drives periodic status queries against the contract
// service in place of push notifications. A Poller owns at most one live
// loop: Start while live is a no-op, Stop is idempotent, and the loop is
// marked stopped before any terminal or retry hook runs so a handler never
// races a subsequent tick.
package polling
