// Package bench measures the cost of the cryptographic operations inkseal
// performs on every command.
//
// Each operation is timed several times and observed into a Prometheus
// summary held in a private registry. The report is built by gathering that
// registry, so the same numbers could be exposed by any Prometheus exporter.
//
// Run works in a temporary directory with a throwaway identity and an
// in-memory revocation registry. Nothing under the user's data directory is
// touched.
package bench
