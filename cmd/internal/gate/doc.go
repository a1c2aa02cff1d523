// Package gate owns the process-wide authenticated protocol client.
//
// Gate.Acquire returns a connected, authorized Client. The first acquisition
// loads nothing itself (the credential is read once in New), connects, checks
// authorization, runs the pairing handshake when needed and persists the
// exported credential. Concurrent acquisitions share one in-flight attempt;
// once a client is cached it is returned without further checks.
package gate
