// Package pairing models the device-pairing (QR code) handshake.
//
// Machine is the single state machine of a process. It moves through
// unauthenticated -> awaiting-scan [-> awaiting-second-factor] -> authenticated,
// or to failed, from which a new handshake may begin. Observers subscribe to
// snapshots; the terminal renderer and the websocket stream are two of them.
package pairing
