// Package telegram adapts the gotd MTProto client to the gate.Client
// interface: QR pairing with a password fallback, session export as a
// base64url string, and text delivery by username, phone or numeric id.
package telegram
