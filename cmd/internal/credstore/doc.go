// Package credstore persists the single protocol session credential.
//
// A credential is an opaque string. Stores hold at most one value, return ""
// when nothing has been saved yet, and overwrite the value atomically on Save.
// FileStore is the default; PostgresStore and the Sealed wrapper are opt-in.
package credstore
