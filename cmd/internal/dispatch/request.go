package dispatch

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"tggate/cmd/internal/gate"
	v1 "tggate/shared/contracts/gateway/v1"
)

// parseSendRequest validates req. Both fields are required and non-empty;
// a zero numeric chat counts as empty.
func parseSendRequest(req v1.SendRequest) (gate.Destination, string, bool) {
	dest, ok := parseDestination(req.Chat)
	if !ok {
		return gate.Destination{}, "", false
	}
	if req.Message == nil || *req.Message == "" {
		return gate.Destination{}, "", false
	}
	return dest, *req.Message, true
}

// parseDestination accepts a JSON string or integer.
// Strings holding a plain integer (e.g. "-100123") are treated as peer ids.
func parseDestination(raw json.RawMessage) (gate.Destination, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return gate.Destination{}, false
	}

	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return gate.Destination{}, false
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return gate.Destination{}, false
		}
		// "+1555..." is a phone number, not a signed id.
		if s[0] != '+' {
			if id, err := strconv.ParseInt(s, 10, 64); err == nil {
				return gate.Destination{ID: id}, id != 0
			}
		}
		return gate.Destination{Username: s}, true
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		id, err := strconv.ParseInt(string(raw), 10, 64)
		if err != nil || id == 0 {
			return gate.Destination{}, false
		}
		return gate.Destination{ID: id}, true
	default:
		// null, booleans, objects and arrays.
		return gate.Destination{}, false
	}
}
