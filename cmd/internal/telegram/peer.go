package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gotd/td/telegram/query"
	"github.com/gotd/td/tg"
)

// channelIDOffset is the bot API convention for supergroup and channel ids
// (-100xxxxxxxxxx).
const channelIDOffset int64 = 1_000_000_000_000

// ErrPeerNotFound is returned when a numeric id is not among the account's dialogs.
var ErrPeerNotFound = errors.New("peer not found in dialogs")

// peerID maps a peer to its bot API style id.
func peerID(p tg.PeerClass) (int64, bool) {
	switch p := p.(type) {
	case *tg.PeerUser:
		return p.UserID, true
	case *tg.PeerChat:
		return -p.ChatID, true
	case *tg.PeerChannel:
		return -channelIDOffset - p.ChannelID, true
	default:
		return 0, false
	}
}

// isSelf reports whether username addresses the account's own saved messages.
func isSelf(username string) bool {
	switch strings.ToLower(strings.TrimPrefix(username, "@")) {
	case "me", "self":
		return true
	}
	return false
}

// resolveID walks the dialog list looking for id. Access hashes are only
// known for peers the account has seen, so unknown ids fail.
func resolveID(ctx context.Context, api *tg.Client, id int64) (tg.InputPeerClass, error) {
	iter := query.GetDialogs(api).Iter()
	for iter.Next(ctx) {
		elem := iter.Value()
		if got, ok := peerID(elem.Dialog.GetPeer()); ok && got == id {
			return elem.Peer, nil
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("iterate dialogs: %w", err)
	}
	return nil, fmt.Errorf("%w: %d", ErrPeerNotFound, id)
}
