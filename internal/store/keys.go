package store

import (
	"fmt"
	"net/url"
	"strings"

	"ciphersync/internal/domain"
)

// Keyspace prefixes. Every variable segment is path-escaped so '/' stays an
// unambiguous separator, and every prefix used for a scan ends in '/'.
const (
	nsInboxMessage    = "inbox/msg/"
	nsInboxAttachment = "inbox/att/"
	nsInboxChunk      = "inbox/chunk/"
	nsQuery           = "query/"
	nsWellKnown       = "wellknown/"
	nsPush            = "push/"
)

func seg(s string) string { return url.PathEscape(s) }

func key(parts ...string) []byte {
	return []byte(strings.Join(parts, ""))
}

func messagePrefix(owned domain.OwnedIdentity) []byte {
	return key(nsInboxMessage, seg(owned.String()), "/")
}

func messageKey(owned domain.OwnedIdentity, uid domain.MessageUID) []byte {
	return key(nsInboxMessage, seg(owned.String()), "/", seg(uid.String()))
}

func attachmentPrefix(owned domain.OwnedIdentity, uid domain.MessageUID) []byte {
	return key(nsInboxAttachment, seg(owned.String()), "/", seg(uid.String()), "/")
}

// Indexes and offsets are zero-padded so lexical key order is numeric order.
func attachmentKey(owned domain.OwnedIdentity, uid domain.MessageUID, index int) []byte {
	return key(string(attachmentPrefix(owned, uid)), fmt.Sprintf("%06d", index))
}

func chunkMessagePrefix(owned domain.OwnedIdentity, uid domain.MessageUID) []byte {
	return key(nsInboxChunk, seg(owned.String()), "/", seg(uid.String()), "/")
}

func chunkPrefix(owned domain.OwnedIdentity, uid domain.MessageUID, index int) []byte {
	return key(string(chunkMessagePrefix(owned, uid)), fmt.Sprintf("%06d/", index))
}

func chunkKey(owned domain.OwnedIdentity, uid domain.MessageUID, index int, offset int64) []byte {
	return key(string(chunkPrefix(owned, uid, index)), fmt.Sprintf("%020d", offset))
}

func chunkOffset(k []byte) (int64, error) {
	s := string(k)
	i := strings.LastIndexByte(s, '/')
	var off int64
	if _, err := fmt.Sscanf(s[i+1:], "%d", &off); err != nil {
		return 0, fmt.Errorf("chunk key %q: %w", s, err)
	}
	return off, nil
}

func queryKey(id domain.CorrelationID) []byte {
	return key(nsQuery, seg(id.String()))
}

func wellKnownKey(server domain.ServerURL) []byte {
	return key(nsWellKnown, seg(server.String()))
}

func pushKey(owned domain.OwnedIdentity) []byte {
	return key(nsPush, seg(owned.String()))
}
