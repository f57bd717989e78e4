// Package inboxsync drives one inbox synchronisation run for an owned
// identity: list the relay queue, ingest, download extended payloads and
// attachments, then mark and delete what is fully received.
//
// The server DELETE is issued only after the session that marked the message
// has committed, and the local record is removed in a follow-up session once
// the relay acknowledged it. Messages left marked by an interrupted run are
// picked up again at the start of the next one.
package inboxsync
