// Package session implements the fetch session: the transactional unit of
// work that binds one store transaction to a fixed set of listeners.
//
// Components mutate state through Session.Txn and buffer notifications with
// Session.Enqueue. Close commits; only after a successful commit are the
// buffered events delivered, in enqueue order, to the registered listeners.
// A failed commit rolls back and drops the buffer, so listeners never observe
// state that was not persisted.
package session
