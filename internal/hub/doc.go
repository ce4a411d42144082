// Package hub relays messages between connections.
//
// Every connection owns a ucast input. The inputs are merged on a single
// actor and the merged stream is rebroadcast through a multicaster, so each
// connection sees the messages of every other connection in the order the
// actor merged them. A connection never receives its own messages.
//
// Receivers pace themselves: a connection holds a fixed window of demand on
// the multicaster and every Receive hands one unit back. A message arriving
// while a connection's window is exhausted is skipped for that connection.
package hub
