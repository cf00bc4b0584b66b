// Package strategy defines the backend selection contract and its two
// implementations:
//
//   - Round Robin: a cursor over the healthy list, advanced modulo its length
//   - Least Connections: the healthy backend with the fewest tracked
//     in-flight round trips, ties going to the earliest listed backend
//
// A strategy only ever sees the healthy subset pushed to it through
// UpdateServers. Strategies keep plain, unsynchronized state; callers must
// serialize access (see package loadbalancer).
package strategy
