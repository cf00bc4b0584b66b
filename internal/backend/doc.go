// Package backend models a single upstream application server: its name,
// base URL, health flag and the number of proxy round trips currently in
// flight against it.
package backend
