// Package network holds socket helpers for the API listener.
package network
