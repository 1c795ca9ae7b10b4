// Package mock provides an in-memory stand-in for a Till server. It backs
// till clients in mock runtime mode and the till-sandbox command.
package mock
