// Package providers groups the downstream consent provider clients and the
// test kit shared by their tests.
package providers
