// Package core contains the consent gateway domain types, configuration,
// error taxonomy and the Service that drives token acquisition and the
// downstream consent operations. Transport and provider adapters depend on
// this package; core does not depend on them.
package core
