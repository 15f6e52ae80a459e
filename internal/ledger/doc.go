// Package ledger holds the pure balance arithmetic of the application:
// reconciliation of stored balances with a transaction list, the
// create/edit/delete effects used for optimistic updates, and the
// aggregations behind the dashboard and charts.
//
// Nothing in this package performs I/O or mutates its inputs. Results are
// display-only projections; the backend balance stays authoritative.
package ledger
