// Package voting records one vote per (voter, target) and derives scores.
//
// The ledger is the votes table; only Service writes it. Scores are always
// recomputed from the ledger by Aggregator and are never stored, so they
// cannot drift from it. Concurrent votes by one voter on one target are
// serialised by the table's unique index: exactly one direction persists,
// the last to commit.
package voting
