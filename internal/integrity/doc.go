// Package integrity records and verifies content provenance for a
// conversion process. The Ledger appends a validation record for every
// operation and persists its report on each append, so the on-disk
// report always reflects everything verified so far. Chain
// verification distinguishes failed checks from checks that could not
// be performed; the latter are excluded from the pass/fail verdict and
// surfaced separately.
package integrity
