package integrity

import (
	"clipforge/internal/digest"
	"clipforge/internal/logging"
)

// ChainRecord is one link in a process hash chain. Stage, Timestamp
// and DataHash are required for the link to be eligible; PreviousHash
// and Data are optional and their checks are skipped when absent.
type ChainRecord struct {
	Stage        string  `json:"stage"`
	Timestamp    float64 `json:"timestamp"`
	DataHash     string  `json:"data_hash"`
	PreviousHash string  `json:"previous_hash,omitempty"`
	Data         any     `json:"data,omitempty"`
}

// ChainEntryResult reports the checks performed on one link.
type ChainEntryResult struct {
	Index     int     `json:"index"`
	Stage     string  `json:"stage,omitempty"`
	HashCheck Outcome `json:"hash_check"`
	PrevCheck Outcome `json:"prev_check"`
	Valid     bool    `json:"is_valid"`
	Error     string  `json:"error,omitempty"`
}

// ChainResult is the outcome of verifying a whole chain.
type ChainResult struct {
	Valid         bool               `json:"is_valid"`
	Length        int                `json:"chain_length"`
	NotApplicable int                `json:"not_applicable"`
	Results       []ChainEntryResult `json:"results"`
}

// VerifyChain validates a process hash chain. A link passes when every
// check that can run passes; checks without the data to run are
// reported not applicable and excluded from the verdict. A broken
// previous-hash reference at index i marks that link and any later
// link chained through it invalid, but leaves links before i intact.
// An empty chain is invalid.
func (l *Ledger) VerifyChain(records []ChainRecord) ChainResult {
	result := ChainResult{Length: len(records)}
	if len(records) == 0 {
		l.logger.Warn("empty process chain")
		l.record("process_chain", OutcomeFail, map[string]any{
			"is_valid":     false,
			"chain_length": 0,
		})
		return result
	}

	result.Valid = true
	previousHash := ""
	havePrevious := false
	broken := false

	for i, link := range records {
		entry := ChainEntryResult{Index: i, Stage: link.Stage}
		if link.Stage == "" || link.Timestamp == 0 || link.DataHash == "" {
			entry.Error = "missing required fields"
			entry.HashCheck = OutcomeNotApplicable
			entry.PrevCheck = OutcomeNotApplicable
			result.Valid = false
			result.Results = append(result.Results, entry)
			continue
		}

		if link.Data != nil {
			if digest.Data(link.Data) == link.DataHash {
				entry.HashCheck = OutcomePass
			} else {
				entry.HashCheck = OutcomeFail
				result.Valid = false
				l.logger.Warn("chain data hash mismatch", logging.Int("index", i), logging.String("stage", link.Stage))
			}
		} else {
			entry.HashCheck = OutcomeNotApplicable
		}

		if havePrevious && link.PreviousHash != "" {
			if link.PreviousHash == previousHash {
				entry.PrevCheck = OutcomePass
			} else {
				entry.PrevCheck = OutcomeFail
				result.Valid = false
				broken = true
				l.logger.Warn("chain broken", logging.Int("index", i), logging.String("stage", link.Stage))
			}
		} else {
			entry.PrevCheck = OutcomeNotApplicable
		}

		previousHash = link.DataHash
		havePrevious = true

		entry.Valid = !broken && entry.HashCheck != OutcomeFail && entry.PrevCheck != OutcomeFail
		if entry.HashCheck == OutcomeNotApplicable {
			result.NotApplicable++
		}
		if entry.PrevCheck == OutcomeNotApplicable {
			result.NotApplicable++
		}
		result.Results = append(result.Results, entry)
	}

	outcome := OutcomePass
	if !result.Valid {
		outcome = OutcomeFail
	}
	l.record("process_chain", outcome, map[string]any{
		"is_valid":       result.Valid,
		"chain_length":   result.Length,
		"not_applicable": result.NotApplicable,
		"results":        result.Results,
	})
	return result
}
