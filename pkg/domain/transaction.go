package domain

import "time"

// Transaction is the monitor's view on a network transaction.
// It is parsed from the JWS without verifying the signature.
type Transaction struct {
	// Signer is the DID of the key that signed the transaction.
	Signer      string
	SigTime     time.Time
	ContentType string
}

// DataPoint is one bucket of a sliding window.
type DataPoint struct {
	Timestamp time.Time
	Count     uint32
}

// TransactionDataPoint is a DataPoint as served to the browser.
type TransactionDataPoint struct {
	ContentType string `json:"content_type"`
	Timestamp   int    `json:"timestamp"`
	Label       string `json:"label"`
	Value       int    `json:"value"`
}

// NewTransactionDataPoint converts a window bucket for a content type.
func NewTransactionDataPoint(contentType string, dp DataPoint) TransactionDataPoint {
	return TransactionDataPoint{
		ContentType: contentType,
		Timestamp:   int(dp.Timestamp.Unix()),
		Label:       dp.Timestamp.Format(time.RFC3339),
		Value:       int(dp.Count),
	}
}

type AggregatedTransactions struct {
	Hourly  []TransactionDataPoint `json:"hourly"`
	Daily   []TransactionDataPoint `json:"daily"`
	Monthly []TransactionDataPoint `json:"monthly"`
}

type TransactionCounts struct {
	RootCount           int                   `json:"root_count"`
	TransactionsPerRoot []TransactionsPerRoot `json:"transactions_per_root"`
}

type TransactionsPerRoot struct {
	DID   string `json:"did"`
	Count int    `json:"count"`
}
