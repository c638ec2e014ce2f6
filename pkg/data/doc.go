// Package data turns network transactions into the statistics shown by the monitor:
// sliding windows of transaction counts per content type, and transaction counts per root DID.
package data
