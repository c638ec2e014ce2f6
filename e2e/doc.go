// Package e2e drives the monitor in a real browser.
//
// The tests only build with the e2e tag:
//
//	go build -o nuts-monitor ./cmd/nuts-monitor
//	PATH=$PWD:$PATH go test -tags e2e ./e2e/...
//
// E2E_* variables select another backend, see harness.Config.ApplyEnv. A harness.yaml next to the
// tests, or the file named by E2E_CONFIG, is read before the environment.
package e2e
