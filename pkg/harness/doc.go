// Package harness runs browser end-to-end tests against a live backend.
//
// A Suite brings up exactly one backend, as a local process or a container, and one headless
// browser. It waits until the backend is ready and tears both down after the tests, whatever
// their outcome. Use Main from TestMain:
//
//	var suite *harness.Suite
//
//	func TestMain(m *testing.M) {
//		suite = harness.NewSuite(harness.DefaultConfig())
//		os.Exit(harness.Main(m, suite))
//	}
package harness
