/*
Package monitor is an administrative monitor for a node in the Nuts network.

It serves a single-page web application whose hash navigation is resolved by a server-side route
table, and a JSON API aggregating the node's diagnostics, network topology and transaction statistics.
Transactions are counted from the node's history and, when configured, from its NATS transaction stream.

	cfg, err := config.Load(nil)
	if err != nil {
		log.Fatal(err)
	}
	m, err := monitor.New(cfg)
	if err != nil {
		log.Fatal(err)
	}
	if err := m.ListenAndServe(ctx); err != nil {
		log.Fatal(err)
	}
*/
package monitor
