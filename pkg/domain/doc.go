/*
Package domain contains the data model of the monitor.

It describes what the monitored Nuts node reports (diagnostics, health, peers, DID documents),
the aggregated views the monitor builds from it (network topology, transaction statistics)
and the payloads served to the browser. The package is free of I/O so adapters on both sides
(node client, HTTP API, stores) can share it.

# Key Entities

  - Diagnostics: the node's self-reported status, network and VDR figures.
  - NetworkTopology: peers as vertices plus undirected edges between them.
  - Transaction: the signer, signature time and content type of a network transaction.
  - DataPoint: one bucket of a sliding transaction window.
*/
package domain
