/*
Package ports defines the driven ports (interfaces) of the monitor.

These interfaces decouple the monitor's aggregation logic from the node it observes and from
the storage used to cache DID resolutions, so the same code runs against a live node, the
built-in mock node, an in-memory cache or a shared Redis instance.

# Key Interfaces

  - NodeClient: Reads health, diagnostics, peers, DID documents and transactions from a node.
  - DIDResolver: The part of NodeClient needed to walk DID controller chains.
  - MappingStore: Caches DID to root controller resolutions.
  - DistributedLocker: Coordinates work that only one monitor replica should do.
*/
package ports
