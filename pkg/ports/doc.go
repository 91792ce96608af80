/*
Package ports defines the driven and driving ports (interfaces) of the Playbook engine.

These interfaces decouple the orchestration logic from external implementations, allowing
the engine to work with various storage backends and catalog sources.

# Key Interfaces

  - ExecutionStore: Persists active execution snapshots and the history log.
  - CatalogLoader: Supplies protocol definitions at startup (built-in, file, Loam).
  - ProtocolEngine: The operations exposed to transports (MCP, HTTP, CLI).

RunExecutionStoreContract and RunCatalogLoaderContract are reusable suites that adapters
run from their own tests.
*/
package ports
