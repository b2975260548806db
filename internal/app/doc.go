// Package app composes the treasury services into a running application.
//
// # Package Structure
//
//	internal/app/
//	├── application.go      # Application struct, wiring, and lifecycle
//	├── domain/             # Domain models (pure data structures)
//	│   ├── wallet/         # Shared wallets with members and threshold
//	│   └── proposal/       # Proposals, signatures, derived status
//	├── storage/            # Storage interfaces and implementations
//	│   ├── interfaces.go   # WalletStore and ProposalStore
//	│   ├── memory/         # In-memory implementation for testing
//	│   └── postgres/       # PostgreSQL implementation for production
//	├── services/           # Business logic
//	│   ├── wallets/        # Wallet registry
//	│   ├── proposals/      # Proposal lifecycle and quorum rules
//	│   ├── execution/      # Exactly-once execution coordinator
//	│   └── notifications/  # Read-side feeds and pending counts
//	├── httpapi/            # HTTP API handlers and routing
//	├── system/             # Lifecycle management
//	└── metrics/            # Prometheus collectors
//
// The app package wires services with their stores and lifecycle manager. It
// carries no business logic itself; quorum and execution rules live under
// internal/app/services/.
package app
