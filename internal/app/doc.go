// Package app provides the application composition layer for the
// calculator service.
//
// # Architecture Role
//
// The app package sits above the platform layer and composes domain
// services into a running application. It is NOT a business logic
// layer: calculator semantics live in internal/app/domain/calc and the
// services under internal/app/services/.
//
// # Package Structure
//
//	internal/app/
//	├── application.go      # Application struct, wiring, and lifecycle
//	├── domain/             # Domain models (pure data structures)
//	│   ├── calc/           # Accumulator state machine and events
//	│   ├── history/        # Completed calculation records
//	│   └── window/         # Window snapshots
//	├── storage/            # Storage interfaces and implementations
//	│   ├── interfaces.go   # WindowStore and HistoryStore
//	│   ├── memory/         # In-memory implementation for testing
//	│   ├── postgres/       # PostgreSQL implementation for production
//	│   └── redis/          # Redis snapshot store with native expiry
//	├── services/           # Business logic services
//	│   ├── calculator/     # Event application over window snapshots
//	│   ├── history/        # Record listings and retention sweeping
//	│   └── health/         # Liveness and resource reporting
//	├── httpapi/            # HTTP handlers, routing, and WebSocket
//	├── auth/               # Credential checking and JWT issuance
//	├── system/             # Lifecycle management
//	└── metrics/            # Prometheus collectors
//
// # Responsibilities
//
//   - Composing services with their storage dependencies
//   - Defining the storage interfaces services depend on
//   - Providing domain models shared across services
//   - Exposing the HTTP surface for external access
//   - Managing application-level concerns (auth, metrics, lifecycle)
//
// # Dependency Direction
//
//	cmd/calcd/
//	      │
//	      ▼
//	internal/app/runtime/ (config, process wiring)
//	      │
//	      ▼
//	internal/app/ (composition)
//	      │
//	      ├──► internal/app/services/ (business logic)
//	      │           │
//	      │           └──► internal/app/domain/ (pure models)
//	      │
//	      └──► internal/platform/ (database, migrations)
package app
