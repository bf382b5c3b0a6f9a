// Package sqlite provides the persistent index store and document registry.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO, enabling easy cross-compilation. A single database file holds:
//
//   - documents: the content-hash registry (driven.DocumentRegistry)
//   - units: text and image units with their embeddings, one row per unit,
//     partitioned by collection name (driven.VectorCollection)
//   - collections: the learned embedding dimension of each collection
//
// # Search
//
// Each collection keeps its vectors in memory after the first access and
// ranks them by brute-force cosine distance. Writes go to SQLite first and
// then update the cache, so the cache never holds rows the database lacks.
//
// # Schema
//
// The database schema is managed through versioned migrations stored in the
// migrations/ directory. Each migration is a pair of .up.sql and .down.sql files.
//
// # Data Location
//
// By default, the database is stored at ~/.ribo/index/index.db
//
// # Thread Safety
//
// All operations are thread-safe. The store uses database-level locking provided
// by SQLite in WAL mode, and each collection guards its cache with a RWMutex.
package sqlite
