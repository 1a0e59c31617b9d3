// Package loader writes in-memory datasets into PostgreSQL tables.
//
// A load runs inside one transaction on the caller's connection: the
// destination is looked up in the session's current schema, dropped or created
// as the load mode requires, and filled with multi-row INSERT statements.
// Column types of created tables are inferred from the dataset's values.
package loader
