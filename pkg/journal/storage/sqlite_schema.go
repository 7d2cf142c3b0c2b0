package storage

// SchemaVersion is the current database schema version.
const SchemaVersion = 1

// Schema contains the SQL statements to create the journal schema.
const Schema = `
CREATE TABLE IF NOT EXISTS journal (
    id TEXT PRIMARY KEY,
    recorded_time TIMESTAMP NOT NULL,
    event TEXT NOT NULL,
    args TEXT,
    verdict TEXT NOT NULL,
    mode TEXT,
    script TEXT
);

CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_journal_recorded_time ON journal(recorded_time);
CREATE INDEX IF NOT EXISTS idx_journal_event ON journal(event);
CREATE INDEX IF NOT EXISTS idx_journal_verdict ON journal(verdict);
`

// InsertSchemaVersion inserts the schema version.
const InsertSchemaVersion = `
INSERT INTO schema_version (version, applied_at)
VALUES (?, datetime('now'))
ON CONFLICT(version) DO NOTHING;
`

// GetSchemaVersion retrieves the current schema version.
const GetSchemaVersion = `
SELECT version FROM schema_version ORDER BY version DESC LIMIT 1;
`
