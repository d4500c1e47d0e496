package store

// Schema contains the complete DDL for the session archive tables.
const Schema = `
-- Sessions: one row per recording session
CREATE TABLE IF NOT EXISTS sessions (
    id         TEXT PRIMARY KEY,
    task       TEXT NOT NULL DEFAULT '',
    started_at INTEGER NOT NULL,
    ended_at   INTEGER
);

-- Actions: the final retained log of a session, in log order
CREATE TABLE IF NOT EXISTS actions (
    session_id TEXT NOT NULL,
    position   INTEGER NOT NULL,
    seq        INTEGER NOT NULL,
    type       TEXT NOT NULL,
    page_id    TEXT NOT NULL DEFAULT '',
    target     TEXT NOT NULL DEFAULT '',
    value      TEXT NOT NULL DEFAULT '',
    mode       TEXT NOT NULL DEFAULT 'agent',
    timestamp  INTEGER NOT NULL,
    PRIMARY KEY (session_id, position),
    FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_actions_session ON actions(session_id, position);
`
