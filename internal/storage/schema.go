package storage

const schema = `
-- The 'kv' table holds one serialized document per key. Keys are namespaced
-- by profile, e.g. 'curio-fact-progress:<profile id>'.
CREATE TABLE IF NOT EXISTS kv (
    key TEXT PRIMARY KEY,
    value BLOB NOT NULL,
    updated_at DATETIME NOT NULL
);
`
