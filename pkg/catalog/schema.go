package catalog

// Schema contains the SQL statements to create the catalog database schema.
const Schema = `
-- Channels: named deployment targets addressed by an opaque key.
-- Channels are soft-deleted, never physically removed, while updates
-- reference them.
CREATE TABLE IF NOT EXISTS channels (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    project         TEXT NOT NULL,
    name            TEXT NOT NULL,
    key             TEXT UNIQUE NOT NULL,
    public_key_pem  TEXT NOT NULL DEFAULT '',
    private_key_pem TEXT NOT NULL DEFAULT '',
    is_enabled      BOOLEAN NOT NULL DEFAULT TRUE,
    is_deleted      BOOLEAN NOT NULL DEFAULT FALSE,
    created_at      DATETIME DEFAULT CURRENT_TIMESTAMP,
    updated_at      DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- Updates: published bundle revisions per channel and runtime version.
CREATE TABLE IF NOT EXISTS updates (
    id                 TEXT PRIMARY KEY,
    channel_id         INTEGER NOT NULL,
    runtime_version    TEXT NOT NULL,
    is_enabled         BOOLEAN NOT NULL DEFAULT TRUE,
    rollout_percentage INTEGER NOT NULL DEFAULT 100,
    metadata           TEXT,
    download_count     INTEGER NOT NULL DEFAULT 0,
    install_count      INTEGER NOT NULL DEFAULT 0,
    created_at         DATETIME DEFAULT CURRENT_TIMESTAMP,
    FOREIGN KEY (channel_id) REFERENCES channels(id)
);

-- Assets: content-addressed blobs, unique by digest.
CREATE TABLE IF NOT EXISTS assets (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    hash         TEXT UNIQUE NOT NULL,
    size         INTEGER NOT NULL,
    content_type TEXT NOT NULL DEFAULT '',
    created_at   DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- Update assets: join carrying the asset's role within an update.
CREATE TABLE IF NOT EXISTS update_assets (
    id        INTEGER PRIMARY KEY AUTOINCREMENT,
    update_id TEXT NOT NULL,
    asset_id  INTEGER NOT NULL,
    platform  TEXT NOT NULL DEFAULT '',
    is_launch BOOLEAN NOT NULL DEFAULT FALSE,
    file_name TEXT NOT NULL DEFAULT '',
    FOREIGN KEY (update_id) REFERENCES updates(id) ON DELETE CASCADE,
    FOREIGN KEY (asset_id) REFERENCES assets(id)
);

-- Rollout rules: priority-ordered eligibility predicates per update.
CREATE TABLE IF NOT EXISTS rollout_rules (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    update_id  TEXT NOT NULL,
    type       TEXT NOT NULL,
    value      TEXT NOT NULL,
    priority   INTEGER NOT NULL DEFAULT 0,
    is_enabled BOOLEAN NOT NULL DEFAULT TRUE,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    FOREIGN KEY (update_id) REFERENCES updates(id) ON DELETE CASCADE
);

-- Directives: channel/runtime-scoped override instructions.
CREATE TABLE IF NOT EXISTS directives (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    channel_id      INTEGER NOT NULL,
    runtime_version TEXT NOT NULL,
    type            TEXT NOT NULL,
    parameters      TEXT,
    extra           TEXT,
    is_active       BOOLEAN NOT NULL DEFAULT TRUE,
    expires_at      DATETIME,
    created_at      DATETIME DEFAULT CURRENT_TIMESTAMP,
    FOREIGN KEY (channel_id) REFERENCES channels(id)
);

-- Indexes for the resolution hot path
CREATE INDEX IF NOT EXISTS idx_channels_key ON channels(key);
CREATE INDEX IF NOT EXISTS idx_updates_scope ON updates(channel_id, runtime_version, is_enabled);
CREATE INDEX IF NOT EXISTS idx_assets_hash ON assets(hash);
CREATE INDEX IF NOT EXISTS idx_update_assets_update ON update_assets(update_id);
CREATE INDEX IF NOT EXISTS idx_rules_update ON rollout_rules(update_id, is_enabled);
CREATE INDEX IF NOT EXISTS idx_directives_scope ON directives(channel_id, runtime_version, is_active);
`
