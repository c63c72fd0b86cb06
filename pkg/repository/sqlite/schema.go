package sqlite

const baseSchema = `
CREATE TABLE IF NOT EXISTS meta (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS notes (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    uuid TEXT UNIQUE NOT NULL,
    account_key INTEGER NOT NULL,
    account TEXT NOT NULL DEFAULT '',
    folder_key INTEGER NOT NULL,
    folder TEXT NOT NULL DEFAULT '',
    note_id INTEGER NOT NULL DEFAULT 0,
    primary_key INTEGER NOT NULL DEFAULT 0,
    creation_time TEXT NOT NULL,
    modify_time TEXT NOT NULL,
    cloudkit_creator_id TEXT NOT NULL DEFAULT '',
    cloudkit_modifier_id TEXT NOT NULL DEFAULT '',
    cloudkit_last_modified_device TEXT NOT NULL DEFAULT '',
    is_pinned INTEGER NOT NULL DEFAULT 0,
    is_password_protected INTEGER NOT NULL DEFAULT 0,
    title TEXT NOT NULL DEFAULT '',
    plaintext TEXT NOT NULL DEFAULT '',
    html TEXT NOT NULL DEFAULT '',
    embedded_objects TEXT NOT NULL DEFAULT '[]',
    hashtags TEXT NOT NULL DEFAULT '',
    mentions TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_notes_modify_time ON notes(modify_time);
`

const noteColumns = `id, uuid, account_key, account, folder_key, folder, note_id, primary_key,
    creation_time, modify_time, cloudkit_creator_id, cloudkit_modifier_id, cloudkit_last_modified_device,
    is_pinned, is_password_protected, title, plaintext, html, embedded_objects, hashtags, mentions`
