package testing

// Schema creates the tables the data-access layer works on.
const Schema = `
CREATE TABLE users (
    id          BIGSERIAL PRIMARY KEY,
    username    TEXT NOT NULL UNIQUE,
    role        TEXT NOT NULL DEFAULT 'player',
    total_score BIGINT NOT NULL DEFAULT 0
);

CREATE TABLE lists (
    id                BIGSERIAL PRIMARY KEY,
    user_id           BIGINT NOT NULL REFERENCES users (id) ON DELETE CASCADE,
    name              TEXT NOT NULL,
    age               INTEGER,
    is_dead           BOOLEAN NOT NULL DEFAULT FALSE,
    bonus_points      INTEGER NOT NULL DEFAULT 0,
    calculated_points INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX lists_user_id_idx ON lists (user_id);

CREATE TABLE config (
    id           BIGSERIAL PRIMARY KEY,
    config_key   TEXT NOT NULL UNIQUE,
    config_value TEXT NOT NULL
);
`
