package db

var migrations = []string{
	migrationSubscribers,
	migrationLists,
	migrationMemberships,
	migrationKeywords,
	migrationBroadcasts,
	migrationMessages,
	migrationBroadcastTargets,
	migrationLinks,
	migrationLinkClicks,
	migrationAppConfig,
}

const migrationSubscribers = `
CREATE TABLE IF NOT EXISTS subscribers (
    id TEXT PRIMARY KEY,
    phone_number TEXT UNIQUE NOT NULL,
    is_active INTEGER NOT NULL DEFAULT 1,
    joined_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    last_read_at TIMESTAMP,
    joined_via_keyword TEXT,
    notifier_thread_ref TEXT
);
CREATE INDEX IF NOT EXISTS idx_subscribers_is_active ON subscribers(is_active);
CREATE INDEX IF NOT EXISTS idx_subscribers_joined_at ON subscribers(joined_at);
`

const migrationLists = `
CREATE TABLE IF NOT EXISTS subscriber_lists (
    id TEXT PRIMARY KEY,
    name TEXT UNIQUE NOT NULL,
    description TEXT,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

const migrationMemberships = `
CREATE TABLE IF NOT EXISTS list_memberships (
    subscriber_id TEXT NOT NULL REFERENCES subscribers(id) ON DELETE CASCADE,
    list_id TEXT NOT NULL REFERENCES subscriber_lists(id) ON DELETE CASCADE,
    joined_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    joined_via TEXT NOT NULL,
    PRIMARY KEY (subscriber_id, list_id)
);
CREATE INDEX IF NOT EXISTS idx_memberships_list_id ON list_memberships(list_id);
`

const migrationKeywords = `
CREATE TABLE IF NOT EXISTS signup_keywords (
    id TEXT PRIMARY KEY,
    keyword TEXT UNIQUE NOT NULL,
    auto_response TEXT NOT NULL,
    is_active INTEGER NOT NULL DEFAULT 1,
    list_id TEXT REFERENCES subscriber_lists(id),
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

const migrationMessages = `
CREATE TABLE IF NOT EXISTS messages (
    id TEXT PRIMARY KEY,
    phone_number TEXT NOT NULL,
    content TEXT NOT NULL,
    direction TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    broadcast_id TEXT REFERENCES broadcasts(id),
    provider_message_id TEXT UNIQUE,
    delivery_status TEXT NOT NULL DEFAULT 'PENDING'
);
CREATE INDEX IF NOT EXISTS idx_messages_phone_number ON messages(phone_number);
CREATE INDEX IF NOT EXISTS idx_messages_created_at ON messages(created_at);
CREATE INDEX IF NOT EXISTS idx_messages_broadcast_id ON messages(broadcast_id);
`

const migrationBroadcasts = `
CREATE TABLE IF NOT EXISTS broadcasts (
    id TEXT PRIMARY KEY,
    name TEXT,
    message TEXT NOT NULL,
    sent_count INTEGER NOT NULL DEFAULT 0,
    total_cost REAL NOT NULL DEFAULT 0,
    target_all INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

const migrationBroadcastTargets = `
CREATE TABLE IF NOT EXISTS broadcast_targets (
    broadcast_id TEXT NOT NULL REFERENCES broadcasts(id) ON DELETE CASCADE,
    list_id TEXT NOT NULL REFERENCES subscriber_lists(id) ON DELETE CASCADE,
    type TEXT NOT NULL,
    PRIMARY KEY (broadcast_id, list_id, type)
);
`

const migrationLinks = `
CREATE TABLE IF NOT EXISTS links (
    id TEXT PRIMARY KEY,
    broadcast_id TEXT NOT NULL REFERENCES broadcasts(id) ON DELETE CASCADE,
    original_url TEXT NOT NULL,
    short_code TEXT UNIQUE NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_links_broadcast_id ON links(broadcast_id);
`

const migrationLinkClicks = `
CREATE TABLE IF NOT EXISTS link_clicks (
    id TEXT PRIMARY KEY,
    link_id TEXT NOT NULL REFERENCES links(id) ON DELETE CASCADE,
    subscriber_id TEXT,
    clicked_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_link_clicks_link_id ON link_clicks(link_id);
`

const migrationAppConfig = `
CREATE TABLE IF NOT EXISTS app_config (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    default_welcome_message TEXT NOT NULL DEFAULT '',
    legacy_opt_in_keyword TEXT NOT NULL DEFAULT '',
    legacy_opt_in_response TEXT NOT NULL DEFAULT '',
    legacy_opt_out_response TEXT NOT NULL DEFAULT '',
    legacy_unknown_response TEXT NOT NULL DEFAULT ''
);
INSERT OR IGNORE INTO app_config (id, default_welcome_message, legacy_opt_in_response, legacy_opt_out_response, legacy_unknown_response)
VALUES (1, 'Welcome! You are now subscribed.', 'You are already subscribed.', 'You have been unsubscribed.', 'Text JOIN to subscribe.');
`
