package store

// SQL schema constants for all PromptVault tables.

const schemaAccounts = `
CREATE TABLE IF NOT EXISTS accounts (
    id TEXT PRIMARY KEY,
    email TEXT NOT NULL UNIQUE,
    created_at TEXT NOT NULL
);
`

const schemaCategories = `
CREATE TABLE IF NOT EXISTS categories (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL UNIQUE,
    description TEXT NOT NULL DEFAULT '',
    icon TEXT NOT NULL DEFAULT '',
    color TEXT NOT NULL DEFAULT '',
    parent_id TEXT REFERENCES categories(id) ON DELETE SET NULL,
    created_at TEXT NOT NULL
);
`

const schemaPrompts = `
CREATE TABLE IF NOT EXISTS prompts (
    id TEXT PRIMARY KEY,
    account_id TEXT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
    title TEXT NOT NULL,
    content TEXT NOT NULL,
    source TEXT NOT NULL CHECK (source IN ('chatgpt','gemini','claude','nano_banana','cursor','other')),
    category_id TEXT REFERENCES categories(id) ON DELETE SET NULL,
    effectiveness_score INTEGER CHECK (effectiveness_score BETWEEN 1 AND 10),
    use_count INTEGER NOT NULL DEFAULT 0 CHECK (use_count >= 0),
    is_favorite INTEGER NOT NULL DEFAULT 0,
    current_version INTEGER NOT NULL DEFAULT 1 CHECK (current_version >= 1),
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_prompts_account ON prompts(account_id);
CREATE INDEX IF NOT EXISTS idx_prompts_updated ON prompts(updated_at);
CREATE INDEX IF NOT EXISTS idx_prompts_category ON prompts(category_id);
`

const schemaPromptVersions = `
CREATE TABLE IF NOT EXISTS prompt_versions (
    id TEXT PRIMARY KEY,
    prompt_id TEXT NOT NULL REFERENCES prompts(id) ON DELETE CASCADE,
    version_number INTEGER NOT NULL,
    content TEXT NOT NULL,
    change_notes TEXT,
    effectiveness_score INTEGER CHECK (effectiveness_score BETWEEN 1 AND 10),
    created_at TEXT NOT NULL,
    UNIQUE (prompt_id, version_number)
);
CREATE INDEX IF NOT EXISTS idx_versions_prompt ON prompt_versions(prompt_id);
`

const schemaTags = `
CREATE TABLE IF NOT EXISTS tags (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL UNIQUE,
    color TEXT NOT NULL DEFAULT '#6366f1',
    is_auto_generated INTEGER NOT NULL DEFAULT 0,
    created_at TEXT NOT NULL
);
`

const schemaPromptTags = `
CREATE TABLE IF NOT EXISTS prompt_tags (
    prompt_id TEXT NOT NULL REFERENCES prompts(id) ON DELETE CASCADE,
    tag_id TEXT NOT NULL REFERENCES tags(id) ON DELETE CASCADE,
    PRIMARY KEY (prompt_id, tag_id)
);
`

const schemaSubscriptions = `
CREATE TABLE IF NOT EXISTS subscriptions (
    id TEXT PRIMARY KEY,
    account_id TEXT NOT NULL UNIQUE REFERENCES accounts(id) ON DELETE CASCADE,
    plan_type TEXT NOT NULL DEFAULT 'free' CHECK (plan_type IN ('free','pro','lifetime')),
    status TEXT NOT NULL DEFAULT 'active',
    processor TEXT NOT NULL DEFAULT '',
    processor_customer_id TEXT NOT NULL DEFAULT '',
    processor_subscription_id TEXT NOT NULL DEFAULT '',
    current_period_start TEXT,
    current_period_end TEXT,
    cancel_at_period_end INTEGER NOT NULL DEFAULT 0,
    ai_analyses_used INTEGER NOT NULL DEFAULT 0,
    ai_analyses_limit INTEGER NOT NULL DEFAULT 10,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_subscriptions_customer ON subscriptions(processor_customer_id);
`

const schemaAnalysisCache = `
CREATE TABLE IF NOT EXISTS analysis_cache (
    key TEXT PRIMARY KEY,
    body BLOB NOT NULL,
    model TEXT NOT NULL,
    created_at TEXT NOT NULL,
    expires_at TEXT NOT NULL,
    hit_count INTEGER NOT NULL DEFAULT 0,
    last_hit TEXT
);
CREATE INDEX IF NOT EXISTS idx_analysis_cache_expires ON analysis_cache(expires_at);
`

const schemaAnalysisLog = `
CREATE TABLE IF NOT EXISTS analysis_log (
    id TEXT PRIMARY KEY,
    timestamp TEXT NOT NULL,
    account_id TEXT NOT NULL DEFAULT '',
    model TEXT NOT NULL DEFAULT '',
    source TEXT NOT NULL DEFAULT '',
    tokens_in INTEGER NOT NULL DEFAULT 0,
    tokens_out INTEGER NOT NULL DEFAULT 0,
    cost_usd REAL NOT NULL DEFAULT 0.0,
    latency_ms INTEGER NOT NULL DEFAULT 0,
    ai_powered INTEGER NOT NULL DEFAULT 0,
    error_message TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_analysis_log_timestamp ON analysis_log(timestamp);
`

const schemaMigrations = `
CREATE TABLE IF NOT EXISTS migrations (
    version INTEGER PRIMARY KEY,
    applied_at TEXT NOT NULL
);
`

// allSchemas is the ordered list of schema DDL statements that form
// the initial (version-1) database layout. Parent tables come first so
// foreign key references resolve.
var allSchemas = []string{
	schemaAccounts,
	schemaCategories,
	schemaPrompts,
	schemaPromptVersions,
	schemaTags,
	schemaPromptTags,
	schemaSubscriptions,
	schemaAnalysisCache,
	schemaAnalysisLog,
	schemaMigrations,
}
