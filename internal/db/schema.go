package db

// SchemaSQL contains the database schema initialization SQL.
const SchemaSQL = `
    -- ==========================================================================
    -- MEMORY TABLE
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS memory SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS content ON memory TYPE string;
    DEFINE FIELD IF NOT EXISTS embedding ON memory TYPE option<array<float>>;
    DEFINE FIELD IF NOT EXISTS importance ON memory TYPE float DEFAULT 0.5;
    DEFINE FIELD IF NOT EXISTS tags ON memory TYPE array<string> DEFAULT [];
    DEFINE FIELD IF NOT EXISTS metadata ON memory TYPE option<object> FLEXIBLE;
    DEFINE FIELD IF NOT EXISTS active ON memory TYPE bool DEFAULT true;
    DEFINE FIELD IF NOT EXISTS created_at ON memory TYPE datetime DEFAULT time::now();
    DEFINE FIELD IF NOT EXISTS updated_at ON memory TYPE datetime DEFAULT time::now();

    DEFINE INDEX IF NOT EXISTS memory_active ON memory FIELDS active;
    DEFINE INDEX IF NOT EXISTS memory_tags ON memory FIELDS tags;

    -- ==========================================================================
    -- SIMILARITY_SCORE TABLE (persisted score cache)
    -- ==========================================================================
    -- One row per (method, unordered pair). memory_a < memory_b is enforced by
    -- the writer; the unique index keeps recomputations from duplicating rows.
    DEFINE TABLE IF NOT EXISTS similarity_score SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS memory_a ON similarity_score TYPE string;
    DEFINE FIELD IF NOT EXISTS memory_b ON similarity_score TYPE string;
    DEFINE FIELD IF NOT EXISTS method ON similarity_score TYPE string
        ASSERT $value IN ["exact", "semantic", "fuzzy"];
    DEFINE FIELD IF NOT EXISTS score ON similarity_score TYPE float
        ASSERT $value >= 0.0 AND $value <= 1.0;
    DEFINE FIELD IF NOT EXISTS computed_at ON similarity_score TYPE datetime;

    DEFINE INDEX IF NOT EXISTS score_pair ON similarity_score FIELDS method, memory_a, memory_b UNIQUE;

    -- ==========================================================================
    -- DUPLICATE_GROUP TABLE
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS duplicate_group SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS member_ids ON duplicate_group TYPE array<string>;
    DEFINE FIELD IF NOT EXISTS primary_id ON duplicate_group TYPE string;
    DEFINE FIELD IF NOT EXISTS confidence ON duplicate_group TYPE float;
    DEFINE FIELD IF NOT EXISTS status ON duplicate_group TYPE string
        ASSERT $value IN ["pending", "consolidated", "dismissed"];
    DEFINE FIELD IF NOT EXISTS common_tags ON duplicate_group TYPE array<string> DEFAULT [];
    DEFINE FIELD IF NOT EXISTS common_entities ON duplicate_group TYPE array<string> DEFAULT [];
    DEFINE FIELD IF NOT EXISTS suggested_strategy ON duplicate_group TYPE string;
    DEFINE FIELD IF NOT EXISTS detection_methods ON duplicate_group TYPE array<string> DEFAULT [];
    DEFINE FIELD IF NOT EXISTS created_at ON duplicate_group TYPE datetime DEFAULT time::now();

    DEFINE INDEX IF NOT EXISTS group_status ON duplicate_group FIELDS status;

    -- ==========================================================================
    -- CONSOLIDATED_MEMORY TABLE
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS consolidated_memory SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS title ON consolidated_memory TYPE string;
    DEFINE FIELD IF NOT EXISTS content ON consolidated_memory TYPE string;
    DEFINE FIELD IF NOT EXISTS tags ON consolidated_memory TYPE array<string> DEFAULT [];
    DEFINE FIELD IF NOT EXISTS metadata ON consolidated_memory TYPE option<object> FLEXIBLE;
    DEFINE FIELD IF NOT EXISTS importance ON consolidated_memory TYPE float DEFAULT 0.5;
    DEFINE FIELD IF NOT EXISTS original_memory_ids ON consolidated_memory TYPE array<string>;
    DEFINE FIELD IF NOT EXISTS strategy_used ON consolidated_memory TYPE string;
    DEFINE FIELD IF NOT EXISTS quality_score ON consolidated_memory TYPE float;
    DEFINE FIELD IF NOT EXISTS created_at ON consolidated_memory TYPE datetime DEFAULT time::now();
`
