package store

// Database schema definitions for the lookup broker

const createOfficersTable = `
CREATE TABLE IF NOT EXISTS officers (
    id UUID PRIMARY KEY,
    name VARCHAR(255) NOT NULL,
    email VARCHAR(255) NOT NULL,
    phone VARCHAR(50),
    status VARCHAR(20) NOT NULL DEFAULT 'Active' CHECK (status IN ('Active', 'Suspended')),
    plan_id UUID REFERENCES plans(id) ON DELETE SET NULL,
    credits_remaining INTEGER NOT NULL DEFAULT 0,
    total_credits INTEGER NOT NULL DEFAULT 0,
    total_queries INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),

    UNIQUE(email),
    CHECK (credits_remaining >= 0),
    CHECK (total_credits >= 0),
    CHECK (total_queries >= 0)
);
`

const createPlansTable = `
CREATE TABLE IF NOT EXISTS plans (
    id UUID PRIMARY KEY,
    user_type VARCHAR(100) NOT NULL,
    monthly_fee DECIMAL(12,2) NOT NULL DEFAULT 0,
    default_credits INTEGER NOT NULL DEFAULT 0,
    status VARCHAR(20) NOT NULL DEFAULT 'Active' CHECK (status IN ('Active', 'Inactive')),
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),

    CHECK (monthly_fee >= 0),
    CHECK (default_credits >= 0)
);
`

const createServicesTable = `
CREATE TABLE IF NOT EXISTS services (
    id UUID PRIMARY KEY,
    name VARCHAR(255) NOT NULL,
    type VARCHAR(20) NOT NULL CHECK (type IN ('FREE', 'PRO', 'DISABLED')),
    service_provider VARCHAR(255) NOT NULL,
    default_credit_cost INTEGER NOT NULL DEFAULT 1,
    default_buy_price DECIMAL(12,2) NOT NULL DEFAULT 0,
    default_sell_price DECIMAL(12,2) NOT NULL DEFAULT 0,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),

    UNIQUE(name),
    CHECK (default_credit_cost >= 0)
);
`

const createPlanServicesTable = `
CREATE TABLE IF NOT EXISTS plan_services (
    plan_id UUID NOT NULL REFERENCES plans(id) ON DELETE CASCADE,
    service_id UUID NOT NULL REFERENCES services(id) ON DELETE CASCADE,
    enabled BOOLEAN NOT NULL DEFAULT TRUE,
    credit_cost INTEGER NOT NULL DEFAULT 1,
    buy_price DECIMAL(12,2) NOT NULL DEFAULT 0,
    sell_price DECIMAL(12,2) NOT NULL DEFAULT 0,

    PRIMARY KEY (plan_id, service_id),
    CHECK (credit_cost >= 0)
);
`

const createProviderCredentialsTable = `
CREATE TABLE IF NOT EXISTS provider_credentials (
    id UUID PRIMARY KEY,
    service_id UUID NOT NULL REFERENCES services(id) ON DELETE CASCADE,
    secret TEXT NOT NULL,
    status VARCHAR(20) NOT NULL DEFAULT 'Active' CHECK (status IN ('Active', 'Inactive')),
    usage_count BIGINT NOT NULL DEFAULT 0,
    last_used TIMESTAMPTZ,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),

    UNIQUE(service_id)
);
`

const createQueryLogsTable = `
CREATE TABLE IF NOT EXISTS query_logs (
    id UUID PRIMARY KEY,
    officer_id UUID NOT NULL REFERENCES officers(id),
    service_id UUID NOT NULL REFERENCES services(id),
    category VARCHAR(255) NOT NULL,
    input TEXT NOT NULL,
    result_summary TEXT NOT NULL,
    result JSONB,
    credits_charged INTEGER NOT NULL DEFAULT 0,
    status VARCHAR(20) NOT NULL CHECK (status IN ('Processing', 'Success', 'Failed', 'Pending')),
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),

    CHECK (credits_charged >= 0)
);
`

const createCreditTransactionsTable = `
CREATE TABLE IF NOT EXISTS credit_transactions (
    id UUID PRIMARY KEY,
    officer_id UUID NOT NULL REFERENCES officers(id),
    action VARCHAR(20) NOT NULL CHECK (action IN ('Renewal', 'Deduction', 'Top-up', 'Refund')),
    credits INTEGER NOT NULL,
    remarks TEXT NOT NULL DEFAULT '',
    query_id UUID REFERENCES query_logs(id),
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),

    CHECK ((action = 'Deduction' AND credits <= 0) OR (action <> 'Deduction' AND credits >= 0))
);
`

const createIndexes = `
-- Officer indexes
CREATE INDEX IF NOT EXISTS idx_officers_plan_id ON officers(plan_id);
CREATE INDEX IF NOT EXISTS idx_officers_status ON officers(status);

-- Entitlement indexes
CREATE INDEX IF NOT EXISTS idx_plan_services_service_id ON plan_services(service_id);

-- Query log indexes
CREATE INDEX IF NOT EXISTS idx_query_logs_officer_created ON query_logs(officer_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_query_logs_service_id ON query_logs(service_id);
CREATE INDEX IF NOT EXISTS idx_query_logs_status ON query_logs(status);

-- Credit transaction indexes
CREATE INDEX IF NOT EXISTS idx_credit_transactions_officer_id ON credit_transactions(officer_id);
CREATE INDEX IF NOT EXISTS idx_credit_transactions_created_at ON credit_transactions(created_at);
CREATE INDEX IF NOT EXISTS idx_credit_transactions_query_id ON credit_transactions(query_id);
`
