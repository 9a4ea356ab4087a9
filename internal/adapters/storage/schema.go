package storage

import "strings"

// Schema templates shared by the three drivers. Type placeholders are
// substituted per dialect: MySQL needs sized VARCHARs for indexed columns,
// SQLite and Postgres are happy with TEXT everywhere.
const schemaTemplate = `
CREATE TABLE IF NOT EXISTS emails (
    id                  {KEY} PRIMARY KEY,
    timestamp           {STR} NOT NULL,
    sender              {STR} NOT NULL,
    subject             {TEXT},
    attachments         {TEXT},
    recipients          {TEXT},
    original_recipients {TEXT},
    time_month          {STR},
    pipeline_status     {STR},
    created_at          {STR},
    processed_at        {STR}
);
CREATE TABLE IF NOT EXISTS recipients (
    id                     {KEY} PRIMARY KEY,
    email_id               {KEY} NOT NULL,
    recipient              {STR} NOT NULL,
    recipient_email_domain {STR},
    leaver                 {STR},
    termination_date       {STR},
    account_type           {STR},
    bunit                  {STR},
    department             {STR},
    wordlist_attachment    {TEXT},
    wordlist_subject       {TEXT},
    user_response          {TEXT},
    final_outcome          {TEXT},
    policy_name            {STR},
    justifications         {TEXT},
    excluded               {BOOL} NOT NULL,
    whitelisted            {BOOL} NOT NULL,
    whitelist_reason       {TEXT},
    security_score         {REAL} NOT NULL,
    risk_score             {REAL} NOT NULL,
    ml_score               {REAL} NOT NULL,
    advanced_ml_score      {REAL} NOT NULL,
    combined_score         {REAL} NOT NULL,
    flagged                {BOOL} NOT NULL,
    case_generated         {BOOL} NOT NULL,
    matched_security_rules {TEXT},
    matched_risk_keywords  {TEXT},
    created_at             {STR}
);
CREATE TABLE IF NOT EXISTS cases (
    id           {KEY} PRIMARY KEY,
    email_id     {KEY} NOT NULL,
    case_type    {STR},
    severity     {STR},
    status       {STR},
    title        {TEXT},
    description  {TEXT},
    risk_factors {TEXT},
    assigned_to  {STR},
    escalated    {BOOL} NOT NULL,
    escalated_at {STR},
    created_at   {STR},
    updated_at   {STR},
    resolved_at  {STR}
);
CREATE TABLE IF NOT EXISTS sender_metadata (
    email             {STR} PRIMARY KEY,
    email_domain      {STR},
    leaver            {STR},
    termination       {STR},
    account_type      {STR},
    bunit             {STR},
    department        {STR},
    active            {BOOL} NOT NULL,
    last_email_sent   {STR},
    total_emails_sent INTEGER NOT NULL,
    created_at        {STR},
    updated_at        {STR}
);
CREATE TABLE IF NOT EXISTS security_rules (
    id          {AUTOID},
    name        {STR} NOT NULL,
    description {TEXT},
    rule_type   {STR} NOT NULL,
    pattern     {TEXT} NOT NULL,
    action      {STR},
    severity    {STR} NOT NULL,
    active      {BOOL} NOT NULL
);
CREATE TABLE IF NOT EXISTS exclusion_rules (
    id        {AUTOID},
    name      {STR} NOT NULL,
    rule_type {STR} NOT NULL,
    pattern   {TEXT} NOT NULL,
    active    {BOOL} NOT NULL
);
CREATE TABLE IF NOT EXISTS risk_keywords (
    id       {AUTOID},
    keyword  {STR} NOT NULL,
    category {STR},
    weight   {REAL} NOT NULL,
    active   {BOOL} NOT NULL
);
CREATE TABLE IF NOT EXISTS whitelist_senders (
    email  {STR} PRIMARY KEY,
    active {BOOL} NOT NULL
);
CREATE TABLE IF NOT EXISTS whitelist_domains (
    domain {STR} PRIMARY KEY,
    active {BOOL} NOT NULL
);
CREATE TABLE IF NOT EXISTS email_states (
    id             {KEY} NOT NULL,
    email_id       {KEY} PRIMARY KEY,
    current_state  {STR} NOT NULL,
    previous_state {STR},
    notes          {TEXT},
    moved_by       {STR},
    moved_at       {STR},
    created_at     {STR},
    updated_at     {STR}
);
CREATE TABLE IF NOT EXISTS state_events (
    id          {KEY} PRIMARY KEY,
    email_id    {KEY} NOT NULL,
    kind        {STR} NOT NULL,
    reason      {TEXT},
    severity    {STR},
    actor       {STR},
    resolved    {BOOL} NOT NULL,
    resolved_at {STR},
    resolved_by {STR},
    created_at  {STR}
);
`

// schemaStatements expands the template for one dialect and splits it into
// individually executable statements
func schemaStatements(dialect Dialect) []string {
	repl := map[string]string{
		"{KEY}":    "TEXT",
		"{STR}":    "TEXT",
		"{TEXT}":   "TEXT",
		"{BOOL}":   "BOOLEAN",
		"{REAL}":   "REAL",
		"{AUTOID}": "INTEGER PRIMARY KEY AUTOINCREMENT",
	}

	switch dialect {
	case DialectMySQL:
		repl["{KEY}"] = "VARCHAR(36)"
		repl["{STR}"] = "VARCHAR(255)"
		repl["{REAL}"] = "DOUBLE"
		repl["{AUTOID}"] = "INTEGER PRIMARY KEY AUTO_INCREMENT"
	case DialectPostgres:
		repl["{REAL}"] = "DOUBLE PRECISION"
		repl["{AUTOID}"] = "SERIAL PRIMARY KEY"
	}

	schema := schemaTemplate
	for from, to := range repl {
		schema = strings.ReplaceAll(schema, from, to)
	}

	var stmts []string
	for _, stmt := range strings.Split(schema, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt != "" {
			stmts = append(stmts, stmt)
		}
	}
	return stmts
}
