package ledger

// schema creates the run ledger tables. Statements are idempotent.
const schema = `
CREATE TABLE IF NOT EXISTS import_run (
	id          uuid PRIMARY KEY,
	entity      text NOT NULL,
	object      text NOT NULL,
	source      text,
	row_count   integer NOT NULL DEFAULT 0,
	status      text NOT NULL,
	started_at  timestamptz NOT NULL,
	finished_at timestamptz,
	summary     jsonb,
	error       text
);

CREATE INDEX IF NOT EXISTS import_run_started_at_idx ON import_run (started_at DESC);
CREATE INDEX IF NOT EXISTS import_run_entity_idx ON import_run (entity);

CREATE TABLE IF NOT EXISTS import_chunk (
	run_id        uuid NOT NULL REFERENCES import_run (id) ON DELETE CASCADE,
	chunk_index   integer NOT NULL,
	record_offset integer NOT NULL,
	size          integer NOT NULL,
	succeeded     integer NOT NULL,
	updated       integer NOT NULL,
	failed        integer NOT NULL,
	duration_ms   bigint NOT NULL,
	error         text,
	PRIMARY KEY (run_id, chunk_index)
);

CREATE TABLE IF NOT EXISTS import_failure (
	run_id        uuid NOT NULL REFERENCES import_run (id) ON DELETE CASCADE,
	position      integer NOT NULL,
	import_id     text,
	error_code    text,
	error_message text,
	record        jsonb
);

CREATE INDEX IF NOT EXISTS import_failure_run_idx ON import_failure (run_id, position);
`
