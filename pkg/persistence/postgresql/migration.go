package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			-- Create sessions table (execution state checkpoints)
			CREATE TABLE sessions (
				session_id VARCHAR(255) PRIMARY KEY,
				pipeline_name VARCHAR(255) NOT NULL,
				status VARCHAR(50) NOT NULL,
				state JSONB NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_sessions_status ON sessions(status);
			CREATE INDEX idx_sessions_pipeline ON sessions(pipeline_name);
			CREATE INDEX idx_sessions_updated_at ON sessions(updated_at);

			-- Create approvals table (deferred actions awaiting review)
			CREATE TABLE approvals (
				action_id VARCHAR(255) PRIMARY KEY,
				action_type VARCHAR(255) NOT NULL,
				status VARCHAR(50) NOT NULL,
				data JSONB NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_approvals_status ON approvals(status);
			CREATE INDEX idx_approvals_created_at ON approvals(created_at);

			-- Create audit_records table (append only)
			CREATE TABLE audit_records (
				id VARCHAR(255) PRIMARY KEY,
				correlation_id VARCHAR(255),
				data JSONB NOT NULL,
				recorded_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_audit_records_correlation ON audit_records(correlation_id);
			CREATE INDEX idx_audit_records_recorded_at ON audit_records(recorded_at);

			-- Create work_items table
			CREATE TABLE work_items (
				id VARCHAR(255) PRIMARY KEY,
				item_type VARCHAR(255) NOT NULL,
				processed BOOLEAN NOT NULL DEFAULT FALSE,
				dead BOOLEAN NOT NULL DEFAULT FALSE,
				next_attempt_at TIMESTAMP WITH TIME ZONE,
				data JSONB NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_work_items_processed ON work_items(processed);
			CREATE INDEX idx_work_items_created_at ON work_items(created_at);
		`,
		2: `
			-- Migration 2: workspace record store used by action executors

			CREATE TABLE tasks (
				id VARCHAR(255) PRIMARY KEY,
				status VARCHAR(50) NOT NULL,
				priority VARCHAR(10) NOT NULL,
				data JSONB NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_tasks_status ON tasks(status);
			CREATE INDEX idx_tasks_priority ON tasks(priority);

			CREATE TABLE followups (
				id VARCHAR(255) PRIMARY KEY,
				data JSONB NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE TABLE drafts (
				id VARCHAR(255) PRIMARY KEY,
				sent BOOLEAN NOT NULL DEFAULT FALSE,
				data JSONB NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE TABLE meetings (
				id VARCHAR(255) PRIMARY KEY,
				scheduled_for TIMESTAMP WITH TIME ZONE NOT NULL,
				data JSONB NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_meetings_scheduled_for ON meetings(scheduled_for);
		`,
	}
}
