// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package store

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// isUniqueViolation reports whether err is a Postgres unique_violation
// (SQLSTATE 23505), the case CreateAgent maps to ErrDuplicateName.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// PGStore is the pgx-backed Store implementation (§4.1).
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore wraps an already-configured pool (see internal/pgxdriver.NewPool).
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

func (s *PGStore) Close() { s.pool.Close() }

func marshalMeta(m Metadata) ([]byte, error) {
	if m == nil {
		m = Metadata{}
	}
	return json.Marshal(m)
}

func unmarshalMeta(b []byte) (Metadata, error) {
	if len(b) == 0 {
		return Metadata{}, nil
	}
	var m Metadata
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// --- Orchestrator ---------------------------------------------------------

const orchestratorColumns = `id, session_id, system_prompt, status, working_dir, input_tokens, output_tokens, total_cost, archived, metadata, created_at, updated_at`

func scanOrchestrator(row pgx.Row) (*Orchestrator, error) {
	var o Orchestrator
	var meta []byte
	if err := row.Scan(&o.ID, &o.SessionID, &o.SystemPrompt, &o.Status, &o.WorkingDir,
		&o.InputTokens, &o.OutputTokens, &o.TotalCost, &o.Archived, &meta, &o.CreatedAt, &o.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	m, err := unmarshalMeta(meta)
	if err != nil {
		return nil, err
	}
	o.Metadata = m
	return &o, nil
}

func (s *PGStore) GetOrchestratorBySession(ctx context.Context, sessionID string) (*Orchestrator, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+orchestratorColumns+` FROM orchestrator_agents WHERE session_id = $1 AND NOT archived`, sessionID)
	return scanOrchestrator(row)
}

func (s *PGStore) GetOrchestratorByID(ctx context.Context, id uuid.UUID) (*Orchestrator, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+orchestratorColumns+` FROM orchestrator_agents WHERE id = $1`, id)
	return scanOrchestrator(row)
}

func (s *PGStore) GetActiveOrchestrator(ctx context.Context) (*Orchestrator, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+orchestratorColumns+` FROM orchestrator_agents WHERE NOT archived ORDER BY created_at ASC LIMIT 1`)
	return scanOrchestrator(row)
}

func (s *PGStore) CreateOrchestrator(ctx context.Context, o *Orchestrator) (*Orchestrator, error) {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	meta, err := marshalMeta(o.Metadata)
	if err != nil {
		return nil, err
	}
	if o.Status == "" {
		o.Status = StatusIdle
	}
	row := s.pool.QueryRow(ctx, `
		INSERT INTO orchestrator_agents (id, session_id, system_prompt, status, working_dir, input_tokens, output_tokens, total_cost, archived, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING `+orchestratorColumns,
		o.ID, o.SessionID, o.SystemPrompt, o.Status, o.WorkingDir, o.InputTokens, o.OutputTokens, o.TotalCost, o.Archived, meta)
	return scanOrchestrator(row)
}

// UpdateOrchestratorSession sets session_id only if it is currently NULL,
// returning whether the update took effect (§3's monotonic-acquire
// invariant and §4.1's "affects exactly zero or one row" contract).
func (s *PGStore) UpdateOrchestratorSession(ctx context.Context, id uuid.UUID, sessionID string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE orchestrator_agents SET session_id = $2, updated_at = now()
		WHERE id = $1 AND session_id IS NULL`, id, sessionID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PGStore) UpdateOrchestratorCosts(ctx context.Context, id uuid.UUID, delta CostUpdate) (int, CostTotals, error) {
	var totals CostTotals
	row := s.pool.QueryRow(ctx, `
		UPDATE orchestrator_agents
		SET input_tokens = input_tokens + $2,
		    output_tokens = output_tokens + $3,
		    total_cost = total_cost + $4,
		    updated_at = now()
		WHERE id = $1
		RETURNING input_tokens, output_tokens, total_cost`,
		id, delta.InputTokens, delta.OutputTokens, delta.Cost)
	if err := row.Scan(&totals.InputTokens, &totals.OutputTokens, &totals.TotalCost); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, CostTotals{}, nil
		}
		return 0, CostTotals{}, err
	}
	return 1, totals, nil
}

func (s *PGStore) UpdateOrchestratorStatus(ctx context.Context, id uuid.UUID, status Status) error {
	_, err := s.pool.Exec(ctx, `UPDATE orchestrator_agents SET status = $2, updated_at = now() WHERE id = $1`, id, status)
	return err
}

func (s *PGStore) MergeOrchestratorMetadata(ctx context.Context, id uuid.UUID, patch Metadata) error {
	b, err := marshalMeta(patch)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `UPDATE orchestrator_agents SET metadata = metadata || $2::jsonb, updated_at = now() WHERE id = $1`, id, b)
	return err
}

// --- Agent -----------------------------------------------------------------

const agentColumns = `id, orchestrator_agent_id, name, model, system_prompt, working_dir, status, session_id, input_tokens, output_tokens, total_cost, archived, metadata, created_at, updated_at`

func scanAgent(row pgx.Row) (*Agent, error) {
	var a Agent
	var meta []byte
	if err := row.Scan(&a.ID, &a.OrchestratorID, &a.Name, &a.Model, &a.SystemPrompt, &a.WorkingDir,
		&a.Status, &a.SessionID, &a.InputTokens, &a.OutputTokens, &a.TotalCost, &a.Archived, &meta,
		&a.CreatedAt, &a.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	m, err := unmarshalMeta(meta)
	if err != nil {
		return nil, err
	}
	a.Metadata = m
	return &a, nil
}

func (s *PGStore) CreateAgent(ctx context.Context, a *Agent) (*Agent, error) {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.Status == "" {
		a.Status = StatusIdle
	}
	meta, err := marshalMeta(a.Metadata)
	if err != nil {
		return nil, err
	}
	row := s.pool.QueryRow(ctx, `
		INSERT INTO agents (id, orchestrator_agent_id, name, model, system_prompt, working_dir, status, session_id, input_tokens, output_tokens, total_cost, archived, metadata)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		RETURNING `+agentColumns,
		a.ID, a.OrchestratorID, a.Name, a.Model, a.SystemPrompt, a.WorkingDir, a.Status, a.SessionID,
		a.InputTokens, a.OutputTokens, a.TotalCost, a.Archived, meta)
	created, err := scanAgent(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateName
		}
		return nil, err
	}
	return created, nil
}

func (s *PGStore) GetAgentByID(ctx context.Context, id uuid.UUID) (*Agent, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+agentColumns+` FROM agents WHERE id = $1`, id)
	return scanAgent(row)
}

func (s *PGStore) GetAgentByName(ctx context.Context, owner uuid.UUID, name string) (*Agent, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+agentColumns+` FROM agents WHERE orchestrator_agent_id = $1 AND name = $2 AND NOT archived`, owner, name)
	return scanAgent(row)
}

func (s *PGStore) ListAgents(ctx context.Context, owner uuid.UUID, archived bool) ([]*Agent, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+agentColumns+` FROM agents WHERE orchestrator_agent_id = $1 AND archived = $2 ORDER BY created_at ASC`, owner, archived)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Agent
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *PGStore) UpdateAgentSession(ctx context.Context, id uuid.UUID, sessionID string) error {
	_, err := s.pool.Exec(ctx, `UPDATE agents SET session_id = $2, updated_at = now() WHERE id = $1`, id, sessionID)
	return err
}

func (s *PGStore) UpdateAgentStatus(ctx context.Context, id uuid.UUID, status Status) error {
	_, err := s.pool.Exec(ctx, `UPDATE agents SET status = $2, updated_at = now() WHERE id = $1`, id, status)
	return err
}

func (s *PGStore) UpdateAgentCosts(ctx context.Context, id uuid.UUID, delta CostUpdate) (int, CostTotals, error) {
	var totals CostTotals
	row := s.pool.QueryRow(ctx, `
		UPDATE agents
		SET input_tokens = input_tokens + $2, output_tokens = output_tokens + $3, total_cost = total_cost + $4, updated_at = now()
		WHERE id = $1
		RETURNING input_tokens, output_tokens, total_cost`,
		id, delta.InputTokens, delta.OutputTokens, delta.Cost)
	if err := row.Scan(&totals.InputTokens, &totals.OutputTokens, &totals.TotalCost); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, CostTotals{}, nil
		}
		return 0, CostTotals{}, err
	}
	return 1, totals, nil
}

func (s *PGStore) ResetAgentTokens(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `UPDATE agents SET input_tokens = 0, output_tokens = 0, total_cost = 0, updated_at = now() WHERE id = $1`, id)
	return err
}

func (s *PGStore) SoftDeleteAgent(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `UPDATE agents SET archived = TRUE, updated_at = now() WHERE id = $1`, id)
	return err
}

func (s *PGStore) UpdateAgentMetadata(ctx context.Context, id uuid.UUID, patch Metadata) error {
	b, err := marshalMeta(patch)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `UPDATE agents SET metadata = metadata || $2::jsonb, updated_at = now() WHERE id = $1`, id, b)
	return err
}

// --- Chat --------------------------------------------------------------

const chatColumns = `id, orchestrator_agent_id, sender_type, receiver_type, message, agent_id, summary, metadata, created_at, updated_at`

func scanChat(row pgx.Row) (*ChatMessage, error) {
	var m ChatMessage
	var meta []byte
	if err := row.Scan(&m.ID, &m.OrchestratorID, &m.SenderType, &m.ReceiverType, &m.Message,
		&m.AgentID, &m.Summary, &meta, &m.CreatedAt, &m.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	md, err := unmarshalMeta(meta)
	if err != nil {
		return nil, err
	}
	m.Metadata = md
	return &m, nil
}

func (s *PGStore) InsertChatMessage(ctx context.Context, m *ChatMessage) (*ChatMessage, error) {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	meta, err := marshalMeta(m.Metadata)
	if err != nil {
		return nil, err
	}
	row := s.pool.QueryRow(ctx, `
		INSERT INTO orchestrator_chat (id, orchestrator_agent_id, sender_type, receiver_type, message, agent_id, summary, metadata)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING `+chatColumns,
		m.ID, m.OrchestratorID, m.SenderType, m.ReceiverType, m.Message, m.AgentID, m.Summary, meta)
	return scanChat(row)
}

// ChatHistory fetches DESC by time with LIMIT/OFFSET then reverses to
// chronological order, per §4.1.
func (s *PGStore) ChatHistory(ctx context.Context, owner uuid.UUID, limit, offset int, agentID *uuid.UUID) ([]*ChatMessage, error) {
	var rows pgx.Rows
	var err error
	if agentID != nil {
		rows, err = s.pool.Query(ctx, `SELECT `+chatColumns+` FROM orchestrator_chat WHERE orchestrator_agent_id = $1 AND agent_id = $2 ORDER BY created_at DESC LIMIT $3 OFFSET $4`, owner, *agentID, limit, offset)
	} else {
		rows, err = s.pool.Query(ctx, `SELECT `+chatColumns+` FROM orchestrator_chat WHERE orchestrator_agent_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`, owner, limit, offset)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var desc []*ChatMessage
	for rows.Next() {
		m, err := scanChat(rows)
		if err != nil {
			return nil, err
		}
		desc = append(desc, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]*ChatMessage, len(desc))
	for i, m := range desc {
		out[len(desc)-1-i] = m
	}
	return out, nil
}

func (s *PGStore) ChatTurnCount(ctx context.Context, owner uuid.UUID) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT count(*) FROM orchestrator_chat WHERE orchestrator_agent_id = $1 AND sender_type = 'user'`, owner).Scan(&n)
	return n, err
}

func (s *PGStore) UpdateChatSummary(ctx context.Context, id uuid.UUID, summary string) error {
	_, err := s.pool.Exec(ctx, `UPDATE orchestrator_chat SET summary = $2, updated_at = now() WHERE id = $1`, id, summary)
	return err
}

// --- Agent log -----------------------------------------------------------

const agentLogColumns = `id, agent_id, session_id, task_slug, entry_index, event_category, event_type, content, payload, summary, "timestamp"`

func scanAgentLog(row pgx.Row) (*AgentLog, error) {
	var l AgentLog
	var payload []byte
	if err := row.Scan(&l.ID, &l.AgentID, &l.SessionID, &l.TaskSlug, &l.EntryIndex, &l.EventCategory,
		&l.EventType, &l.Content, &payload, &l.Summary, &l.Timestamp); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	p, err := unmarshalMeta(payload)
	if err != nil {
		return nil, err
	}
	l.Payload = p
	return &l, nil
}

// NextEntryIndex returns the next strictly-increasing entry index for
// (agent, task), per §3's agent-log invariant. Callers should hold this
// call and the following insert close together; the core runs one task
// per agent at a time so no additional locking is required here.
func (s *PGStore) NextEntryIndex(ctx context.Context, agentID uuid.UUID, taskSlug string) (int, error) {
	var max *int
	err := s.pool.QueryRow(ctx, `SELECT max(entry_index) FROM agent_logs WHERE agent_id = $1 AND task_slug = $2`, agentID, taskSlug).Scan(&max)
	if err != nil {
		return 0, err
	}
	if max == nil {
		return 0, nil
	}
	return *max + 1, nil
}

func (s *PGStore) InsertAgentLog(ctx context.Context, l *AgentLog) (*AgentLog, error) {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	payload, err := marshalMeta(l.Payload)
	if err != nil {
		return nil, err
	}
	row := s.pool.QueryRow(ctx, `
		INSERT INTO agent_logs (id, agent_id, session_id, task_slug, entry_index, event_category, event_type, content, payload, summary)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING `+agentLogColumns,
		l.ID, l.AgentID, l.SessionID, l.TaskSlug, l.EntryIndex, l.EventCategory, l.EventType, l.Content, payload, l.Summary)
	return scanAgentLog(row)
}

func (s *PGStore) UpdateAgentLogSummary(ctx context.Context, id uuid.UUID, summary string) error {
	_, err := s.pool.Exec(ctx, `UPDATE agent_logs SET summary = $2 WHERE id = $1`, id, summary)
	return err
}

func (s *PGStore) UpdateAgentLogPayload(ctx context.Context, id uuid.UUID, patch Metadata) error {
	b, err := marshalMeta(patch)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `UPDATE agent_logs SET payload = payload || $2::jsonb WHERE id = $1`, id, b)
	return err
}

func (s *PGStore) GetAgentLogs(ctx context.Context, agentID uuid.UUID, taskSlug string) ([]*AgentLog, error) {
	var rows pgx.Rows
	var err error
	if taskSlug == "" {
		rows, err = s.pool.Query(ctx, `SELECT `+agentLogColumns+` FROM agent_logs WHERE agent_id = $1 ORDER BY task_slug, entry_index`, agentID)
	} else {
		rows, err = s.pool.Query(ctx, `SELECT `+agentLogColumns+` FROM agent_logs WHERE agent_id = $1 AND task_slug = $2 ORDER BY entry_index`, agentID, taskSlug)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*AgentLog
	for rows.Next() {
		l, err := scanAgentLog(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (s *PGStore) getTail(ctx context.Context, agentID uuid.UUID, taskSlug string, tail, offset int) ([]*AgentLog, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+agentLogColumns+` FROM agent_logs
		WHERE agent_id = $1 AND task_slug = $2
		ORDER BY entry_index DESC
		LIMIT $3 OFFSET $4`, agentID, taskSlug, tail, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var desc []*AgentLog
	for rows.Next() {
		l, err := scanAgentLog(rows)
		if err != nil {
			return nil, err
		}
		desc = append(desc, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	out := make([]*AgentLog, len(desc))
	for i, l := range desc {
		out[len(desc)-1-i] = l
	}
	return out, nil
}

func (s *PGStore) GetAgentLogTailSummaries(ctx context.Context, agentID uuid.UUID, taskSlug string, tail, offset int) ([]*AgentLog, error) {
	return s.getTail(ctx, agentID, taskSlug, tail, offset)
}

func (s *PGStore) GetAgentLogTailRaw(ctx context.Context, agentID uuid.UUID, taskSlug string, tail, offset int) ([]*AgentLog, error) {
	return s.getTail(ctx, agentID, taskSlug, tail, offset)
}

func (s *PGStore) GetLatestTaskSlug(ctx context.Context, agentID uuid.UUID) (string, error) {
	var slug string
	err := s.pool.QueryRow(ctx, `SELECT task_slug FROM agent_logs WHERE agent_id = $1 ORDER BY "timestamp" DESC LIMIT 1`, agentID).Scan(&slug)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	return slug, err
}

// --- System log ----------------------------------------------------------

const systemLogColumns = `id, file_path, level, message, summary, metadata, "timestamp"`

func scanSystemLog(row pgx.Row) (*SystemLog, error) {
	var l SystemLog
	var meta []byte
	if err := row.Scan(&l.ID, &l.FilePath, &l.Level, &l.Message, &l.Summary, &meta, &l.Timestamp); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	m, err := unmarshalMeta(meta)
	if err != nil {
		return nil, err
	}
	l.Metadata = m
	return &l, nil
}

func (s *PGStore) InsertSystemLog(ctx context.Context, l *SystemLog) (*SystemLog, error) {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	meta, err := marshalMeta(l.Metadata)
	if err != nil {
		return nil, err
	}
	row := s.pool.QueryRow(ctx, `
		INSERT INTO system_logs (id, file_path, level, message, summary, metadata)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING `+systemLogColumns,
		l.ID, l.FilePath, l.Level, l.Message, l.Summary, meta)
	return scanSystemLog(row)
}

func (s *PGStore) ListSystemLogs(ctx context.Context, offset, limit int, messageContains, level string) ([]*SystemLog, error) {
	query := `SELECT ` + systemLogColumns + ` FROM system_logs WHERE ($1 = '' OR message ILIKE '%' || $1 || '%') AND ($2 = '' OR level = $2) ORDER BY "timestamp" DESC LIMIT $3 OFFSET $4`
	rows, err := s.pool.Query(ctx, query, messageContains, level, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*SystemLog
	for rows.Next() {
		l, err := scanSystemLog(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// --- Prompt ----------------------------------------------------------------

const promptColumns = `id, agent_id, task_slug, author, prompt_text, summary, session_id, "timestamp"`

func scanPrompt(row pgx.Row) (*Prompt, error) {
	var p Prompt
	if err := row.Scan(&p.ID, &p.AgentID, &p.TaskSlug, &p.Author, &p.PromptText, &p.Summary, &p.SessionID, &p.Timestamp); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (s *PGStore) InsertPrompt(ctx context.Context, p *Prompt) (*Prompt, error) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	row := s.pool.QueryRow(ctx, `
		INSERT INTO prompts (id, agent_id, task_slug, author, prompt_text, summary, session_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING `+promptColumns,
		p.ID, p.AgentID, p.TaskSlug, p.Author, p.PromptText, p.Summary, p.SessionID)
	return scanPrompt(row)
}

func (s *PGStore) UpdatePromptSummary(ctx context.Context, id uuid.UUID, summary string) error {
	_, err := s.pool.Exec(ctx, `UPDATE prompts SET summary = $2 WHERE id = $1`, id, summary)
	return err
}
