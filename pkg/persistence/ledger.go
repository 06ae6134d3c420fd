package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

const timeLayout = time.RFC3339Nano

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad timestamp %q: %w", s, err)
	}
	return t, nil
}

// StartCampaign inserts c. Missing ID, status and start time are filled in.
func (s *Store) StartCampaign(ctx context.Context, c *Campaign) error {
	if c.ID == "" {
		c.ID = NewID()
	}
	if c.Status == "" {
		c.Status = CampaignRunning
	}
	if c.StartedAt.IsZero() {
		c.StartedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO campaigns (id, task, base_branch, branch, status, iteration_limit, iterations, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Task, c.BaseBranch, c.Branch, c.Status, c.Limit, c.Iterations, formatTime(c.StartedAt))
	if err != nil {
		return fmt.Errorf("failed to insert campaign %s: %w", c.ID, err)
	}
	return nil
}

// FinishCampaign records the final status and iteration count.
func (s *Store) FinishCampaign(ctx context.Context, id, status string, iterations int) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE campaigns SET status = ?, iterations = ?, finished_at = ? WHERE id = ?`,
		status, iterations, formatTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("failed to finish campaign %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("campaign %s: %w", id, ErrNotFound)
	}
	return nil
}

// RecordAttempt inserts a finished attempt.
func (s *Store) RecordAttempt(ctx context.Context, a *Attempt) error {
	if !IsValidAttemptStatus(a.Status) {
		return fmt.Errorf("invalid attempt status %q", a.Status)
	}
	if a.ID == "" {
		a.ID = NewID()
	}
	if a.FinishedAt.IsZero() {
		a.FinishedAt = time.Now().UTC()
	}
	if a.StartedAt.IsZero() {
		a.StartedAt = a.FinishedAt
	}

	var campaignID any
	if a.CampaignID != "" {
		campaignID = a.CampaignID
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO attempts (id, campaign_id, iteration, branch, session_id, status, retries, feedback, commit_message, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, campaignID, a.Iteration, a.Branch, a.SessionID, a.Status, a.Retries,
		a.Feedback, a.CommitMessage, formatTime(a.StartedAt), formatTime(a.FinishedAt))
	if err != nil {
		return fmt.Errorf("failed to insert attempt %s: %w", a.ID, err)
	}
	return nil
}

// GetCampaign loads one campaign.
func (s *Store) GetCampaign(ctx context.Context, id string) (*Campaign, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, task, base_branch, branch, status, iteration_limit, iterations, started_at, finished_at
		FROM campaigns WHERE id = ?`, id)
	c, err := scanCampaign(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("campaign %s: %w", id, ErrNotFound)
	}
	return c, err
}

// RecentCampaigns returns up to limit campaigns, newest first.
func (s *Store) RecentCampaigns(ctx context.Context, limit int) ([]*Campaign, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, task, base_branch, branch, status, iteration_limit, iterations, started_at, finished_at
		FROM campaigns ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query campaigns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Attempts returns the attempts of a campaign in iteration order. An empty
// campaignID selects standalone runs.
func (s *Store) Attempts(ctx context.Context, campaignID string) ([]*Attempt, error) {
	query := `
		SELECT id, COALESCE(campaign_id, ''), iteration, branch, COALESCE(session_id, ''), status, retries,
		       COALESCE(feedback, ''), COALESCE(commit_message, ''), started_at, finished_at
		FROM attempts WHERE campaign_id = ? ORDER BY iteration, started_at`
	args := []any{campaignID}
	if campaignID == "" {
		query = `
		SELECT id, '', iteration, branch, COALESCE(session_id, ''), status, retries,
		       COALESCE(feedback, ''), COALESCE(commit_message, ''), started_at, finished_at
		FROM attempts WHERE campaign_id IS NULL ORDER BY started_at`
		args = nil
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query attempts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*Attempt
	for rows.Next() {
		var (
			a               Attempt
			started, finish string
		)
		if err := rows.Scan(&a.ID, &a.CampaignID, &a.Iteration, &a.Branch, &a.SessionID, &a.Status,
			&a.Retries, &a.Feedback, &a.CommitMessage, &started, &finish); err != nil {
			return nil, fmt.Errorf("failed to scan attempt: %w", err)
		}
		if a.StartedAt, err = parseTime(started); err != nil {
			return nil, err
		}
		if a.FinishedAt, err = parseTime(finish); err != nil {
			return nil, err
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCampaign(row scanner) (*Campaign, error) {
	var (
		c        Campaign
		started  string
		finished sql.NullString
	)
	if err := row.Scan(&c.ID, &c.Task, &c.BaseBranch, &c.Branch, &c.Status, &c.Limit, &c.Iterations, &started, &finished); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan campaign: %w", err)
	}
	t, err := parseTime(started)
	if err != nil {
		return nil, err
	}
	c.StartedAt = t
	if finished.Valid {
		f, err := parseTime(finished.String)
		if err != nil {
			return nil, err
		}
		c.FinishedAt = &f
	}
	return &c, nil
}
