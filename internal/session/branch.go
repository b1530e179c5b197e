package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/haasonsaas/meao/internal/orchestrator"
)

// BranchStatus is a branch's lifecycle state.
type BranchStatus string

const (
	BranchActive   BranchStatus = "active"
	BranchMerged   BranchStatus = "merged"
	BranchArchived BranchStatus = "archived"
)

// Branch errors, narrowed from internal/sessions/branch_store.go's larger
// set down to the single-process operations
// BranchStore actually implements.
var (
	ErrBranchNotFound      = errors.New("session: branch not found")
	ErrPrimaryBranchExists = errors.New("session: session already has a primary branch")
	ErrCannotDeletePrimary = errors.New("session: cannot delete primary branch")
	ErrCannotMergePrimary  = errors.New("session: cannot merge primary branch into itself")
	ErrInvalidBranchPoint  = errors.New("session: branch point is out of range")
	ErrBranchArchived      = errors.New("session: branch is archived")
)

// Branch is a named fork point into a session's turn history. The primary
// branch (ParentBranchID == "") always exists once EnsurePrimaryBranch has
// run; every other branch forks from some ancestor at BranchPoint (a turn
// index) and carries its own copy of the session from that point on.
type Branch struct {
	ID             string
	SessionID      string
	ParentBranchID string
	Name           string
	BranchPoint    int
	Status         BranchStatus
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// BranchStore persists branches and their working session snapshots in the
// same SQLite database as Store, scoped down from
// internal/sessions/branch_store.go's BranchStore interface to the
// single-process case this core targets: no CockroachDB backend, no
// recursive-CTE ancestry queries (a branch only ever forks directly off
// another branch's snapshot, so GetFullBranchPath/GetBranchTree have no
// multi-level tree to walk), and MergeBranch always uses the
// append-source-turns-after-point strategy rather than the teacher's
// selectable merge strategies.
type BranchStore struct {
	db *sql.DB
}

// OpenBranchStore opens (creating if necessary) a SQLite-backed branch
// store at path, sharing Store's driver selection.
func OpenBranchStore(path string) (*BranchStore, error) {
	if path == "" {
		path = ":memory:"
	}
	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("branch store: open %s: %w", path, err)
	}
	s := &BranchStore{db: db}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *BranchStore) init() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS branches (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			parent_branch_id TEXT NOT NULL DEFAULT '',
			name TEXT NOT NULL,
			branch_point INTEGER NOT NULL,
			status TEXT NOT NULL,
			snapshot TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("branch store: create table: %w", err)
	}
	_, err = s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_branches_session ON branches(session_id)`)
	if err != nil {
		return fmt.Errorf("branch store: create index: %w", err)
	}
	return nil
}

// EnsurePrimaryBranch creates the primary branch for sess if one doesn't
// already exist, snapshotting sess as its initial working copy.
func (s *BranchStore) EnsurePrimaryBranch(ctx context.Context, sess *orchestrator.Session) (*Branch, error) {
	existing, err := s.GetPrimaryBranch(ctx, sess.ID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrBranchNotFound) {
		return nil, err
	}
	b := &Branch{
		ID:          uuid.NewString(),
		SessionID:   sess.ID,
		BranchPoint: len(sess.Turns),
		Status:      BranchActive,
	}
	if err := s.create(ctx, b, sess); err != nil {
		return nil, err
	}
	return b, nil
}

// GetPrimaryBranch returns sessionID's primary (ParentBranchID == "")
// branch, or ErrBranchNotFound if EnsurePrimaryBranch has never run for it.
func (s *BranchStore) GetPrimaryBranch(ctx context.Context, sessionID string) (*Branch, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, session_id, parent_branch_id, name, branch_point, status, created_at, updated_at
		FROM branches WHERE session_id = ? AND parent_branch_id = ''
	`, sessionID)
	b, err := scanBranch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBranchNotFound
	}
	return b, err
}

// Fork creates a new branch from parentBranchID at branchPoint (a turn
// count into the parent's current snapshot), inheriting the parent's first
// branchPoint turns (indices 0 through branchPoint-1). branchPoint must be within
// [0, len(parent.Turns)].
func (s *BranchStore) Fork(ctx context.Context, parentBranchID string, branchPoint int, name string) (*Branch, *orchestrator.Session, error) {
	parent, parentSess, err := s.Get(ctx, parentBranchID)
	if err != nil {
		return nil, nil, err
	}
	if parent.Status == BranchArchived {
		return nil, nil, ErrBranchArchived
	}
	if branchPoint < 0 || branchPoint > len(parentSess.Turns) {
		return nil, nil, ErrInvalidBranchPoint
	}

	forked := *parentSess
	forked.Turns = append([]orchestrator.Turn(nil), parentSess.Turns[:branchPoint]...)
	forked.Messages = messagesThroughTurn(parentSess, branchPoint)

	b := &Branch{
		ID:             uuid.NewString(),
		SessionID:      parent.SessionID,
		ParentBranchID: parent.ID,
		Name:           name,
		BranchPoint:    branchPoint,
		Status:         BranchActive,
	}
	if err := s.create(ctx, b, &forked); err != nil {
		return nil, nil, err
	}
	return b, &forked, nil
}

// messagesThroughTurn returns the prefix of parent.Messages that existed
// once its first throughTurn turns had finished, using each Turn's
// MessageCountAfter (a turn's tool-loop iterations can append more than one
// message, so a turn count alone can't be converted to a message count
// without it).
func messagesThroughTurn(parent *orchestrator.Session, throughTurn int) []orchestrator.Message {
	if throughTurn <= 0 {
		return nil
	}
	if throughTurn >= len(parent.Turns) {
		return append([]orchestrator.Message(nil), parent.Messages...)
	}
	cut := parent.Turns[throughTurn-1].MessageCountAfter
	if cut > len(parent.Messages) {
		cut = len(parent.Messages)
	}
	return append([]orchestrator.Message(nil), parent.Messages[:cut]...)
}

// Get returns a branch and its current working session snapshot.
func (s *BranchStore) Get(ctx context.Context, branchID string) (*Branch, *orchestrator.Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, session_id, parent_branch_id, name, branch_point, status, created_at, updated_at, snapshot
		FROM branches WHERE id = ?
	`, branchID)
	var b Branch
	var status string
	var payload string
	err := row.Scan(&b.ID, &b.SessionID, &b.ParentBranchID, &b.Name, &b.BranchPoint, &status, &b.CreatedAt, &b.UpdatedAt, &payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, ErrBranchNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("branch store: get branch %s: %w", branchID, err)
	}
	b.Status = BranchStatus(status)
	var sess orchestrator.Session
	if err := json.Unmarshal([]byte(payload), &sess); err != nil {
		return nil, nil, fmt.Errorf("branch store: unmarshal snapshot for branch %s: %w", branchID, err)
	}
	return &b, &sess, nil
}

// Update persists sess as branchID's current working snapshot, called after
// more turns run against a forked branch.
func (s *BranchStore) Update(ctx context.Context, branchID string, sess *orchestrator.Session) error {
	payload, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("branch store: marshal snapshot for branch %s: %w", branchID, err)
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE branches SET snapshot = ?, updated_at = ? WHERE id = ?
	`, string(payload), time.Now().UTC(), branchID)
	if err != nil {
		return fmt.Errorf("branch store: update branch %s: %w", branchID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrBranchNotFound
	}
	return nil
}

// ListBranches returns every branch for sessionID, most recently updated
// first.
func (s *BranchStore) ListBranches(ctx context.Context, sessionID string) ([]*Branch, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, parent_branch_id, name, branch_point, status, created_at, updated_at
		FROM branches WHERE session_id = ? ORDER BY updated_at DESC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("branch store: list branches for session %s: %w", sessionID, err)
	}
	defer rows.Close()

	var out []*Branch
	for rows.Next() {
		var b Branch
		var status string
		if err := rows.Scan(&b.ID, &b.SessionID, &b.ParentBranchID, &b.Name, &b.BranchPoint, &status, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, fmt.Errorf("branch store: scan branch: %w", err)
		}
		b.Status = BranchStatus(status)
		out = append(out, &b)
	}
	return out, rows.Err()
}

// ArchiveBranch marks a branch archived; an archived branch can no longer
// be forked from or merged, but its history remains readable via Get.
func (s *BranchStore) ArchiveBranch(ctx context.Context, branchID string) error {
	return s.setStatus(ctx, branchID, BranchArchived)
}

// DeleteBranch removes a non-primary branch outright. Deleting the primary
// branch is refused, matching the teacher's ErrCannotDeletePrimary: the
// primary branch's snapshot is the session of record.
func (s *BranchStore) DeleteBranch(ctx context.Context, branchID string) error {
	b, _, err := s.Get(ctx, branchID)
	if err != nil {
		return err
	}
	if b.ParentBranchID == "" {
		return ErrCannotDeletePrimary
	}
	_, err = s.db.ExecContext(ctx, `DELETE FROM branches WHERE id = ?`, branchID)
	if err != nil {
		return fmt.Errorf("branch store: delete branch %s: %w", branchID, err)
	}
	return nil
}

// MergeBranch appends sourceBranchID's turns recorded after its fork point
// onto targetBranchID's snapshot, then marks the source merged. The source
// must not be the primary branch (nothing to merge a branch into itself
// over); the target may be any active branch, including primary.
func (s *BranchStore) MergeBranch(ctx context.Context, sourceBranchID, targetBranchID string) error {
	source, sourceSess, err := s.Get(ctx, sourceBranchID)
	if err != nil {
		return err
	}
	if source.ParentBranchID == "" {
		return ErrCannotMergePrimary
	}
	if source.Status == BranchArchived {
		return ErrBranchArchived
	}
	target, targetSess, err := s.Get(ctx, targetBranchID)
	if err != nil {
		return err
	}
	if target.Status == BranchArchived {
		return ErrBranchArchived
	}

	newTurns := sourceSess.Turns[source.BranchPoint:]
	targetSess.Turns = append(targetSess.Turns, newTurns...)
	targetSess.Messages = append(targetSess.Messages, sourceSess.Messages[len(messagesThroughTurn(sourceSess, source.BranchPoint)):]...)
	// Recompute from the merged turn list rather than trying to diff two
	// already-accumulated totals: each Turn carries its own Usage, so this
	// can't double-count turns both branches already shared before the fork.
	var total orchestrator.Usage
	for _, t := range targetSess.Turns {
		total = total.Add(t.Usage)
	}
	targetSess.TotalUsage = total
	targetSess.EstimatedCost = targetSess.Cost()

	if err := s.Update(ctx, targetBranchID, targetSess); err != nil {
		return err
	}
	return s.setStatus(ctx, sourceBranchID, BranchMerged)
}

func (s *BranchStore) setStatus(ctx context.Context, branchID string, status BranchStatus) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE branches SET status = ?, updated_at = ? WHERE id = ?
	`, string(status), time.Now().UTC(), branchID)
	if err != nil {
		return fmt.Errorf("branch store: set status for branch %s: %w", branchID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrBranchNotFound
	}
	return nil
}

func (s *BranchStore) create(ctx context.Context, b *Branch, sess *orchestrator.Session) error {
	payload, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("branch store: marshal snapshot for branch %s: %w", b.ID, err)
	}
	now := time.Now().UTC()
	b.CreatedAt, b.UpdatedAt = now, now
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO branches (id, session_id, parent_branch_id, name, branch_point, status, snapshot, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, b.ID, b.SessionID, b.ParentBranchID, b.Name, b.BranchPoint, string(b.Status), string(payload), b.CreatedAt, b.UpdatedAt)
	if err != nil {
		return fmt.Errorf("branch store: create branch %s: %w", b.ID, err)
	}
	return nil
}

// Close releases the underlying database handle.
func (s *BranchStore) Close() error {
	return s.db.Close()
}

type scannable interface {
	Scan(dest ...any) error
}

func scanBranch(row scannable) (*Branch, error) {
	var b Branch
	var status string
	if err := row.Scan(&b.ID, &b.SessionID, &b.ParentBranchID, &b.Name, &b.BranchPoint, &status, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}
	b.Status = BranchStatus(status)
	return &b, nil
}
