package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// ----- users -----

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, display_name, email, password_hash, role, is_email_verified
		FROM users
		WHERE email = $1 AND deactivated_at IS NULL
	`, email).Scan(&user.ID, &user.DisplayName, &user.Email, &user.PasswordHash, &user.Role, &user.IsEmailVerified)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *PostgresStore) GetUserByID(ctx context.Context, userID string) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, display_name, email, role, is_email_verified
		FROM users
		WHERE id = $1 AND deactivated_at IS NULL
	`, userID).Scan(&user.ID, &user.DisplayName, &user.Email, &user.Role, &user.IsEmailVerified)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *PostgresStore) CreateUser(ctx context.Context, user User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, display_name, email, password_hash, role, is_email_verified, verification_token, verification_expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8)
	`, user.ID, user.DisplayName, user.Email, user.PasswordHash, user.Role, user.IsEmailVerified, user.VerificationToken, user.VerificationExpiresAt)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateUserVerificationToken(ctx context.Context, userID, token string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE users SET verification_token=$2, verification_expires_at=$3, updated_at=NOW()
		WHERE id=$1
	`, userID, token, expiresAt)
	if err != nil {
		return fmt.Errorf("update verification token: %w", err)
	}
	return nil
}

func (s *PostgresStore) VerifyUserEmail(ctx context.Context, token string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET is_email_verified=TRUE, verification_token=NULL, verification_expires_at=NULL, updated_at=NOW()
		WHERE verification_token=$1 AND verification_expires_at > NOW()
	`, token)
	if err != nil {
		return fmt.Errorf("verify email: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("verify email rows: %w", err)
	}
	if affected == 0 {
		return errors.New("invalid or expired verification token")
	}
	return nil
}

func (s *PostgresStore) UpdateUserPassword(ctx context.Context, userID, passwordHash string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE users SET password_hash=$2, updated_at=NOW() WHERE id=$1`, userID, passwordHash)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreatePasswordReset(ctx context.Context, userID, token string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO password_resets (token, user_id, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (token) DO NOTHING
	`, token, userID, expiresAt)
	if err != nil {
		return fmt.Errorf("create password reset: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetPasswordReset(ctx context.Context, token string) (string, error) {
	var userID string
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id FROM password_resets
		WHERE token=$1 AND used_at IS NULL AND expires_at > NOW()
	`, token).Scan(&userID)
	if err != nil {
		return "", err
	}
	return userID, nil
}

func (s *PostgresStore) MarkPasswordResetUsed(ctx context.Context, token string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE password_resets SET used_at=NOW() WHERE token=$1`, token)
	if err != nil {
		return fmt.Errorf("mark password reset used: %w", err)
	}
	return nil
}

// ----- auth sessions -----

func (s *PostgresStore) SaveRefreshSession(ctx context.Context, tokenHash string, user User, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO refresh_sessions (token_hash, user_id, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (token_hash) DO UPDATE SET user_id=EXCLUDED.user_id, expires_at=EXCLUDED.expires_at, revoked_at=NULL
	`, tokenHash, user.ID, expiresAt)
	if err != nil {
		return fmt.Errorf("save refresh session: %w", err)
	}
	return nil
}

func (s *PostgresStore) LookupRefreshSession(ctx context.Context, tokenHash string) (User, error) {
	const query = `
		SELECT u.id, u.display_name, u.email, u.role
		FROM refresh_sessions rs
		JOIN users u ON u.id = rs.user_id
		WHERE rs.token_hash = $1
			AND rs.revoked_at IS NULL
			AND rs.expires_at > NOW()
	`
	var user User
	err := s.db.QueryRowContext(ctx, query, tokenHash).Scan(&user.ID, &user.DisplayName, &user.Email, &user.Role)
	if err != nil {
		return User{}, err
	}
	if user.Role == "" {
		user.Role = "viewer"
	}
	return user, nil
}

func (s *PostgresStore) RevokeRefreshSession(ctx context.Context, tokenHash string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE refresh_sessions SET revoked_at=NOW() WHERE token_hash=$1`, tokenHash)
	if err != nil {
		return fmt.Errorf("revoke refresh session: %w", err)
	}
	return nil
}

func (s *PostgresStore) RevokeAccessToken(ctx context.Context, jti string, exp time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO revoked_access_tokens (jti, expires_at)
		VALUES ($1, $2)
		ON CONFLICT (jti) DO NOTHING
	`, jti, exp)
	if err != nil {
		return fmt.Errorf("revoke access token: %w", err)
	}
	return nil
}

func (s *PostgresStore) IsAccessTokenRevoked(ctx context.Context, jti string) (bool, error) {
	var revoked bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM revoked_access_tokens WHERE jti=$1)`, jti).Scan(&revoked)
	if err != nil {
		return false, fmt.Errorf("check revoked token: %w", err)
	}
	return revoked, nil
}

// ----- buyers -----

func (s *PostgresStore) ListBuyers(ctx context.Context) ([]Buyer, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, company, country, contact_name, email, phone, channel, grade, memo, created_at, updated_at
		FROM buyers
		ORDER BY updated_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list buyers: %w", err)
	}
	defer rows.Close()

	items := make([]Buyer, 0)
	for rows.Next() {
		var item Buyer
		if err := rows.Scan(&item.ID, &item.Company, &item.Country, &item.ContactName, &item.Email,
			&item.Phone, &item.Channel, &item.Grade, &item.Memo, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan buyer: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate buyers: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetBuyer(ctx context.Context, buyerID string) (Buyer, error) {
	var item Buyer
	err := s.db.QueryRowContext(ctx, `
		SELECT id, company, country, contact_name, email, phone, channel, grade, memo, created_at, updated_at
		FROM buyers
		WHERE id=$1
	`, buyerID).Scan(&item.ID, &item.Company, &item.Country, &item.ContactName, &item.Email,
		&item.Phone, &item.Channel, &item.Grade, &item.Memo, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return Buyer{}, err
	}
	return item, nil
}

func (s *PostgresStore) InsertBuyer(ctx context.Context, item Buyer) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO buyers (id, company, country, contact_name, email, phone, channel, grade, memo)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, item.ID, item.Company, item.Country, item.ContactName, item.Email, item.Phone, item.Channel, item.Grade, item.Memo)
	if err != nil {
		return fmt.Errorf("insert buyer: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateBuyer(ctx context.Context, item Buyer) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE buyers
		SET company=$2, country=$3, contact_name=$4, email=$5, phone=$6, channel=$7, grade=$8, memo=$9, updated_at=NOW()
		WHERE id=$1
	`, item.ID, item.Company, item.Country, item.ContactName, item.Email, item.Phone, item.Channel, item.Grade, item.Memo)
	if err != nil {
		return fmt.Errorf("update buyer: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update buyer rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *PostgresStore) DeleteBuyer(ctx context.Context, buyerID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM buyers WHERE id=$1`, buyerID)
	if err != nil {
		return fmt.Errorf("delete buyer: %w", err)
	}
	return nil
}

// ----- projects -----

func (s *PostgresStore) ListProjects(ctx context.Context) ([]Project, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, buyer_id, name, stage, currency, created_by, created_at, updated_at
		FROM projects
		ORDER BY updated_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	items := make([]Project, 0)
	for rows.Next() {
		var item Project
		if err := rows.Scan(&item.ID, &item.BuyerID, &item.Name, &item.Stage, &item.Currency,
			&item.CreatedBy, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate projects: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetProject(ctx context.Context, projectID string) (Project, error) {
	var item Project
	err := s.db.QueryRowContext(ctx, `
		SELECT id, buyer_id, name, stage, currency, created_by, created_at, updated_at
		FROM projects
		WHERE id=$1
	`, projectID).Scan(&item.ID, &item.BuyerID, &item.Name, &item.Stage, &item.Currency,
		&item.CreatedBy, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return Project{}, err
	}
	return item, nil
}

func (s *PostgresStore) InsertProject(ctx context.Context, item Project) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO projects (id, buyer_id, name, stage, currency, created_by)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, item.ID, item.BuyerID, item.Name, item.Stage, item.Currency, item.CreatedBy)
	if err != nil {
		return fmt.Errorf("insert project: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateProjectStage(ctx context.Context, projectID, stage string) error {
	result, err := s.db.ExecContext(ctx, `UPDATE projects SET stage=$2, updated_at=NOW() WHERE id=$1`, projectID, stage)
	if err != nil {
		return fmt.Errorf("update project stage: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update project stage rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ----- project documents -----

func (s *PostgresStore) ListProjectDocuments(ctx context.Context, projectID string) ([]ProjectDocument, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, project_id, doc_key, fields, updated_by, created_at, updated_at
		FROM project_documents
		WHERE project_id=$1
		ORDER BY doc_key
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list project documents: %w", err)
	}
	defer rows.Close()

	items := make([]ProjectDocument, 0)
	for rows.Next() {
		var item ProjectDocument
		if err := rows.Scan(&item.ID, &item.ProjectID, &item.DocKey, &item.Fields,
			&item.UpdatedBy, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan project document: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate project documents: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetProjectDocument(ctx context.Context, projectID, docKey string) (ProjectDocument, error) {
	var item ProjectDocument
	err := s.db.QueryRowContext(ctx, `
		SELECT id, project_id, doc_key, fields, updated_by, created_at, updated_at
		FROM project_documents
		WHERE project_id=$1 AND doc_key=$2
	`, projectID, docKey).Scan(&item.ID, &item.ProjectID, &item.DocKey, &item.Fields,
		&item.UpdatedBy, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return ProjectDocument{}, err
	}
	return item, nil
}

// UpsertProjectDocument keeps the one-current-instance-per-role invariant:
// saving a role that already exists replaces its field bag in place.
func (s *PostgresStore) UpsertProjectDocument(ctx context.Context, item ProjectDocument) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO project_documents (id, project_id, doc_key, fields, updated_by)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (project_id, doc_key)
		DO UPDATE SET fields=EXCLUDED.fields, updated_by=EXCLUDED.updated_by, updated_at=NOW()
	`, item.ID, item.ProjectID, item.DocKey, item.Fields, item.UpdatedBy)
	if err != nil {
		return fmt.Errorf("upsert project document: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteProjectDocument(ctx context.Context, projectID, docKey string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM project_documents WHERE project_id=$1 AND doc_key=$2`, projectID, docKey)
	if err != nil {
		return fmt.Errorf("delete project document: %w", err)
	}
	return nil
}

// ----- gate runs -----

func (s *PostgresStore) InsertGateRun(ctx context.Context, item GateRun) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO gate_runs (id, project_id, passed, passed_checks, required_checks, payload, ran_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, item.ID, item.ProjectID, item.Passed, item.PassedChecks, item.RequiredChecks, item.Payload, item.RanBy)
	if err != nil {
		return fmt.Errorf("insert gate run: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListGateRuns(ctx context.Context, projectID string, limit int) ([]GateRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, project_id, passed, passed_checks, required_checks, payload, ran_by, created_at
		FROM gate_runs
		WHERE project_id=$1
		ORDER BY created_at DESC
		LIMIT $2
	`, projectID, limit)
	if err != nil {
		return nil, fmt.Errorf("list gate runs: %w", err)
	}
	defer rows.Close()

	items := make([]GateRun, 0)
	for rows.Next() {
		var item GateRun
		if err := rows.Scan(&item.ID, &item.ProjectID, &item.Passed, &item.PassedChecks,
			&item.RequiredChecks, &item.Payload, &item.RanBy, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan gate run: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate gate runs: %w", err)
	}
	return items, nil
}

// ----- attachments -----

func (s *PostgresStore) InsertAttachment(ctx context.Context, item Attachment) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO attachments (id, project_id, object_key, filename, content_type, size, uploaded_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, item.ID, item.ProjectID, item.ObjectKey, item.Filename, item.ContentType, item.Size, item.UploadedBy)
	if err != nil {
		return fmt.Errorf("insert attachment: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListAttachments(ctx context.Context, projectID string) ([]Attachment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, project_id, object_key, filename, content_type, size, uploaded_by, created_at
		FROM attachments
		WHERE project_id=$1
		ORDER BY created_at DESC
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list attachments: %w", err)
	}
	defer rows.Close()

	items := make([]Attachment, 0)
	for rows.Next() {
		var item Attachment
		if err := rows.Scan(&item.ID, &item.ProjectID, &item.ObjectKey, &item.Filename,
			&item.ContentType, &item.Size, &item.UploadedBy, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan attachment: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attachments: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetAttachment(ctx context.Context, attachmentID string) (Attachment, error) {
	var item Attachment
	err := s.db.QueryRowContext(ctx, `
		SELECT id, project_id, object_key, filename, content_type, size, uploaded_by, created_at
		FROM attachments
		WHERE id=$1
	`, attachmentID).Scan(&item.ID, &item.ProjectID, &item.ObjectKey, &item.Filename,
		&item.ContentType, &item.Size, &item.UploadedBy, &item.CreatedAt)
	if err != nil {
		return Attachment{}, err
	}
	return item, nil
}
