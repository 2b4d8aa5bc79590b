// Package store persists clustering results in Postgres, keyed by the
// canonical session identity.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/recollect-labs/recollect/internal/cluster"
)

// Store wraps the Postgres connection for all persistence operations.
type Store struct {
	DB *sql.DB
}

// NewWithDSN constructs the Store using an explicit Postgres DSN.
func NewWithDSN(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return &Store{DB: db}, nil
}

// User operations (auth).

func (s *Store) CreateUser(ctx context.Context, email, hash string) error {
	_, err := s.DB.ExecContext(ctx, `INSERT INTO users (email, password_hash) VALUES ($1,$2)`, email, hash)
	return err
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (id string, hash string, err error) {
	err = s.DB.QueryRowContext(ctx, `SELECT id, password_hash FROM users WHERE email=$1`, email).Scan(&id, &hash)
	return
}

type rawSemantics struct {
	URLPathnameClean string `json:"url_pathname_clean,omitempty"`
	URLSearchQuery   string `json:"url_search_query,omitempty"`
}

// SessionSummary is the listing row for a user's stored sessions.
type SessionSummary struct {
	SessionIdentifier string    `json:"session_identifier"`
	StartTime         time.Time `json:"start_time"`
	EndTime           time.Time `json:"end_time"`
	ClusterCount      int       `json:"cluster_count"`
}

// SaveClusteringResult stores a full clustering result transactionally.
// With replaceIfExists any record under the same canonical identity is
// deleted first (cascading to clusters and items), giving force=true its
// start-over semantics. Without it, an existing record makes the insert
// fail on the identity's unique constraint; two result sets are never
// merged under one identity.
func (s *Store) SaveClusteringResult(ctx context.Context, ownerID string, result *cluster.ClusteringResult, replaceIfExists bool) (string, error) {
	if result == nil {
		return "", fmt.Errorf("result required")
	}
	if ownerID == "" {
		return "", fmt.Errorf("owner required")
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		} else {
			err = tx.Commit()
		}
	}()

	if replaceIfExists {
		if _, err = tx.ExecContext(ctx, `DELETE FROM sessions WHERE session_identifier=$1`, result.SessionIdentifier); err != nil {
			err = fmt.Errorf("delete existing session: %w", err)
			return "", err
		}
	}

	var sessionPK int64
	err = tx.QueryRowContext(ctx, `
INSERT INTO sessions (user_id, session_identifier, start_time, end_time)
VALUES ($1,$2,$3,$4) RETURNING id`,
		ownerID, result.SessionIdentifier, result.SessionStartTime, result.SessionEndTime).Scan(&sessionPK)
	if err != nil {
		err = fmt.Errorf("insert session: %w", err)
		return "", err
	}

	for pos, cl := range result.Clusters {
		var clusterEmbedding sql.NullString
		if len(cl.Embedding) > 0 {
			var lit string
			if lit, err = encodeVectorLiteral(cl.Embedding); err != nil {
				return "", err
			}
			clusterEmbedding = sql.NullString{String: lit, Valid: true}
		}

		var clusterPK int64
		err = tx.QueryRowContext(ctx, `
INSERT INTO session_clusters (session_id, cluster_id, theme, summary, embedding, position)
VALUES ($1,$2,$3,$4,$5::vector,$6) RETURNING id`,
			sessionPK, cl.ClusterID, cl.Theme, cl.Summary, clusterEmbedding, pos).Scan(&clusterPK)
		if err != nil {
			err = fmt.Errorf("insert cluster %s: %w", cl.ClusterID, err)
			return "", err
		}

		for itemPos, item := range cl.Items {
			var itemEmbedding sql.NullString
			if len(item.Embedding) > 0 {
				var lit string
				if lit, err = encodeVectorLiteral(item.Embedding); err != nil {
					return "", err
				}
				itemEmbedding = sql.NullString{String: lit, Valid: true}
			}
			var semantics []byte
			if semantics, err = json.Marshal(rawSemantics{
				URLPathnameClean: item.URLPathnameClean,
				URLSearchQuery:   item.URLSearchQuery,
			}); err != nil {
				return "", err
			}
			if _, err = tx.ExecContext(ctx, `
INSERT INTO session_items (cluster_pk, url, title, domain, visit_time, raw_semantics, embedding, position)
VALUES ($1,$2,$3,$4,$5,$6,$7::vector,$8)`,
				clusterPK, item.URL, item.Title, item.URLHostname, item.VisitTime, semantics, itemEmbedding, itemPos); err != nil {
				err = fmt.Errorf("insert item %s: %w", item.URL, err)
				return "", err
			}
		}
	}

	return result.SessionIdentifier, nil
}

// GetClusteringResult reconstructs a stored clustering result, preserving
// cluster order, cluster_id strings, item order and embeddings.
func (s *Store) GetClusteringResult(ctx context.Context, canonicalID string) (*cluster.ClusteringResult, bool, error) {
	var sessionPK int64
	result := &cluster.ClusteringResult{SessionIdentifier: canonicalID}
	err := s.DB.QueryRowContext(ctx, `
SELECT id, start_time, end_time FROM sessions WHERE session_identifier=$1`, canonicalID).
		Scan(&sessionPK, &result.SessionStartTime, &result.SessionEndTime)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	rows, err := s.DB.QueryContext(ctx, `
SELECT id, cluster_id, theme, summary, embedding::text
FROM session_clusters WHERE session_id=$1 ORDER BY position`, sessionPK)
	if err != nil {
		return nil, false, err
	}
	defer rows.Close()

	type clusterRow struct {
		pk int64
		cl cluster.ClusterResult
	}
	var clusterRows []clusterRow
	for rows.Next() {
		var cr clusterRow
		var summary, embedding sql.NullString
		if err := rows.Scan(&cr.pk, &cr.cl.ClusterID, &cr.cl.Theme, &summary, &embedding); err != nil {
			return nil, false, err
		}
		cr.cl.Summary = summary.String
		if embedding.Valid {
			vec, err := decodeVectorLiteral(embedding.String)
			if err != nil {
				return nil, false, fmt.Errorf("cluster %s embedding: %w", cr.cl.ClusterID, err)
			}
			cr.cl.Embedding = vec
		}
		clusterRows = append(clusterRows, cr)
	}
	if err := rows.Err(); err != nil {
		return nil, false, err
	}

	for i := range clusterRows {
		items, err := s.clusterItems(ctx, clusterRows[i].pk)
		if err != nil {
			return nil, false, err
		}
		clusterRows[i].cl.Items = items
		result.Clusters = append(result.Clusters, clusterRows[i].cl)
	}
	return result, true, nil
}

func (s *Store) clusterItems(ctx context.Context, clusterPK int64) ([]cluster.ClusterItem, error) {
	rows, err := s.DB.QueryContext(ctx, `
SELECT url, title, domain, visit_time, raw_semantics, embedding::text
FROM session_items WHERE cluster_pk=$1 ORDER BY position`, clusterPK)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []cluster.ClusterItem
	for rows.Next() {
		var item cluster.ClusterItem
		var title, domain, embedding sql.NullString
		var semanticsB []byte
		if err := rows.Scan(&item.URL, &title, &domain, &item.VisitTime, &semanticsB, &embedding); err != nil {
			return nil, err
		}
		item.Title = title.String
		item.URLHostname = domain.String
		if len(semanticsB) > 0 {
			var sem rawSemantics
			if err := json.Unmarshal(semanticsB, &sem); err != nil {
				return nil, fmt.Errorf("item %s raw_semantics: %w", item.URL, err)
			}
			item.URLPathnameClean = sem.URLPathnameClean
			item.URLSearchQuery = sem.URLSearchQuery
		}
		if embedding.Valid {
			vec, err := decodeVectorLiteral(embedding.String)
			if err != nil {
				return nil, fmt.Errorf("item %s embedding: %w", item.URL, err)
			}
			item.Embedding = vec
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// ListSessions returns metadata for a user's stored sessions, most recent
// first.
func (s *Store) ListSessions(ctx context.Context, userID string) ([]SessionSummary, error) {
	rows, err := s.DB.QueryContext(ctx, `
SELECT s.session_identifier, s.start_time, s.end_time, COUNT(c.id)
FROM sessions s
LEFT JOIN session_clusters c ON c.session_id = s.id
WHERE s.user_id=$1
GROUP BY s.id
ORDER BY s.start_time DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SessionSummary
	for rows.Next() {
		var sum SessionSummary
		if err := rows.Scan(&sum.SessionIdentifier, &sum.StartTime, &sum.EndTime, &sum.ClusterCount); err != nil {
			return nil, err
		}
		// Stored identifiers are user-scoped; listings hand back the
		// identifier the client supplied so it can be fetched again.
		sum.SessionIdentifier = cluster.LocalSessionID(userID, sum.SessionIdentifier)
		out = append(out, sum)
	}
	return out, rows.Err()
}
