package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rentfold/esign/pkg/envelope"
)

// Postgres is the production envelope store.
type Postgres struct {
	DB *pgxpool.Pool
}

func NewPostgres(db *pgxpool.Pool) *Postgres { return &Postgres{DB: db} }

const envelopeColumns = `id, provider_envelope_id, owner_id, provider, document_type, related_entity_id,
title, message, documents, signers, status, expires_at, sent_at, completed_at, created_at, updated_at, metadata`

func (s *Postgres) Create(ctx context.Context, env *envelope.Envelope) error {
	docs, _ := json.Marshal(env.Documents)
	signers, _ := json.Marshal(env.Signers)
	meta, _ := json.Marshal(env.Metadata)
	_, err := s.DB.Exec(ctx, `INSERT INTO envelopes(`+envelopeColumns+`)
VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9::jsonb,$10::jsonb,$11,$12,$13,$14,$15,$16,$17::jsonb)`,
		env.ID, env.ProviderEnvelopeID, env.OwnerID, string(env.Provider), env.DocumentType, env.RelatedEntityID,
		env.Title, env.Message, string(docs), string(signers), string(env.Status),
		env.ExpiresAt, env.SentAt, env.CompletedAt, env.CreatedAt, env.UpdatedAt, string(meta))
	return err
}

func (s *Postgres) Get(ctx context.Context, id string) (*envelope.Envelope, error) {
	row := s.DB.QueryRow(ctx, `SELECT `+envelopeColumns+` FROM envelopes WHERE id=$1`, id)
	return scanEnvelope(row)
}

func (s *Postgres) GetByProviderEnvelopeID(ctx context.Context, p envelope.Provider, providerEnvelopeID string) (*envelope.Envelope, error) {
	row := s.DB.QueryRow(ctx, `SELECT `+envelopeColumns+` FROM envelopes WHERE provider=$1 AND provider_envelope_id=$2`,
		string(p), providerEnvelopeID)
	return scanEnvelope(row)
}

// Update rewrites the full record. provider_envelope_id is immutable after
// creation and is deliberately not part of the SET list.
func (s *Postgres) Update(ctx context.Context, env *envelope.Envelope) error {
	docs, _ := json.Marshal(env.Documents)
	signers, _ := json.Marshal(env.Signers)
	meta, _ := json.Marshal(env.Metadata)
	tag, err := s.DB.Exec(ctx, `UPDATE envelopes SET
documents=$2::jsonb, signers=$3::jsonb, status=$4, expires_at=$5, sent_at=$6, completed_at=$7, updated_at=$8, metadata=$9::jsonb
WHERE id=$1`,
		env.ID, string(docs), string(signers), string(env.Status),
		env.ExpiresAt, env.SentAt, env.CompletedAt, env.UpdatedAt, string(meta))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Postgres) ListByOwner(ctx context.Context, ownerID string) ([]*envelope.Envelope, error) {
	rows, err := s.DB.Query(ctx, `SELECT `+envelopeColumns+` FROM envelopes WHERE owner_id=$1 ORDER BY created_at`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*envelope.Envelope
	for rows.Next() {
		env, err := scanEnvelope(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, env)
	}
	return out, rows.Err()
}

func (s *Postgres) ListExpiredIDs(ctx context.Context, now time.Time, limit int) ([]string, error) {
	rows, err := s.DB.Query(ctx, `SELECT id FROM envelopes
WHERE expires_at IS NOT NULL AND expires_at < $1
AND status NOT IN ('completed','declined','voided','expired')
LIMIT $2`, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEnvelope(row rowScanner) (*envelope.Envelope, error) {
	var env envelope.Envelope
	var providerTag, status string
	var docs, signers, meta []byte
	err := row.Scan(&env.ID, &env.ProviderEnvelopeID, &env.OwnerID, &providerTag, &env.DocumentType, &env.RelatedEntityID,
		&env.Title, &env.Message, &docs, &signers, &status,
		&env.ExpiresAt, &env.SentAt, &env.CompletedAt, &env.CreatedAt, &env.UpdatedAt, &meta)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	env.Provider = envelope.Provider(providerTag)
	env.Status = envelope.Status(status)
	if err := json.Unmarshal(docs, &env.Documents); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(signers, &env.Signers); err != nil {
		return nil, err
	}
	if len(meta) > 0 {
		_ = json.Unmarshal(meta, &env.Metadata)
	}
	return &env, nil
}
