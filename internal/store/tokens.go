package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"token-ingest-engine/internal/errs"
)

// UpsertToken inserts a new Token row keyed by mintAddr, or updates its
// mutable fields (symbol, name, graduation fields) on an existing row.
// Venue and decimals are set once at creation and never change; an attempt
// to change venue on an existing row is a hard error (errs.ErrInvariant).
// A race with another caller inserting the same mint resolves by re-reading
// the winning row — never surfaced to the caller as a failure.
func (s *Store) UpsertToken(ctx context.Context, mintAddr string, fields TokenFields) (int64, error) {
	var id int64
	err := s.WithTx(ctx, func(tx *sql.Tx) error {
		var existingVenue Venue
		var existingDecimals int
		err := tx.QueryRowContext(ctx,
			`SELECT id, venue, decimals FROM tokens WHERE mint_address = ?`, mintAddr,
		).Scan(&id, &existingVenue, &existingDecimals)

		if err == sql.ErrNoRows {
			res, insErr := tx.ExecContext(ctx, `
				INSERT INTO tokens
					(mint_address, symbol, name, decimals, venue, creation_sig, creation_time, creator, is_graduated, graduation_sig, graduation_time)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, '', 0)
				ON CONFLICT(mint_address) DO NOTHING`,
				mintAddr, fields.Symbol, fields.Name, fields.Decimals, fields.Venue,
				fields.CreationSig, fields.CreationTime, fields.Creator)
			if insErr != nil {
				return insErr
			}
			if n, _ := res.RowsAffected(); n == 1 {
				id, insErr = res.LastInsertId()
				return insErr
			}
			// Lost the insert race; re-read the winner.
			s.incDuplicateKey("tokens")
			return tx.QueryRowContext(ctx,
				`SELECT id, venue, decimals FROM tokens WHERE mint_address = ?`, mintAddr,
			).Scan(&id, &existingVenue, &existingDecimals)
		}
		if err != nil {
			return err
		}

		if fields.Venue != "" && existingVenue != fields.Venue {
			return fmt.Errorf("token %s: venue change %s -> %s: %w", mintAddr, existingVenue, fields.Venue, errs.ErrInvariant)
		}

		return s.updateTokenMutableFields(ctx, tx, id, fields)
	})
	return id, err
}

func (s *Store) updateTokenMutableFields(ctx context.Context, tx *sql.Tx, id int64, fields TokenFields) error {
	sets := []string{}
	args := []any{}

	if fields.Symbol != "" {
		sets = append(sets, "symbol = ?")
		args = append(args, fields.Symbol)
	}
	if fields.Name != "" {
		sets = append(sets, "name = ?")
		args = append(args, fields.Name)
	}
	if fields.IsGraduated != nil && *fields.IsGraduated {
		// Graduation is monotone: never clear it once set.
		sets = append(sets, "is_graduated = 1")
		if fields.GraduationSig != "" {
			sets = append(sets, "graduation_sig = ?")
			args = append(args, fields.GraduationSig)
		}
		if fields.GraduationTime != 0 {
			sets = append(sets, "graduation_time = ?")
			args = append(args, fields.GraduationTime)
		}
	}

	if len(sets) == 0 {
		return nil
	}

	query := "UPDATE tokens SET " + strings.Join(sets, ", ") + " WHERE id = ?"
	args = append(args, id)
	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

// MarkTokenGraduated sets Token.isGraduated and its graduation fields. Once set,
// no subsequent call lowers it (graduation monotonicity, §8).
func (s *Store) MarkTokenGraduated(ctx context.Context, tokenID int64, sig string, when int64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE tokens SET is_graduated = 1, graduation_sig = ?, graduation_time = ?
		WHERE id = ? AND is_graduated = 0`, sig, when, tokenID)
	return err
}

// GetTokenByMint returns a Token by mint address, or nil if unknown.
func (s *Store) GetTokenByMint(ctx context.Context, mintAddr string) (*Token, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, mint_address, symbol, name, decimals, venue, creation_sig, creation_time,
		       creator, is_graduated, graduation_sig, graduation_time
		FROM tokens WHERE mint_address = ?`, mintAddr)
	return scanToken(row)
}

// GetToken returns a Token by id, or nil if unknown.
func (s *Store) GetToken(ctx context.Context, id int64) (*Token, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, mint_address, symbol, name, decimals, venue, creation_sig, creation_time,
		       creator, is_graduated, graduation_sig, graduation_time
		FROM tokens WHERE id = ?`, id)
	return scanToken(row)
}

func scanToken(row *sql.Row) (*Token, error) {
	var t Token
	var isGrad int
	err := row.Scan(&t.ID, &t.MintAddress, &t.Symbol, &t.Name, &t.Decimals, &t.Venue,
		&t.CreationSig, &t.CreationTime, &t.Creator, &isGrad, &t.GraduationSig, &t.GraduationTime)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	t.IsGraduated = isGrad != 0
	return &t, nil
}
