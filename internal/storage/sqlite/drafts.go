package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-formsheet/pkg/answers"
	"github.com/goliatone/go-formsheet/pkg/draft"
)

// DraftStore keeps one draft slot in the drafts table.
type DraftStore struct {
	store *Store
	slot  string
	now   func() time.Time
}

// Drafts returns a draft store for slot, or draft.DefaultSlot when slot is
// blank.
func (s *Store) Drafts(slot string) *DraftStore {
	slot = strings.TrimSpace(slot)
	if slot == "" {
		slot = draft.DefaultSlot
	}
	return &DraftStore{store: s, slot: slot, now: time.Now}
}

func (d *DraftStore) Load(ctx context.Context) (*answers.Mapping, error) {
	if err := d.store.ready(ctx); err != nil {
		return nil, err
	}
	var payload string
	err := d.store.db.QueryRowContext(ctx, `SELECT payload FROM drafts WHERE slot = ?`, d.slot).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, draft.ErrNoDraft
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: load draft: %w", err)
	}
	value, err := answers.ParseMapping([]byte(payload))
	if err != nil {
		return nil, fmt.Errorf("sqlite: decode draft: %w", err)
	}
	return value, nil
}

func (d *DraftStore) Save(ctx context.Context, value *answers.Mapping) error {
	if err := d.store.ready(ctx); err != nil {
		return err
	}
	if value == nil {
		value = answers.NewMapping()
	}
	payload, err := answers.Marshal(value)
	if err != nil {
		return fmt.Errorf("sqlite: encode draft: %w", err)
	}
	_, err = d.store.db.ExecContext(ctx, `
INSERT INTO drafts (slot, payload, updated_at) VALUES (?, ?, ?)
ON CONFLICT (slot) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at
`, d.slot, string(payload), d.now().UTC().UnixMilli())
	if err != nil {
		return fmt.Errorf("sqlite: save draft: %w", err)
	}
	return nil
}

func (d *DraftStore) Clear(ctx context.Context) error {
	if err := d.store.ready(ctx); err != nil {
		return err
	}
	if _, err := d.store.db.ExecContext(ctx, `DELETE FROM drafts WHERE slot = ?`, d.slot); err != nil {
		return fmt.Errorf("sqlite: clear draft: %w", err)
	}
	return nil
}
