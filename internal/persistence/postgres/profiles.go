package postgres

import "context"

// UpsertProfile creates the user profile row if absent. An existing row is
// updated only when the stored name is empty or already equal to the new
// name, so a user-chosen name is never clobbered.
func (r *Repository) UpsertProfile(ctx context.Context, userID, name string) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO users (id, name) VALUES ($1, $2)
         ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name
         WHERE users.name IS NULL OR users.name = '' OR users.name = EXCLUDED.name`,
		userID, name)
	return err
}
