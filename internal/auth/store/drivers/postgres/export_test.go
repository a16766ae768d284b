package postgres

import "context"

func InsertForTest(ctx context.Context, s *Store, id string) error {
	_, err := s.pool.Exec(ctx, `INSERT INTO profiles (id) VALUES ($1::uuid)`, id)
	return err
}
