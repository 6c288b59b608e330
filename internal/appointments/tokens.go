package appointments

import (
	"context"

	"github.com/google/uuid"
)

// nextTokenQuery allocates the next offline token of a doctor's day in one statement. The counter
// row is created from the highest stored token, or moved past it, and its row lock serializes
// concurrent allocations for the same doctor and date until the transaction ends.
const nextTokenQuery = "INSERT INTO tb_token_counter AS c (did, token_date, last_token)" +
	" VALUES ($1, $2, COALESCE((SELECT MAX(token_number) FROM tb_appointment WHERE did = $1 AND scheduled_date = $2 AND mode = 'offline'), 0) + 1)" +
	" ON CONFLICT (did, token_date) DO UPDATE SET last_token = GREATEST(c.last_token, EXCLUDED.last_token - 1) + 1" +
	" RETURNING last_token"

// TokenAllocator hands out the offline queue positions of a doctor's day.
type TokenAllocator interface {

	// NextToken returns the next token of the given doctor and date, starting at 1.
	NextToken(ctx context.Context, did uuid.UUID, date string) (int32, error)
}

func (d defaultRepository) NextToken(ctx context.Context, did uuid.UUID, date string) (int32, error) {
	ctx, cancel := d.dbConn.CreateContext(ctx)
	defer cancel()
	var token int32
	if err := d.querier.QueryRowContext(ctx, nextTokenQuery, did, date).Scan(&token); err != nil {
		return 0, err
	}
	return token, nil
}
