package store

import (
	"context"
	"time"

	"github.com/suxofrukt/WeatherTRPP/internal/domain"
)

// SaveRequest appends a successful interactive lookup to the history log.
func (r *SQLRepo) SaveRequest(ctx context.Context, req domain.WeatherRequest) error {
	at := req.RequestedAt
	if at.IsZero() {
		at = time.Now()
	}
	_, err := r.db.ExecContext(ctx, r.d.rebind(`
		INSERT INTO weather_requests (user_id, username, city, kind, requested_at)
		VALUES (?, ?, ?, ?, ?)`),
		req.UserID, req.Username, req.City, string(req.Kind), at.UTC().Unix(),
	)
	return classify(err)
}

// History returns the user's most recent lookups, newest first.
func (r *SQLRepo) History(ctx context.Context, userID int64, limit int) ([]domain.WeatherRequest, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := r.db.QueryContext(ctx, r.d.rebind(`
		SELECT user_id, username, city, kind, requested_at
		FROM weather_requests
		WHERE user_id = ?
		ORDER BY requested_at DESC, id DESC
		LIMIT ?`),
		userID, limit,
	)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var res []domain.WeatherRequest
	for rows.Next() {
		var (
			req  domain.WeatherRequest
			kind string
			at   int64
		)
		if err := rows.Scan(&req.UserID, &req.Username, &req.City, &kind, &at); err != nil {
			return nil, classify(err)
		}
		req.Kind = domain.RequestKind(kind)
		req.RequestedAt = time.Unix(at, 0).UTC()
		res = append(res, req)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}
	return res, nil
}
