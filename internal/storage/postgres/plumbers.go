package postgres

import (
	"context"
	"fmt"

	"github.com/gocraft/dbr/v2"
	"go.uber.org/zap"

	"github.com/wilesp/plumbflow-platform/internal/models"
)

func (s *Store) ActivePlumbers(ctx context.Context) ([]models.Plumber, error) {
	var plumbers []models.Plumber

	_, err := s.sess.
		Select("*").
		From("plumbers").
		Where("status = ?", models.PlumberStatusActive).
		OrderAsc("id").
		LoadContext(ctx, &plumbers)

	if err != nil {
		s.logger.Error("failed to get active plumbers", zap.Error(err))
		return nil, fmt.Errorf("get active plumbers: %w", err)
	}

	return plumbers, nil
}

func (s *Store) GetPlumber(ctx context.Context, id int64) (*models.Plumber, error) {
	return s.getPlumber(ctx, "id = ?", id)
}

func (s *Store) GetPlumberByTelegramID(ctx context.Context, telegramID int64) (*models.Plumber, error) {
	return s.getPlumber(ctx, "telegram_id = ?", telegramID)
}

func (s *Store) getPlumber(ctx context.Context, where string, arg interface{}) (*models.Plumber, error) {
	var p models.Plumber

	err := s.sess.
		Select("*").
		From("plumbers").
		Where(where, arg).
		LoadOneContext(ctx, &p)

	if err == dbr.ErrNotFound {
		return nil, nil
	}

	if err != nil {
		s.logger.Error("failed to get plumber",
			zap.String("where", where),
			zap.Any("arg", arg),
			zap.Error(err),
		)
		return nil, fmt.Errorf("get plumber: %w", err)
	}

	return &p, nil
}

// SetAvailableToday sets same-day availability for the plumber behind
// telegramID
func (s *Store) SetAvailableToday(ctx context.Context, telegramID int64, available bool) error {
	res, err := s.sess.
		Update("plumbers").
		Set("available_today", available).
		Where("telegram_id = ?", telegramID).
		ExecContext(ctx)

	if err != nil {
		s.logger.Error("failed to set availability",
			zap.Int64("telegram_id", telegramID),
			zap.Bool("available", available),
			zap.Error(err),
		)
		return fmt.Errorf("set availability: %w", err)
	}

	if n, _ := res.RowsAffected(); n == 0 {
		return models.ErrNotFound
	}

	s.logger.Info("availability updated",
		zap.Int64("telegram_id", telegramID),
		zap.Bool("available", available),
	)

	return nil
}
