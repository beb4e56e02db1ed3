package pgrepo

import (
	"context"

	"github.com/fsdevblog/groph-invest/internal/domain"
	"github.com/fsdevblog/groph-invest/pkg/uow"
)

type PlanRepository struct {
	conn uow.DBTX
}

func NewPlanRepository(conn uow.DBTX) *PlanRepository {
	return &PlanRepository{conn: conn}
}

func (r *PlanRepository) GetByID(ctx context.Context, id int64) (*domain.Plan, error) {
	var p domain.Plan
	err := r.conn.QueryRow(ctx,
		`SELECT id, created_at, updated_at, name, profit_percent, interval_hours, duration_days,
		        min_amount, max_amount, is_active
		 FROM plans WHERE id = $1`,
		id,
	).Scan(
		&p.ID, &p.CreatedAt, &p.UpdatedAt, &p.Name, &p.ProfitPercent, &p.IntervalHours, &p.DurationDays,
		&p.MinAmount, &p.MaxAmount, &p.IsActive,
	)
	if err != nil {
		return nil, convertErr(err, "getting plan %d", id)
	}
	return &p, nil
}
