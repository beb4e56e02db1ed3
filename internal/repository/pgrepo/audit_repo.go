package pgrepo

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/fsdevblog/groph-invest/internal/domain"
	"github.com/fsdevblog/groph-invest/internal/repository/repoargs"
	"github.com/fsdevblog/groph-invest/pkg/uow"
)

type AuditRepository struct {
	conn uow.DBTX
}

func NewAuditRepository(conn uow.DBTX) *AuditRepository {
	return &AuditRepository{conn: conn}
}

func (r *AuditRepository) Create(ctx context.Context, args repoargs.AuditCreate) error {
	before, beforeErr := marshalNullable(args.Before)
	if beforeErr != nil {
		return fmt.Errorf("[repository/creating audit record] %w: %w", domain.ErrUnknown, beforeErr)
	}
	after, afterErr := marshalNullable(args.After)
	if afterErr != nil {
		return fmt.Errorf("[repository/creating audit record] %w: %w", domain.ErrUnknown, afterErr)
	}

	_, err := r.conn.Exec(ctx,
		`INSERT INTO audit_logs (admin_id, action, entity, entity_id, before, after)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		args.AdminID, args.Action, args.Entity, args.EntityID, before, after,
	)
	return convertErr(err, "creating audit record %s", args.Action)
}

func marshalNullable(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v) //nolint:wrapcheck
}
