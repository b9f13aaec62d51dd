package port

import (
	"context"

	"github.com/nikolayk812/slotprice/internal/domain"
)

type CustomerGroupRepository interface {
	Create(ctx context.Context, group domain.CustomerGroup) (domain.CustomerGroup, error)
	Get(ctx context.Context, id string) (domain.CustomerGroup, error)
	List(ctx context.Context) ([]domain.CustomerGroup, error)
}
