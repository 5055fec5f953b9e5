package catalog_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"

	"coldledger/internal/core/id"
	"coldledger/internal/domain"
	"coldledger/internal/domain/catalogs/product"
	"coldledger/internal/infrastructure/storage/postgres"
)

const (
	productTable = "products"
	specTable    = "product_specs"
)

var specColumns = postgres.Columns[product.PackagingSpec]()

// ProductRepo implements product.Repository. Specs live in their own table
// and are replaced wholesale on every write.
type ProductRepo struct {
	*BaseCatalogRepo[*product.Product]
}

var _ product.Repository = (*ProductRepo)(nil)

// NewProductRepo creates a product repository.
func NewProductRepo(txm *postgres.TxManager) *ProductRepo {
	return &ProductRepo{
		BaseCatalogRepo: NewBaseCatalogRepo(
			txm,
			productTable,
			"product",
			postgres.Columns[product.Product](),
			func() *product.Product { return &product.Product{} },
		),
	}
}

func (r *ProductRepo) Create(ctx context.Context, p *product.Product) error {
	return r.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := r.BaseCatalogRepo.Create(ctx, p); err != nil {
			return err
		}
		return r.saveSpecs(ctx, p)
	})
}

func (r *ProductRepo) Update(ctx context.Context, p *product.Product) error {
	return r.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := r.BaseCatalogRepo.Update(ctx, p); err != nil {
			return err
		}
		return r.saveSpecs(ctx, p)
	})
}

func (r *ProductRepo) GetByID(ctx context.Context, productID id.ID) (*product.Product, error) {
	p, err := r.BaseCatalogRepo.GetByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	return p, r.loadSpecs(ctx, p)
}

func (r *ProductRepo) GetByCode(ctx context.Context, code string) (*product.Product, error) {
	p, err := r.BaseCatalogRepo.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	return p, r.loadSpecs(ctx, p)
}

func (r *ProductRepo) List(ctx context.Context, filter domain.ListFilter) (domain.ListResult[*product.Product], error) {
	res, err := r.BaseCatalogRepo.List(ctx, filter)
	if err != nil {
		return res, err
	}
	if len(res.Items) == 0 {
		return res, nil
	}

	ids := make([]id.ID, len(res.Items))
	byID := make(map[id.ID]*product.Product, len(res.Items))
	for i, p := range res.Items {
		ids[i] = p.ID
		byID[p.ID] = p
	}
	var specs []product.PackagingSpec
	if err := postgres.SelectAll(ctx, r.querier(ctx), &specs, postgres.Builder().
		Select(specColumns...).
		From(specTable).
		Where(squirrel.Eq{"product_id": ids}).
		OrderBy("product_id", "name")); err != nil {
		return res, fmt.Errorf("list product specs: %w", err)
	}
	for _, s := range specs {
		p := byID[s.ProductID]
		p.Specs = append(p.Specs, s)
	}
	return res, nil
}

func (r *ProductRepo) loadSpecs(ctx context.Context, p *product.Product) error {
	p.Specs = nil
	if err := postgres.SelectAll(ctx, r.querier(ctx), &p.Specs, postgres.Builder().
		Select(specColumns...).
		From(specTable).
		Where(squirrel.Eq{"product_id": p.ID}).
		OrderBy("name")); err != nil {
		return fmt.Errorf("load product specs: %w", err)
	}
	return nil
}

func (r *ProductRepo) saveSpecs(ctx context.Context, p *product.Product) error {
	q := r.querier(ctx)
	if _, err := postgres.Exec(ctx, q, postgres.Builder().
		Delete(specTable).
		Where(squirrel.Eq{"product_id": p.ID})); err != nil {
		return fmt.Errorf("clear product specs: %w", err)
	}
	if len(p.Specs) == 0 {
		return nil
	}
	ins := postgres.Builder().Insert(specTable).Columns(specColumns...)
	for i := range p.Specs {
		p.Specs[i].ProductID = p.ID
		ins = ins.Values(postgres.RowValues(&p.Specs[i], specColumns)...)
	}
	if _, err := postgres.Exec(ctx, q, ins); err != nil {
		return fmt.Errorf("insert product specs: %w", err)
	}
	return nil
}
