package memory

import (
	"cmp"
	"context"
	"slices"
	"strings"

	"coldledger/internal/core/apperror"
	"coldledger/internal/core/entity"
	"coldledger/internal/core/id"
	"coldledger/internal/core/types"
	"coldledger/internal/domain"
	"coldledger/internal/domain/catalogs/deduction"
	"coldledger/internal/domain/catalogs/party"
	"coldledger/internal/domain/catalogs/product"
)

// matchCatalog applies the common search term to a catalog header.
func matchCatalog(c *entity.Catalog, search string) bool {
	if search == "" {
		return true
	}
	s := strings.ToLower(search)
	return strings.Contains(strings.ToLower(c.Code), s) || strings.Contains(strings.ToLower(c.Name), s)
}

// sortCatalog orders by code, name or created_at; a leading "-" reverses.
func sortCatalog[T any](items []T, orderBy string, header func(T) *entity.Catalog) {
	desc := strings.HasPrefix(orderBy, "-")
	field := strings.TrimPrefix(orderBy, "-")
	slices.SortStableFunc(items, func(a, b T) int {
		ha, hb := header(a), header(b)
		var c int
		switch field {
		case "code":
			c = cmp.Compare(ha.Code, hb.Code)
		case "created_at", "createdAt":
			c = ha.CreatedAt.Compare(hb.CreatedAt)
		default:
			c = cmp.Compare(ha.Name, hb.Name)
		}
		if desc {
			return -c
		}
		return c
	})
}

// --- Parties ---

// PartyRepo implements party.Repository.
type PartyRepo struct {
	s *Store
}

// NewPartyRepo creates the party repository.
func NewPartyRepo(s *Store) *PartyRepo {
	return &PartyRepo{s: s}
}

var _ party.Repository = (*PartyRepo)(nil)

func (r *PartyRepo) Create(ctx context.Context, p *party.Party) error {
	var err error
	r.s.write(func(t *tables) {
		for _, other := range t.parties {
			if other.Code == p.Code {
				err = apperror.NewDuplicate("party", "code", p.Code)
				return
			}
		}
		t.parties[p.ID] = *p
	})
	return err
}

func (r *PartyRepo) GetByID(ctx context.Context, partyID id.ID) (*party.Party, error) {
	var (
		out *party.Party
		err error
	)
	r.s.read(func(t *tables) {
		p, ok := t.parties[partyID]
		if !ok {
			err = apperror.NewNotFound("party", partyID.String())
			return
		}
		out = &p
	})
	return out, err
}

func (r *PartyRepo) GetForUpdate(ctx context.Context, partyID id.ID) (*party.Party, error) {
	return r.GetByID(ctx, partyID)
}

func (r *PartyRepo) GetByCode(ctx context.Context, code string) (*party.Party, error) {
	var out *party.Party
	r.s.read(func(t *tables) {
		for _, p := range t.parties {
			if p.Code == code {
				out = &p
				return
			}
		}
	})
	if out == nil {
		return nil, apperror.NewNotFound("party", code)
	}
	return out, nil
}

func (r *PartyRepo) Update(ctx context.Context, p *party.Party) error {
	var err error
	r.s.write(func(t *tables) {
		if _, ok := t.parties[p.ID]; !ok {
			err = apperror.NewNotFound("party", p.ID.String())
			return
		}
		for _, other := range t.parties {
			if other.ID != p.ID && other.Code == p.Code {
				err = apperror.NewDuplicate("party", "code", p.Code)
				return
			}
		}
		t.parties[p.ID] = *p
	})
	return err
}

func (r *PartyRepo) Delete(ctx context.Context, partyID id.ID) error {
	var err error
	r.s.write(func(t *tables) {
		if _, ok := t.parties[partyID]; !ok {
			err = apperror.NewNotFound("party", partyID.String())
			return
		}
		delete(t.parties, partyID)
	})
	return err
}

func (r *PartyRepo) List(ctx context.Context, filter domain.ListFilter) (domain.ListResult[*party.Party], error) {
	var items []*party.Party
	r.s.read(func(t *tables) {
		for _, p := range t.parties {
			if matchCatalog(&p.Catalog, filter.Search) {
				items = append(items, &p)
			}
		}
	})
	sortCatalog(items, filter.OrderBy, func(p *party.Party) *entity.Catalog { return &p.Catalog })
	return domain.Page(items, filter.Limit, filter.Offset), nil
}

func (r *PartyRepo) AdjustBalance(ctx context.Context, partyID id.ID, delta types.Money) error {
	var err error
	r.s.write(func(t *tables) {
		p, ok := t.parties[partyID]
		if !ok {
			err = apperror.NewNotFound("party", partyID.String())
			return
		}
		p.CurrentBalance = p.CurrentBalance.Add(delta)
		t.parties[partyID] = p
	})
	return err
}

func (r *PartyRepo) IsReferenced(ctx context.Context, partyID id.ID) (bool, error) {
	used := false
	r.s.read(func(t *tables) {
		for _, o := range t.orders {
			if o.SourceID == partyID || o.TargetID == partyID ||
				(o.LogisticsPartyID != nil && *o.LogisticsPartyID == partyID) {
				used = true
				return
			}
		}
		for _, st := range t.stocks {
			if st.WarehouseID == partyID {
				used = true
				return
			}
		}
		for _, e := range t.entries {
			if e.PartyID == partyID {
				used = true
				return
			}
		}
	})
	return used, nil
}

// --- Products ---

// ProductRepo implements product.Repository. Specs are copied on every read
// and write.
type ProductRepo struct {
	s *Store
}

// NewProductRepo creates the product repository.
func NewProductRepo(s *Store) *ProductRepo {
	return &ProductRepo{s: s}
}

var _ product.Repository = (*ProductRepo)(nil)

func cloneProduct(p product.Product) *product.Product {
	p.Specs = slices.Clone(p.Specs)
	return &p
}

func (r *ProductRepo) Create(ctx context.Context, p *product.Product) error {
	var err error
	r.s.write(func(t *tables) {
		for _, other := range t.products {
			if other.Code == p.Code {
				err = apperror.NewDuplicate("product", "code", p.Code)
				return
			}
		}
		t.products[p.ID] = *cloneProduct(*p)
	})
	return err
}

func (r *ProductRepo) GetByID(ctx context.Context, productID id.ID) (*product.Product, error) {
	var out *product.Product
	r.s.read(func(t *tables) {
		if p, ok := t.products[productID]; ok {
			out = cloneProduct(p)
		}
	})
	if out == nil {
		return nil, apperror.NewNotFound("product", productID.String())
	}
	return out, nil
}

func (r *ProductRepo) GetByCode(ctx context.Context, code string) (*product.Product, error) {
	var out *product.Product
	r.s.read(func(t *tables) {
		for _, p := range t.products {
			if p.Code == code {
				out = cloneProduct(p)
				return
			}
		}
	})
	if out == nil {
		return nil, apperror.NewNotFound("product", code)
	}
	return out, nil
}

func (r *ProductRepo) Update(ctx context.Context, p *product.Product) error {
	var err error
	r.s.write(func(t *tables) {
		if _, ok := t.products[p.ID]; !ok {
			err = apperror.NewNotFound("product", p.ID.String())
			return
		}
		for _, other := range t.products {
			if other.ID != p.ID && other.Code == p.Code {
				err = apperror.NewDuplicate("product", "code", p.Code)
				return
			}
		}
		t.products[p.ID] = *cloneProduct(*p)
	})
	return err
}

func (r *ProductRepo) Delete(ctx context.Context, productID id.ID) error {
	var err error
	r.s.write(func(t *tables) {
		if _, ok := t.products[productID]; !ok {
			err = apperror.NewNotFound("product", productID.String())
			return
		}
		delete(t.products, productID)
	})
	return err
}

func (r *ProductRepo) List(ctx context.Context, filter domain.ListFilter) (domain.ListResult[*product.Product], error) {
	var items []*product.Product
	r.s.read(func(t *tables) {
		for _, p := range t.products {
			if matchCatalog(&p.Catalog, filter.Search) {
				items = append(items, cloneProduct(p))
			}
		}
	})
	sortCatalog(items, filter.OrderBy, func(p *product.Product) *entity.Catalog { return &p.Catalog })
	return domain.Page(items, filter.Limit, filter.Offset), nil
}

// --- Deduction formulas ---

// FormulaRepo implements deduction.Repository.
type FormulaRepo struct {
	s *Store
}

// NewFormulaRepo creates the formula repository.
func NewFormulaRepo(s *Store) *FormulaRepo {
	return &FormulaRepo{s: s}
}

var _ deduction.Repository = (*FormulaRepo)(nil)

func (r *FormulaRepo) Create(ctx context.Context, f *deduction.Formula) error {
	var err error
	r.s.write(func(t *tables) {
		for _, other := range t.formulas {
			if strings.EqualFold(other.Name, f.Name) {
				err = apperror.NewDuplicate("formula", "name", f.Name)
				return
			}
		}
		t.formulas[f.ID] = *f
	})
	return err
}

func (r *FormulaRepo) GetByID(ctx context.Context, formulaID id.ID) (*deduction.Formula, error) {
	var out *deduction.Formula
	r.s.read(func(t *tables) {
		if f, ok := t.formulas[formulaID]; ok {
			out = &f
		}
	})
	if out == nil {
		return nil, apperror.NewNotFound("formula", formulaID.String())
	}
	return out, nil
}

func (r *FormulaRepo) GetByName(ctx context.Context, name string) (*deduction.Formula, error) {
	var out *deduction.Formula
	r.s.read(func(t *tables) {
		for _, f := range t.formulas {
			if strings.EqualFold(f.Name, name) {
				out = &f
				return
			}
		}
	})
	if out == nil {
		return nil, apperror.NewNotFound("formula", name)
	}
	return out, nil
}

func (r *FormulaRepo) Update(ctx context.Context, f *deduction.Formula) error {
	var err error
	r.s.write(func(t *tables) {
		if _, ok := t.formulas[f.ID]; !ok {
			err = apperror.NewNotFound("formula", f.ID.String())
			return
		}
		for _, other := range t.formulas {
			if other.ID != f.ID && strings.EqualFold(other.Name, f.Name) {
				err = apperror.NewDuplicate("formula", "name", f.Name)
				return
			}
		}
		t.formulas[f.ID] = *f
	})
	return err
}

func (r *FormulaRepo) Delete(ctx context.Context, formulaID id.ID) error {
	var err error
	r.s.write(func(t *tables) {
		if _, ok := t.formulas[formulaID]; !ok {
			err = apperror.NewNotFound("formula", formulaID.String())
			return
		}
		delete(t.formulas, formulaID)
	})
	return err
}

// List orders by sort order, then name.
func (r *FormulaRepo) List(ctx context.Context, filter domain.ListFilter) (domain.ListResult[*deduction.Formula], error) {
	var items []*deduction.Formula
	search := strings.ToLower(filter.Search)
	r.s.read(func(t *tables) {
		for _, f := range t.formulas {
			if search == "" || strings.Contains(strings.ToLower(f.Name), search) {
				items = append(items, &f)
			}
		}
	})
	slices.SortFunc(items, func(a, b *deduction.Formula) int {
		if c := cmp.Compare(a.SortOrder, b.SortOrder); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
	return domain.Page(items, filter.Limit, filter.Offset), nil
}

func (r *FormulaRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	r.s.read(func(t *tables) { n = int64(len(t.formulas)) })
	return n, nil
}

func (r *FormulaRepo) ClearDefault(ctx context.Context, keepID id.ID) error {
	r.s.write(func(t *tables) {
		for fid, f := range t.formulas {
			if fid != keepID && f.IsDefault {
				f.IsDefault = false
				t.formulas[fid] = f
			}
		}
	})
	return nil
}

func (r *FormulaRepo) IsReferenced(ctx context.Context, formulaID id.ID) (bool, error) {
	used := false
	r.s.read(func(t *tables) {
		for _, l := range t.lots {
			if l.FormulaID != nil && *l.FormulaID == formulaID {
				used = true
				return
			}
		}
		for _, lines := range t.lines {
			for _, l := range lines {
				if l.FormulaID != nil && *l.FormulaID == formulaID {
					used = true
					return
				}
			}
		}
	})
	return used, nil
}
