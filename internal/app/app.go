// Package app wires repositories into the domain services.
package app

import (
	"context"

	corenumerator "coldledger/internal/core/numerator"
	"coldledger/internal/core/tx"
	"coldledger/internal/domain/catalogs/deduction"
	"coldledger/internal/domain/catalogs/party"
	"coldledger/internal/domain/catalogs/product"
	"coldledger/internal/domain/documents/order"
	"coldledger/internal/domain/registers/account"
	"coldledger/internal/domain/registers/lot"
	"coldledger/internal/domain/registers/stock"
	"coldledger/internal/domain/storagefee"
	"coldledger/internal/infrastructure/numerator"
	"coldledger/internal/infrastructure/storage/memory"
	"coldledger/internal/infrastructure/storage/postgres"
	"coldledger/internal/infrastructure/storage/postgres/catalog_repo"
	"coldledger/internal/infrastructure/storage/postgres/document_repo"
	"coldledger/internal/infrastructure/storage/postgres/register_repo"
)

// Repositories is one storage backend.
type Repositories struct {
	Parties   party.Repository
	Products  product.Repository
	Formulas  deduction.Repository
	Stock     stock.Repository
	Lots      lot.Repository
	Accounts  account.Repository
	Orders    order.Repository
	Archive   order.Archive
	TxManager tx.Manager
	Numerator corenumerator.Generator
}

// MemoryRepositories builds a backend over an in-memory store.
func MemoryRepositories(store *memory.Store, numerator corenumerator.Generator) Repositories {
	return Repositories{
		Parties:   memory.NewPartyRepo(store),
		Products:  memory.NewProductRepo(store),
		Formulas:  memory.NewFormulaRepo(store),
		Stock:     memory.NewStockRepo(store),
		Lots:      memory.NewLotRepo(store),
		Accounts:  memory.NewAccountRepo(store),
		Orders:    memory.NewOrderRepo(store),
		Archive:   memory.NewArchive(store),
		TxManager: memory.NewTxManager(store),
		Numerator: numerator,
	}
}

// PostgresRepositories builds a backend over a connection pool. Document
// numbers are drawn inside the caller's transaction.
func PostgresRepositories(pool *postgres.Pool, archiveThreshold int) (Repositories, error) {
	txm := postgres.NewTxManager(pool)
	archive, err := postgres.NewOrderArchive(txm, archiveThreshold)
	if err != nil {
		return Repositories{}, err
	}
	return Repositories{
		Parties:   catalog_repo.NewPartyRepo(txm),
		Products:  catalog_repo.NewProductRepo(txm),
		Formulas:  catalog_repo.NewFormulaRepo(txm),
		Stock:     register_repo.NewStockRepo(txm),
		Lots:      register_repo.NewLotRepo(txm),
		Accounts:  register_repo.NewAccountRepo(txm),
		Orders:    document_repo.NewOrderRepo(txm),
		Archive:   archive,
		TxManager: txm,
		Numerator: numerator.NewWithProvider(func(ctx context.Context) numerator.Querier {
			return txm.GetQuerier(ctx)
		}),
	}, nil
}

// Options tune the services.
type Options struct {
	StrictAllocation bool
	StorageFee       storagefee.Config
	// Rules replaces the default account rules when set.
	Rules *account.RuleSet
}

// DefaultOptions returns lenient allocation and the default tariff.
func DefaultOptions() Options {
	return Options{StorageFee: storagefee.DefaultConfig()}
}

// Services is the full domain layer.
type Services struct {
	Parties    *party.Service
	Products   *product.Service
	Formulas   *deduction.Service
	Stock      *stock.Service
	Lots       *lot.Service
	Accounts   *account.Service
	StorageFee *storagefee.Calculator
	Orders     *order.Service
}

// NewServices builds every service over r.
func NewServices(r Repositories, opts Options) *Services {
	parties := party.NewService(r.Parties, r.TxManager)
	products := product.NewService(r.Products, r.TxManager)
	formulas := deduction.NewService(r.Formulas, r.TxManager)
	stockSvc := stock.NewService(r.Stock, r.TxManager)
	lots := lot.NewService(r.Lots, r.TxManager, r.Numerator, stockSvc, formulas, parties,
		lot.Config{StrictAllocation: opts.StrictAllocation})
	accounts := account.NewService(r.Accounts, r.TxManager, parties, opts.Rules)
	fees := storagefee.NewCalculator(opts.StorageFee, lots)

	orders := order.NewService(order.Deps{
		Repo:      r.Orders,
		TxManager: r.TxManager,
		Numerator: r.Numerator,
		Parties:   parties,
		Products:  products,
		Formulas:  formulas,
		Stock:     stockSvc,
		Lots:      lots,
		Fees:      fees,
		Accounts:  accounts,
		Archive:   r.Archive,
	})
	stockSvc.SetHistory(order.NewHistory(r.Orders))

	return &Services{
		Parties:    parties,
		Products:   products,
		Formulas:   formulas,
		Stock:      stockSvc,
		Lots:       lots,
		Accounts:   accounts,
		StorageFee: fees,
		Orders:     orders,
	}
}
