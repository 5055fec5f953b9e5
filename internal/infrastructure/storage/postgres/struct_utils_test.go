package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"coldledger/internal/core/entity"
	"coldledger/internal/core/id"
	"coldledger/internal/core/types"
	"coldledger/internal/domain/catalogs/party"
	"coldledger/internal/domain/registers/stock"
)

func TestColumns_EmbeddedCatalog(t *testing.T) {
	cols := Columns[party.Party]()

	assert.Equal(t, []string{"id", "code", "name", "is_active", "created_at", "updated_at"}, cols[:6])
	assert.Contains(t, cols, "roles")
	assert.Contains(t, cols, "current_balance")
	assert.NotContains(t, cols, "")
}

func TestStructToMap_Party(t *testing.T) {
	p := party.NewParty("WH-1", "Cold store", party.RoleWarehouse)
	p.CreditLimit = types.DecPtr(types.MustMoney("5000"))

	m := StructToMap(p)

	assert.Equal(t, p.ID, m["id"])
	assert.Equal(t, "WH-1", m["code"])
	assert.Equal(t, party.RoleWarehouse, m["roles"])
	assert.Equal(t, p.CreditLimit, m["credit_limit"])
	assert.Nil(t, StructToMap((*party.Party)(nil)))
}

func TestRowValues_Order(t *testing.T) {
	f := &stock.Flow{
		ID:             id.New(),
		Type:           stock.FlowIn,
		QuantityChange: types.MustMoney("12.5"),
		OperatedAt:     time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC),
	}
	vals := RowValues(f, []string{"flow_type", "quantity_change", "missing"})

	assert.Equal(t, stock.FlowIn, vals[0])
	assert.Equal(t, f.QuantityChange, vals[1])
	assert.Nil(t, vals[2])
}

func TestWithout(t *testing.T) {
	cols := Columns[entity.Catalog]()
	assert.Equal(t, []string{"code", "name", "is_active", "created_at", "updated_at"}, Without(cols, "id"))
}
