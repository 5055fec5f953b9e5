package party

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRole_HasAndStrings(t *testing.T) {
	r := RoleWarehouse | RoleTransit

	assert.True(t, r.Has(RoleWarehouse))
	assert.True(t, r.Has(RoleWarehouse|RoleTransit))
	assert.False(t, r.Has(RoleSupplier))
	assert.False(t, r.Has(0))
	assert.Equal(t, []string{"warehouse", "transit"}, r.Strings())
}

func TestParseRoles(t *testing.T) {
	r, err := ParseRoles([]string{"Supplier", " customer "})
	require.NoError(t, err)
	assert.Equal(t, RoleSupplier|RoleCustomer, r)

	_, err = ParseRoles([]string{"pirate"})
	assert.Error(t, err)
}

func TestRole_JSON(t *testing.T) {
	data, err := json.Marshal(RoleCustomer | RoleLogistics)
	require.NoError(t, err)
	assert.JSONEq(t, `["customer","logistics"]`, string(data))

	var back Role
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, RoleCustomer|RoleLogistics, back)
}

func TestParty_Validate(t *testing.T) {
	ctx := context.Background()

	p := NewParty("WH-1", "Harbor cold store", RoleWarehouse)
	assert.NoError(t, p.Validate(ctx))
	assert.True(t, p.IsWarehouse())
	assert.False(t, p.IsTransit())

	p.Roles = RoleTransit
	assert.Error(t, p.Validate(ctx), "transit without warehouse")

	p.Roles = 0
	assert.Error(t, p.Validate(ctx))

	truck := NewParty("TR-1", "Reefer truck", RoleWarehouse|RoleTransit)
	assert.True(t, truck.IsTransit())
}
