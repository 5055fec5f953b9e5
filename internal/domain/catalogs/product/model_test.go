package product

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"coldledger/internal/core/id"
	"coldledger/internal/core/types"
)

func TestProduct_Validate_SingleDefaultSpec(t *testing.T) {
	ctx := context.Background()
	qty := types.MustMoney("15")

	p := NewProduct("HAKE", "Frozen hake")
	p.Specs = []PackagingSpec{
		{ID: id.New(), Name: "case", ContainerName: "case", UnitQuantity: &qty, IsDefault: true},
		{ID: id.New(), Name: "bulk", ContainerName: "tote"},
	}
	assert.NoError(t, p.Validate(ctx))

	p.Specs[1].IsDefault = true
	assert.Error(t, p.Validate(ctx))
}

func TestProduct_SpecLookup(t *testing.T) {
	p := NewProduct("SQ", "Squid")
	specID := id.New()
	p.Specs = []PackagingSpec{{ID: specID, Name: "10kg box", IsDefault: true}}

	s, ok := p.Spec(specID)
	assert.True(t, ok)
	assert.Equal(t, "10kg box", s.Name)

	_, ok = p.Spec(id.New())
	assert.False(t, ok)

	d, ok := p.DefaultSpec()
	assert.True(t, ok)
	assert.Equal(t, specID, d.ID)
}

func TestProduct_Validate_RejectsNonPositiveUnit(t *testing.T) {
	zero := types.Zero()
	p := NewProduct("SQ", "Squid")
	p.Specs = []PackagingSpec{{Name: "box", UnitQuantity: &zero}}
	assert.Error(t, p.Validate(context.Background()))
}
