package account

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coldledger/internal/core/types"
)

func TestDefaultRuleSet_Goods(t *testing.T) {
	rs := MustDefaultRuleSet()

	purchase := RuleInput{
		OrderType:   "purchase",
		Inbound:     true,
		SourceRoles: []string{"supplier"},
		TargetRoles: []string{"warehouse"},
		Amount:      types.MustMoney("1000"),
	}
	r, err := rs.Match(ComponentGoods, purchase)
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.Equal(t, "goods-in", r.Name)
	assert.Equal(t, PartySource, r.Party)
	assert.Equal(t, Payable, r.Type)

	sale := RuleInput{
		OrderType:   "sale",
		Outbound:    true,
		SourceRoles: []string{"warehouse"},
		TargetRoles: []string{"customer"},
		Amount:      types.MustMoney("450"),
	}
	r, err = rs.Match(ComponentGoods, sale)
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.Equal(t, PartyTarget, r.Party)
	assert.Equal(t, Receivable, r.Type)
}

func TestDefaultRuleSet_TransferHasNoGoodsEntry(t *testing.T) {
	rs := MustDefaultRuleSet()
	transfer := RuleInput{
		OrderType:   "transfer",
		Inbound:     true,
		Outbound:    true,
		SourceRoles: []string{"warehouse"},
		TargetRoles: []string{"warehouse"},
		Amount:      types.MustMoney("10"),
	}
	r, err := rs.Match(ComponentGoods, transfer)
	require.NoError(t, err)
	assert.Nil(t, r)
}

func TestDefaultRuleSet_FreightNeedsLogistics(t *testing.T) {
	rs := MustDefaultRuleSet()
	in := RuleInput{Outbound: true, Amount: types.MustMoney("80")}

	r, err := rs.Match(ComponentFreight, in)
	require.NoError(t, err)
	assert.Nil(t, r)

	in.HasLogistics = true
	r, err = rs.Match(ComponentFreight, in)
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.Equal(t, PartyLogistics, r.Party)
}

func TestDefaultRuleSet_StorageLegs(t *testing.T) {
	rs := MustDefaultRuleSet()

	r, err := rs.Match(ComponentStorage, RuleInput{StorageLeg: "outbound", Amount: types.MustMoney("5")})
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.Equal(t, PartySource, r.Party)

	r, err = rs.Match(ComponentStorage, RuleInput{StorageLeg: "inbound", Amount: types.MustMoney("5")})
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.Equal(t, PartyTarget, r.Party)

	r, err = rs.Match(ComponentStorage, RuleInput{Amount: types.MustMoney("5")})
	require.NoError(t, err)
	assert.Nil(t, r)
}

func TestDefaultRuleSet_OtherGoesToExpense(t *testing.T) {
	rs := MustDefaultRuleSet()
	r, err := rs.Match(ComponentOther, RuleInput{Amount: types.MustMoney("12.5")})
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.Equal(t, PartyExpense, r.Party)
}

func TestNewRuleSet_RejectsBadConditions(t *testing.T) {
	_, err := NewRuleSet([]Rule{{Name: "typo", Component: ComponentGoods, Condition: "inbound &&"}})
	assert.Error(t, err)

	_, err = NewRuleSet([]Rule{{Name: "not-bool", Component: ComponentGoods, Condition: "order_type"}})
	assert.Error(t, err)
}

func TestBucketFor(t *testing.T) {
	assert.Equal(t, BucketCurrent, BucketFor(0))
	assert.Equal(t, Bucket1To30, BucketFor(1))
	assert.Equal(t, Bucket1To30, BucketFor(30))
	assert.Equal(t, Bucket31To60, BucketFor(31))
	assert.Equal(t, Bucket61To90, BucketFor(90))
	assert.Equal(t, BucketOver90, BucketFor(91))
}

func TestEntry_Recalculate(t *testing.T) {
	e := &Entry{Amount: types.MustMoney("100"), PaidAmount: types.Zero(), Type: Receivable}
	e.Recalculate()
	assert.Equal(t, StatusPending, e.Status)

	e.PaidAmount = types.MustMoney("40")
	e.Recalculate()
	assert.Equal(t, StatusPartial, e.Status)
	assert.True(t, e.Balance.Equal(types.MustMoney("60")))
	assert.True(t, e.SignedBalance().Equal(types.MustMoney("60")))

	e.PaidAmount = types.MustMoney("100")
	e.Recalculate()
	assert.Equal(t, StatusPaid, e.Status)

	p := &Entry{Amount: types.MustMoney("30"), PaidAmount: types.Zero(), Type: Payable}
	p.Recalculate()
	assert.True(t, p.SignedBalance().Equal(types.MustMoney("-30")))
}

func TestEntry_RecalculateZeroAmountIsPaid(t *testing.T) {
	e := &Entry{Amount: types.Zero(), PaidAmount: types.Zero(), Type: Receivable}
	e.Recalculate()
	assert.Equal(t, StatusPaid, e.Status)
	assert.True(t, e.Balance.IsZero())

	c := &Entry{Amount: types.Zero(), PaidAmount: types.Zero(), Status: StatusCancelled}
	c.Recalculate()
	assert.Equal(t, StatusCancelled, c.Status)
}
