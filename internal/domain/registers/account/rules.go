package account

import (
	"fmt"

	"github.com/google/cel-go/cel"

	"coldledger/internal/core/types"
)

// Counterparty selects which party of an order an entry is booked against.
type Counterparty string

const (
	PartySource    Counterparty = "source"
	PartyTarget    Counterparty = "target"
	PartyLogistics Counterparty = "logistics"
	PartyExpense   Counterparty = "expense"
)

// Rule maps a component to a counterparty and entry type when Condition holds.
type Rule struct {
	Name      string
	Component Component
	Condition string
	Party     Counterparty
	Type      EntryType
}

// DefaultRules is the standard entry table. The first matching rule per component wins.
func DefaultRules() []Rule {
	return []Rule{
		{
			Name:      "goods-in",
			Component: ComponentGoods,
			Condition: `inbound && !outbound && ('supplier' in source_roles || 'customer' in source_roles)`,
			Party:     PartySource,
			Type:      Payable,
		},
		{
			Name:      "goods-out",
			Component: ComponentGoods,
			Condition: `outbound && !inbound && ('supplier' in target_roles || 'customer' in target_roles)`,
			Party:     PartyTarget,
			Type:      Receivable,
		},
		{
			Name:      "freight-out",
			Component: ComponentFreight,
			Condition: `outbound && has_logistics`,
			Party:     PartyLogistics,
			Type:      Payable,
		},
		{
			Name:      "freight-in",
			Component: ComponentFreight,
			Condition: `inbound && has_logistics`,
			Party:     PartyLogistics,
			Type:      Payable,
		},
		{
			Name:      "storage-out",
			Component: ComponentStorage,
			Condition: `storage_leg == 'outbound'`,
			Party:     PartySource,
			Type:      Payable,
		},
		{
			Name:      "storage-in",
			Component: ComponentStorage,
			Condition: `storage_leg == 'inbound'`,
			Party:     PartyTarget,
			Type:      Payable,
		},
		{
			Name:      "other",
			Component: ComponentOther,
			Condition: `amount > 0.0`,
			Party:     PartyExpense,
			Type:      Payable,
		},
	}
}

// RuleInput is the set of variables a rule condition can read.
type RuleInput struct {
	OrderType    string
	Inbound      bool
	Outbound     bool
	SourceRoles  []string
	TargetRoles  []string
	HasLogistics bool
	StorageLeg   string
	Amount       types.Money
}

func (in RuleInput) activation() map[string]any {
	src := in.SourceRoles
	if src == nil {
		src = []string{}
	}
	tgt := in.TargetRoles
	if tgt == nil {
		tgt = []string{}
	}
	return map[string]any{
		"order_type":    in.OrderType,
		"inbound":       in.Inbound,
		"outbound":      in.Outbound,
		"source_roles":  src,
		"target_roles":  tgt,
		"has_logistics": in.HasLogistics,
		"storage_leg":   in.StorageLeg,
		"amount":        in.Amount.InexactFloat64(),
	}
}

type compiledRule struct {
	Rule
	program cel.Program
}

// RuleSet is a compiled, ordered rule table.
type RuleSet struct {
	rules []compiledRule
}

func ruleEnv() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("order_type", cel.StringType),
		cel.Variable("inbound", cel.BoolType),
		cel.Variable("outbound", cel.BoolType),
		cel.Variable("source_roles", cel.ListType(cel.StringType)),
		cel.Variable("target_roles", cel.ListType(cel.StringType)),
		cel.Variable("has_logistics", cel.BoolType),
		cel.Variable("storage_leg", cel.StringType),
		cel.Variable("amount", cel.DoubleType),
	)
}

// NewRuleSet compiles rules. Every condition must type-check to bool.
func NewRuleSet(rules []Rule) (*RuleSet, error) {
	env, err := ruleEnv()
	if err != nil {
		return nil, fmt.Errorf("build rule environment: %w", err)
	}

	rs := &RuleSet{rules: make([]compiledRule, 0, len(rules))}
	for _, r := range rules {
		ast, iss := env.Compile(r.Condition)
		if iss != nil && iss.Err() != nil {
			return nil, fmt.Errorf("compile rule %s: %w", r.Name, iss.Err())
		}
		if !ast.OutputType().IsExactType(cel.BoolType) {
			return nil, fmt.Errorf("rule %s: condition must be boolean, got %s", r.Name, ast.OutputType())
		}
		prg, err := env.Program(ast)
		if err != nil {
			return nil, fmt.Errorf("program rule %s: %w", r.Name, err)
		}
		rs.rules = append(rs.rules, compiledRule{Rule: r, program: prg})
	}
	return rs, nil
}

// MustDefaultRuleSet compiles DefaultRules and panics on failure.
func MustDefaultRuleSet() *RuleSet {
	rs, err := NewRuleSet(DefaultRules())
	if err != nil {
		panic(err)
	}
	return rs
}

// Match returns the first rule for component whose condition holds, or nil.
func (rs *RuleSet) Match(component Component, in RuleInput) (*Rule, error) {
	act := in.activation()
	for i := range rs.rules {
		r := &rs.rules[i]
		if r.Component != component {
			continue
		}
		out, _, err := r.program.Eval(act)
		if err != nil {
			return nil, fmt.Errorf("evaluate rule %s: %w", r.Name, err)
		}
		ok, isBool := out.Value().(bool)
		if !isBool {
			return nil, fmt.Errorf("rule %s: non-boolean result %v", r.Name, out.Value())
		}
		if ok {
			rule := r.Rule
			return &rule, nil
		}
	}
	return nil, nil
}
