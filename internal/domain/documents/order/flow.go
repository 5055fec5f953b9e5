package order

import (
	"encoding/json"
	"fmt"
	"time"

	"coldledger/internal/core/id"
	"coldledger/internal/core/types"
)

// FlowType is an order history event.
type FlowType string

const (
	FlowCreated   FlowType = "created"
	FlowUpdated   FlowType = "updated"
	FlowCompleted FlowType = "completed"
	FlowCancelled FlowType = "cancelled"
	FlowReturned  FlowType = "returned"
)

var flowLabels = map[FlowType]string{
	FlowCreated:   "Created",
	FlowUpdated:   "Updated",
	FlowCompleted: "Completed",
	FlowCancelled: "Cancelled",
	FlowReturned:  "Return raised",
}

// Label returns a display name.
func (t FlowType) Label() string {
	if l, ok := flowLabels[t]; ok {
		return l
	}
	return string(t)
}

// MetaKind tags the payload stored with a flow.
type MetaKind string

const (
	MetaNone                MetaKind = ""
	MetaReturnSpawned       MetaKind = "return_spawned"
	MetaReturnOf            MetaKind = "return_of"
	MetaCompletionSummary   MetaKind = "completion_summary"
	MetaAllocationShortfall MetaKind = "allocation_shortfall"
	MetaNote                MetaKind = "note"
)

// Meta is the closed set of flow payloads.
type Meta interface {
	Kind() MetaKind
}

// ReturnSpawned is recorded on an order when a return order is raised from it.
type ReturnSpawned struct {
	OrderID  id.ID  `json:"orderId"`
	OrderNo  string `json:"orderNo"`
	TargetID id.ID  `json:"targetId"`
}

// ReturnOf is recorded on a return order pointing at its origin.
type ReturnOf struct {
	OrderID id.ID  `json:"orderId"`
	OrderNo string `json:"orderNo"`
}

// CompletionSummary lists what completion booked.
type CompletionSummary struct {
	OutboundWarehouseID *id.ID         `json:"outboundWarehouseId,omitempty"`
	InboundWarehouseID  *id.ID         `json:"inboundWarehouseId,omitempty"`
	Allocations         int            `json:"allocations"`
	LotsCreated         []string       `json:"lotsCreated,omitempty"`
	LotsRestored        []string       `json:"lotsRestored,omitempty"`
	StorageFee          types.Money    `json:"storageFee"`
	StorageFeeLeg       string         `json:"storageFeeLeg,omitempty"`
	Entries             int            `json:"entries"`
	CostAmount          *types.Money   `json:"costAmount,omitempty"`
	Profit              *types.Money   `json:"profit,omitempty"`
	Shortfall           types.Quantity `json:"shortfall"`
}

// ShortfallLine is one line that could not be covered by lots.
type ShortfallLine struct {
	LineID    id.ID          `json:"lineId"`
	ProductID id.ID          `json:"productId"`
	Requested types.Quantity `json:"requested"`
	Shortfall types.Quantity `json:"shortfall"`
}

// AllocationShortfall is recorded when lenient FIFO left lines partly uncovered.
type AllocationShortfall struct {
	Lines []ShortfallLine `json:"lines"`
}

// Note is free text.
type Note struct {
	Text string `json:"text"`
}

func (ReturnSpawned) Kind() MetaKind       { return MetaReturnSpawned }
func (ReturnOf) Kind() MetaKind            { return MetaReturnOf }
func (CompletionSummary) Kind() MetaKind   { return MetaCompletionSummary }
func (AllocationShortfall) Kind() MetaKind { return MetaAllocationShortfall }
func (Note) Kind() MetaKind                { return MetaNote }

// Flow is one entry of an order's history.
type Flow struct {
	ID         id.ID     `db:"id" json:"id"`
	OrderID    id.ID     `db:"order_id" json:"orderId"`
	Type       FlowType  `db:"flow_type" json:"type"`
	MetaKind   MetaKind  `db:"meta_kind" json:"metaKind,omitempty"`
	MetaData   []byte    `db:"meta" json:"-"`
	Meta       Meta      `db:"-" json:"meta,omitempty"`
	Notes      string    `db:"notes" json:"notes,omitempty"`
	ActorID    string    `db:"actor_id" json:"actorId"`
	OperatedAt time.Time `db:"operated_at" json:"operatedAt"`
}

// NewFlow creates a flow with encoded meta.
func NewFlow(orderID id.ID, t FlowType, meta Meta, notes, actorID string) (*Flow, error) {
	f := &Flow{
		ID:         id.New(),
		OrderID:    orderID,
		Type:       t,
		Notes:      notes,
		ActorID:    actorID,
		OperatedAt: time.Now().UTC(),
	}
	if err := f.SetMeta(meta); err != nil {
		return nil, err
	}
	return f, nil
}

// SetMeta stores meta and its encoded form.
func (f *Flow) SetMeta(meta Meta) error {
	f.Meta = meta
	if meta == nil {
		f.MetaKind = MetaNone
		f.MetaData = nil
		return nil
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("encode flow meta: %w", err)
	}
	f.MetaKind = meta.Kind()
	f.MetaData = data
	return nil
}

// DecodeMeta rebuilds Meta from MetaKind and MetaData.
func (f *Flow) DecodeMeta() error {
	if f.MetaKind == MetaNone || len(f.MetaData) == 0 {
		f.Meta = nil
		return nil
	}
	var (
		m   Meta
		err error
	)
	switch f.MetaKind {
	case MetaReturnSpawned:
		m, err = decode[ReturnSpawned](f.MetaData)
	case MetaReturnOf:
		m, err = decode[ReturnOf](f.MetaData)
	case MetaCompletionSummary:
		m, err = decode[CompletionSummary](f.MetaData)
	case MetaAllocationShortfall:
		m, err = decode[AllocationShortfall](f.MetaData)
	case MetaNote:
		m, err = decode[Note](f.MetaData)
	default:
		return fmt.Errorf("unknown flow meta kind %q", f.MetaKind)
	}
	if err != nil {
		return fmt.Errorf("decode %s meta: %w", f.MetaKind, err)
	}
	f.Meta = m
	return nil
}

// UnmarshalJSON restores Meta using the metaKind tag.
func (f *Flow) UnmarshalJSON(data []byte) error {
	type plain Flow
	aux := struct {
		*plain
		Meta json.RawMessage `json:"meta,omitempty"`
	}{plain: (*plain)(f)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	f.MetaData = nil
	if len(aux.Meta) > 0 && string(aux.Meta) != "null" {
		f.MetaData = aux.Meta
	}
	return f.DecodeMeta()
}

func decode[T Meta](data []byte) (Meta, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}
