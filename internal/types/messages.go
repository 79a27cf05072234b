package types

import (
	"encoding/json"
	"fmt"
)

// RequestKind is the closed variant tag for entries on the engine_requests
// stream.
type RequestKind string

const (
	RequestOrder       RequestKind = "Order"
	RequestCancelOrder RequestKind = "CancelOrder"
	RequestBalance     RequestKind = "Balance"
)

// ParseRequestKind rejects any tag outside the closed variant.
func ParseRequestKind(s string) (RequestKind, error) {
	switch RequestKind(s) {
	case RequestOrder, RequestCancelOrder, RequestBalance:
		return RequestKind(s), nil
	default:
		return "", fmt.Errorf("%w: request kind %q", ErrUnknownTag, s)
	}
}

// OrderRequest is the Order payload.
type OrderRequest struct {
	RequestID string    `json:"request_id"`
	UserID    string    `json:"user_id"`
	MarketID  string    `json:"market_id"`
	Side      Side      `json:"side"`
	Kind      OrderKind `json:"kind"`
	Price     *int64    `json:"price"`
	Quantity  int64     `json:"quantity"`
	Timestamp int64     `json:"timestamp"`
}

// CancelOrderRequest is the CancelOrder payload.
type CancelOrderRequest struct {
	RequestID string `json:"request_id"`
	UserID    string `json:"user_id"`
	OrderID   string `json:"order_id"`
	MarketID  string `json:"market_id"`
	Timestamp int64  `json:"timestamp"`
}

// BalanceOp is the closed variant tag for the Balance request's "op" field.
type BalanceOp string

const (
	BalanceDeposit     BalanceOp = "Deposit"
	BalanceWithdraw    BalanceOp = "Withdraw"
	BalanceGetBalances BalanceOp = "GetBalances"
)

// ParseBalanceOp rejects any tag outside the closed variant.
func ParseBalanceOp(s string) (BalanceOp, error) {
	switch BalanceOp(s) {
	case BalanceDeposit, BalanceWithdraw, BalanceGetBalances:
		return BalanceOp(s), nil
	default:
		return "", fmt.Errorf("%w: balance op %q", ErrUnknownTag, s)
	}
}

// BalanceRequest is the Balance payload.
type BalanceRequest struct {
	RequestID string    `json:"request_id"`
	UserID    string    `json:"user_id"`
	TokenID   string    `json:"token_id"`
	Op        BalanceOp `json:"op"`
	Amount    int64     `json:"amount"`
	Timestamp int64     `json:"timestamp"`
}

// TradeFill is a single execution line in an OrderReply.
type TradeFill struct {
	TradeID   string `json:"trade_id"`
	Price     int64  `json:"price"`
	Quantity  int64  `json:"quantity"`
	Timestamp int64  `json:"timestamp"`
}

// OrderReply is the reply for Order/CancelOrder requests.
type OrderReply struct {
	RequestID         string      `json:"request_id"`
	Success           bool        `json:"success"`
	Status            OrderStatus `json:"status"`
	OrderID           string      `json:"order_id"`
	Message           string      `json:"message"`
	FilledQuantity    int64       `json:"filled_quantity"`
	RemainingQuantity int64       `json:"remaining_quantity"`
	AveragePrice      *int64      `json:"average_price"`
	Trades            []TradeFill `json:"trades"`
}

// BalanceReply is the reply for Balance requests.
type BalanceReply struct {
	RequestID  string         `json:"request_id"`
	Success    bool           `json:"success"`
	Message    string         `json:"message"`
	NewBalance *int64         `json:"new_balance,omitempty"`
	Balances   []BalanceEntry `json:"balances,omitempty"`
}

// PersistenceEventType is the closed variant tag for persistence_events
// entries.
type PersistenceEventType string

const (
	EventOrderCreated   PersistenceEventType = "order_created"
	EventOrderUpdated   PersistenceEventType = "order_updated"
	EventTradeExecuted  PersistenceEventType = "trade_executed"
	EventBalanceUpdated PersistenceEventType = "balance_updated"
)

// PersistenceEvent is a single entry appended to the persistence_events
// stream. Data carries the JSON-encoded entity; consumers apply
// idempotently keyed by the entity's own id.
type PersistenceEvent struct {
	Type PersistenceEventType `json:"type"`
	Data json.RawMessage      `json:"data"`
}

// BalanceUpdatedData is the Data payload for an EventBalanceUpdated event.
type BalanceUpdatedData struct {
	UserID    string `json:"user_id"`
	TokenID   string `json:"token_id"`
	Available int64  `json:"available"`
	Locked    int64  `json:"locked"`
}

// DepthLevel is a (price, quantity) pair at one book level.
type DepthLevel [2]int64

// DepthUpdate is the depth:{market_id} broadcast payload.
type DepthUpdate struct {
	MarketID string       `json:"market_id"`
	Seq      uint64       `json:"seq"`
	Ts       int64        `json:"ts"`
	Bids     []DepthLevel `json:"bids"`
	Asks     []DepthLevel `json:"asks"`
}

// TickerUpdate is the ticker:{market_id} broadcast payload.
type TickerUpdate struct {
	MarketID  string `json:"market_id"`
	LastPrice int64  `json:"last_price"`
	Volume24h int64  `json:"volume_24h"`
	High24h   int64  `json:"high_24h"`
	Low24h    int64  `json:"low_24h"`
	Timestamp int64  `json:"timestamp"`
	Seq       uint64 `json:"seq"`
}

// TradePrint is the trades:{market_id} broadcast payload.
type TradePrint struct {
	TradeID      string `json:"trade_id"`
	MarketID     string `json:"market_id"`
	Price        int64  `json:"price"`
	Quantity     int64  `json:"quantity"`
	BuyerUserID  string `json:"buyer_user_id"`
	SellerUserID string `json:"seller_user_id"`
	Timestamp    int64  `json:"timestamp"`
}

// BroadcastKind identifies which of the three broadcast topics a Broadcast
// carries.
type BroadcastKind int

const (
	BroadcastDepth BroadcastKind = iota
	BroadcastTicker
	BroadcastTrade
)

// Broadcast is a single best-effort market-data message produced by the
// matching core and handed to the transport layer for publication. Exactly
// one of the payload fields is populated, selected by Kind.
type Broadcast struct {
	Kind   BroadcastKind
	Depth  *DepthUpdate
	Ticker *TickerUpdate
	Trade  *TradePrint
}
