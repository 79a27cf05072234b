package types

import (
	"encoding/json"
	"fmt"
)

// MarshalJSON renders Side as the wire strings "Buy"|"Sell".
func (s Side) MarshalJSON() ([]byte, error) {
	switch s {
	case Buy:
		return json.Marshal("Buy")
	case Sell:
		return json.Marshal("Sell")
	default:
		return nil, fmt.Errorf("%w: side %d", ErrUnknownTag, int(s))
	}
}

// UnmarshalJSON rejects any tag outside the closed {Buy, Sell} variant.
func (s *Side) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	switch str {
	case "Buy":
		*s = Buy
	case "Sell":
		*s = Sell
	default:
		return fmt.Errorf("%w: side %q", ErrUnknownTag, str)
	}
	return nil
}

// MarshalJSON renders OrderKind as the wire strings "Market"|"Limit".
func (k OrderKind) MarshalJSON() ([]byte, error) {
	switch k {
	case MarketOrder:
		return json.Marshal("Market")
	case LimitOrder:
		return json.Marshal("Limit")
	default:
		return nil, fmt.Errorf("%w: kind %d", ErrUnknownTag, int(k))
	}
}

// UnmarshalJSON rejects any tag outside the closed {Market, Limit} variant.
func (k *OrderKind) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	switch str {
	case "Market":
		*k = MarketOrder
	case "Limit":
		*k = LimitOrder
	default:
		return fmt.Errorf("%w: kind %q", ErrUnknownTag, str)
	}
	return nil
}

// MarshalJSON renders OrderStatus as the reply status strings.
func (s OrderStatus) MarshalJSON() ([]byte, error) {
	switch s {
	case Pending, PartiallyFilled, Filled, Cancelled, Rejected:
		return json.Marshal(s.String())
	default:
		return nil, fmt.Errorf("%w: status %d", ErrUnknownTag, int(s))
	}
}

// UnmarshalJSON rejects any tag outside the closed status variant.
func (s *OrderStatus) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	switch str {
	case "PENDING":
		*s = Pending
	case "PARTIALLY_FILLED":
		*s = PartiallyFilled
	case "FILLED":
		*s = Filled
	case "CANCELLED":
		*s = Cancelled
	case "REJECTED":
		*s = Rejected
	default:
		return fmt.Errorf("%w: status %q", ErrUnknownTag, str)
	}
	return nil
}
