package schema

import "strconv"

// Price is a scaled integer. The scale is defined by configuration.
type Price int64

// Quantity is a scaled integer. The scale is defined by configuration.
type Quantity int64

// Scale is the number of decimal places used by a scaled integer.
// Example: Scale=8 means the integer value is scaled by 1e8.
type Scale int32

// ScaleSpec defines scaling for common numeric fields.
type ScaleSpec struct {
	PriceScale    Scale `json:"priceScale"`
	QuantityScale Scale `json:"quantityScale"`
}

// OrderSide describes order direction.
type OrderSide uint16

const (
	OrderSideUnknown OrderSide = iota
	OrderSideBuy
	OrderSideSell
)

func (s OrderSide) String() string {
	switch s {
	case OrderSideBuy:
		return "BUY"
	case OrderSideSell:
		return "SELL"
	default:
		return "UNKNOWN"
	}
}

// OrderKind describes how an order executes.
type OrderKind uint16

const (
	OrderKindUnknown OrderKind = iota
	OrderKindLimit
	OrderKindMarket
	OrderKindStopLimit
)

func (k OrderKind) String() string {
	switch k {
	case OrderKindLimit:
		return "LIMIT"
	case OrderKindMarket:
		return "MARKET"
	case OrderKindStopLimit:
		return "STOP_LIMIT"
	default:
		return "UNKNOWN"
	}
}

// ProductType describes the margining product an order trades under.
type ProductType uint16

const (
	ProductUnknown ProductType = iota
	ProductIntraday
	ProductOvernight
)

func (p ProductType) String() string {
	switch p {
	case ProductIntraday:
		return "INTRADAY"
	case ProductOvernight:
		return "OVERNIGHT"
	default:
		return "UNKNOWN"
	}
}

func (p Price) AppendString(priceScale Scale, buf []byte) []byte {
	return appendScaledInt(buf, int64(p), int(priceScale))
}

func (q Quantity) AppendString(quantityScale Scale, buf []byte) []byte {
	return appendScaledInt(buf, int64(q), int(quantityScale))
}

func appendScaledInt(buf []byte, value int64, scale int) []byte {
	if scale <= 0 {
		return strconv.AppendInt(buf, value, 10)
	}

	neg := value < 0
	u := uint64(value)
	if neg {
		u = uint64(^value) + 1
	}

	var tmp [32]byte
	digits := strconv.AppendUint(tmp[:0], u, 10)

	if neg {
		buf = append(buf, '-')
	}

	if len(digits) <= scale {
		buf = append(buf, '0', '.')
		for i := 0; i < scale-len(digits); i++ {
			buf = append(buf, '0')
		}
		buf = append(buf, digits...)
		return buf
	}

	idx := len(digits) - scale
	buf = append(buf, digits[:idx]...)
	buf = append(buf, '.')
	buf = append(buf, digits[idx:]...)
	return buf
}
