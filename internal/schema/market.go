package schema

// Tick is a normalized last-trade update from the venue feed.
type Tick struct {
	Token     InstrumentToken
	LastPrice Price
	TsEvent   int64
	TsRecv    int64
}

// Snapshot is the market view handed to a strategy for one evaluation.
type Snapshot struct {
	Token     InstrumentToken
	Symbol    string
	LastPrice Price
	TsEvent   int64
}

// PositionUpdate is a broker-side change to one position leg.
type PositionUpdate struct {
	PositionID string
	Token      InstrumentToken
	Qty        Quantity
	AvgPrice   Price
	LastPrice  Price
	TsEvent    int64
}
