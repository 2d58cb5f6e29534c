package schema

import "fmt"

// InstrumentToken is the venue-assigned numeric identifier for an instrument.
type InstrumentToken uint32

// VenueID is the numeric identifier for a venue.
type VenueID uint16

// Venue describes a trading venue or broker.
type Venue struct {
	ID   VenueID
	Name string
}

// Instrument describes a tradable contract.
type Instrument struct {
	Token   InstrumentToken
	VenueID VenueID
	Symbol  string
	Scale   ScaleSpec
}

// Registry stores venue and instrument mappings in a compact form.
type Registry struct {
	venues        []Venue
	instruments   []Instrument
	venueByName   map[string]VenueID
	tokenBySymbol map[string]InstrumentToken
	indexByToken  map[InstrumentToken]int
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		venueByName:   make(map[string]VenueID),
		tokenBySymbol: make(map[string]InstrumentToken),
		indexByToken:  make(map[InstrumentToken]int),
	}
}

// AddVenue registers a new venue and returns its ID.
func (r *Registry) AddVenue(name string) (VenueID, error) {
	if name == "" {
		return 0, fmt.Errorf("venue name is empty")
	}
	if id, ok := r.venueByName[name]; ok {
		return id, fmt.Errorf("venue already exists: %s", name)
	}
	id := VenueID(len(r.venues) + 1)
	r.venues = append(r.venues, Venue{ID: id, Name: name})
	r.venueByName[name] = id
	return id, nil
}

// AddInstrument registers a new instrument under its venue token.
func (r *Registry) AddInstrument(token InstrumentToken, symbol string, venueID VenueID, scale ScaleSpec) error {
	if token == 0 {
		return fmt.Errorf("instrument token is zero")
	}
	if symbol == "" {
		return fmt.Errorf("instrument symbol is empty")
	}
	if _, ok := r.Venue(venueID); !ok {
		return fmt.Errorf("venue id not found: %d", venueID)
	}
	if _, ok := r.indexByToken[token]; ok {
		return fmt.Errorf("instrument token already exists: %d", token)
	}
	if _, ok := r.tokenBySymbol[symbol]; ok {
		return fmt.Errorf("instrument symbol already exists: %s", symbol)
	}
	r.instruments = append(r.instruments, Instrument{
		Token:   token,
		VenueID: venueID,
		Symbol:  symbol,
		Scale:   scale,
	})
	r.tokenBySymbol[symbol] = token
	r.indexByToken[token] = len(r.instruments) - 1
	return nil
}

// Venue returns the venue by ID.
func (r *Registry) Venue(id VenueID) (Venue, bool) {
	if id == 0 || int(id) > len(r.venues) {
		return Venue{}, false
	}
	return r.venues[id-1], true
}

// Instrument returns the instrument for a token.
func (r *Registry) Instrument(token InstrumentToken) (Instrument, bool) {
	idx, ok := r.indexByToken[token]
	if !ok {
		return Instrument{}, false
	}
	return r.instruments[idx], true
}

// TokenBySymbol returns the instrument token for a trading symbol.
func (r *Registry) TokenBySymbol(symbol string) (InstrumentToken, bool) {
	token, ok := r.tokenBySymbol[symbol]
	return token, ok
}

// VenueIDByName returns the venue ID for a name.
func (r *Registry) VenueIDByName(name string) (VenueID, bool) {
	id, ok := r.venueByName[name]
	return id, ok
}

// InstrumentCount returns the number of registered instruments.
func (r *Registry) InstrumentCount() int {
	return len(r.instruments)
}

// InstrumentAt returns the instrument by zero-based index.
func (r *Registry) InstrumentAt(index int) (Instrument, bool) {
	if index < 0 || index >= len(r.instruments) {
		return Instrument{}, false
	}
	return r.instruments[index], true
}
