package broker

import "fmt"

// OrderDirectives describes an order a caller wants placed. It is one of
// OpenDirectives, IncreaseDirectives or CloseDirectives.
type OrderDirectives interface {
	Purpose() Purpose
	Validate() error
	directives()
}

// Protection is the stop loss / take profit attached to a new position.
type Protection struct {
	StopLoss   *float64
	TakeProfit *float64
}

// OpenDirectives opens a new position. With neither Limit nor Stop the
// order is executed at market.
type OpenDirectives struct {
	Symbol     string
	Direction  Direction
	Volume     float64
	Limit      *float64
	Stop       *float64
	Protection *Protection
}

// IncreaseDirectives adds volume to an existing position at market.
type IncreaseDirectives struct {
	PositionID string
	Volume     float64
}

// CloseDirectives closes a position. A nil Volume closes all of it.
type CloseDirectives struct {
	PositionID string
	Volume     *float64
}

func (OpenDirectives) Purpose() Purpose     { return PurposeOpen }
func (IncreaseDirectives) Purpose() Purpose { return PurposeOpen }
func (CloseDirectives) Purpose() Purpose    { return PurposeClose }

func (OpenDirectives) directives()     {}
func (IncreaseDirectives) directives() {}
func (CloseDirectives) directives()    {}

func (d OpenDirectives) Validate() error {
	switch {
	case d.Symbol == "":
		return invalidDirectives("symbol is required")
	case d.Volume <= 0:
		return invalidDirectives(fmt.Sprintf("volume must be positive, got %v", d.Volume))
	case d.Limit != nil && d.Stop != nil:
		return invalidDirectives("limit and stop are mutually exclusive")
	case d.Direction != Buy && d.Direction != Sell:
		return invalidDirectives(fmt.Sprintf("unknown direction %v", d.Direction))
	}
	return nil
}

func (d IncreaseDirectives) Validate() error {
	switch {
	case d.PositionID == "":
		return invalidDirectives("position id is required")
	case d.Volume <= 0:
		return invalidDirectives(fmt.Sprintf("volume must be positive, got %v", d.Volume))
	}
	return nil
}

func (d CloseDirectives) Validate() error {
	switch {
	case d.PositionID == "":
		return invalidDirectives("position id is required")
	case d.Volume != nil && *d.Volume <= 0:
		return invalidDirectives(fmt.Sprintf("volume must be positive, got %v", *d.Volume))
	}
	return nil
}

func invalidDirectives(msg string) error {
	return NewError(ErrInvalidDirectives, msg, nil)
}
