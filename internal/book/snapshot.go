package book

import "encoding/json"

// Snapshot is the serialization-boundary view of a book: top levels of each
// side as [price, size] string pairs, plus the update watermark.
type Snapshot struct {
	Symbol       string      `json:"symbol"`
	Timestamp    int64       `json:"timestamp"`
	LastUpdateID int64       `json:"lastUpdateId"`
	Bids         [][2]string `json:"bids"`
	Asks         [][2]string `json:"asks"`
}

// Snapshot captures up to depth levels per side; depth 0 means all.
func (b *Book) Snapshot(depth int) Snapshot {
	toPairs := func(levels []Entry) [][2]string {
		pairs := make([][2]string, 0, len(levels))
		for _, e := range levels {
			pairs = append(pairs, [2]string{e.Price.String(), e.Amount.String()})
		}
		return pairs
	}

	return Snapshot{
		Symbol:       b.symbol,
		Timestamp:    b.LastUpdateTime().UnixMilli(),
		LastUpdateID: b.LastUpdateID(),
		Bids:         toPairs(b.Bids(depth)),
		Asks:         toPairs(b.Asks(depth)),
	}
}

// SnapshotJSON renders the snapshot in the boundary's JSON wire format.
func (b *Book) SnapshotJSON(depth int) ([]byte, error) {
	return json.Marshal(b.Snapshot(depth))
}
