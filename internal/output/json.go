package output

import (
	"encoding/json"
	"fmt"
)

// Details is an ordered list of results. In JSON every element carries a
// "type" member naming its Kind.
type Details []Data

// MarshalJSON implements json.Marshaler.
func (ds Details) MarshalJSON() ([]byte, error) {
	items := make([]json.RawMessage, 0, len(ds))
	for _, d := range ds {
		b, err := marshalData(d)
		if err != nil {
			return nil, err
		}
		items = append(items, b)
	}
	return json.Marshal(items)
}

func marshalData(d Data) ([]byte, error) {
	switch d := d.(type) {
	case *BubbleData:
		return json.Marshal(struct {
			Type Kind `json:"type"`
			*BubbleData
		}{KindBubble, d})
	case *BarcodeData:
		return json.Marshal(struct {
			Type Kind `json:"type"`
			*BarcodeData
		}{KindBarcode, d})
	case *RowData:
		return json.Marshal(struct {
			Type Kind `json:"type"`
			*RowData
		}{KindRow, d})
	case *AggregateData:
		return json.Marshal(struct {
			Type  Kind `json:"type"`
			Value int  `json:"value"`
			*AggregateData
		}{KindAggregate, d.Value(), d})
	default:
		return nil, fmt.Errorf("unsupported result type %T", d)
	}
}

// UnmarshalJSON implements json.Unmarshaler.
func (ds *Details) UnmarshalJSON(data []byte) error {
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return err
	}

	out := make(Details, 0, len(items))
	for i, raw := range items {
		var head struct {
			Type Kind `json:"type"`
		}
		if err := json.Unmarshal(raw, &head); err != nil {
			return fmt.Errorf("result %d: %w", i, err)
		}

		var d Data
		switch head.Type {
		case KindBubble:
			d = &BubbleData{}
		case KindBarcode:
			d = &BarcodeData{}
		case KindRow:
			d = &RowData{}
		case KindAggregate:
			d = &AggregateData{}
		default:
			return fmt.Errorf("result %d: unknown type %q", i, head.Type)
		}
		if err := json.Unmarshal(raw, d); err != nil {
			return fmt.Errorf("result %d (%s): %w", i, head.Type, err)
		}
		out = append(out, d)
	}
	*ds = out
	return nil
}

// MarshalJSONIndent encodes the page as indented JSON.
func (p *PageOutput) MarshalJSONIndent() ([]byte, error) {
	return json.MarshalIndent(p, "", "  ")
}
