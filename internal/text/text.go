// Package text holds the positioned text model shared by every stage of the
// pipeline, along with the row grouper and page filter.
package text

// Text is a single positioned fragment of text extracted from a page.
//
// Coordinates are in points in a top-down space: x=0 is the left edge of the
// page and y=0 is the top edge. Optional string attributes are empty when
// absent.
type Text struct {
	Page     int     `json:"page"`
	ULX      float64 `json:"ulx"`
	ULY      float64 `json:"uly"`
	LRX      float64 `json:"lrx"`
	LRY      float64 `json:"lry"`
	Content  string  `json:"content"`
	Font     string  `json:"font"`
	FontSize float64 `json:"fontSize"`
	Color    string  `json:"color,omitempty"`
	BgColor  string  `json:"bgcolor,omitempty"`
	Link     string  `json:"link,omitempty"`
}

// Width returns the horizontal extent of the fragment.
func (t Text) Width() float64 { return t.LRX - t.ULX }

// Height returns the vertical extent of the fragment.
func (t Text) Height() float64 { return t.LRY - t.ULY }

// Page is a page number and the text found on it, in extraction order.
type Page struct {
	Number int
	Texts  []Text
}
