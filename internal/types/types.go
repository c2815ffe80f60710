package types

// TweetEvent is one decoded payload from the filtered stream. The wire
// format frames one JSON object per non-empty line.
type TweetEvent struct {
	Data struct {
		ID   string `json:"id"`
		Text string `json:"text"`
	} `json:"data"`
	Includes struct {
		Media []Media `json:"media"`
	} `json:"includes"`
}

type Media struct {
	MediaKey        string `json:"media_key"`
	Type            string `json:"type"`
	URL             string `json:"url"`
	PreviewImageURL string `json:"preview_image_url"`
}

// FirstMediaURL returns the URL of the first attached media item, preferring
// the full image URL over the preview. Empty when the tweet has no media.
func (t TweetEvent) FirstMediaURL() string {
	if len(t.Includes.Media) == 0 {
		return ""
	}
	m := t.Includes.Media[0]
	if m.URL != "" {
		return m.URL
	}
	return m.PreviewImageURL
}

// Order is the exchange's record of one submitted margin order.
type Order struct {
	OrderID  int64  `json:"order_id"`
	Symbol   string `json:"symbol"`
	Side     string `json:"side"`
	Quantity string `json:"quantity"`
	Status   string `json:"status"`
}

// TradeResult carries both legs of a buy/sell cycle. Either leg may be nil:
// a nil Buy means the cycle aborted before any order, a nil Sell with a
// non-nil Buy means the sell leg failed after a successful buy.
type TradeResult struct {
	Buy  *Order `json:"buy,omitempty"`
	Sell *Order `json:"sell,omitempty"`
}
