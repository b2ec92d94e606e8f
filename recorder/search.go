package recorder

import (
	"github.com/blevesearch/bleve"

	"github.com/n0remac/visionguard/store"
)

// indexedEvent is the flattened document bleve indexes: description,
// anomaly_type, and location are the only fields worth full-text search,
// per SPEC_FULL.md §4.8.
type indexedEvent struct {
	ShopID      string `json:"shop_id"`
	Description string `json:"description"`
	AnomalyType string `json:"anomaly_type"`
	Location    string `json:"location"`
	Severity    string `json:"severity"`
	Status      string `json:"status"`
}

// Index wraps a bleve.Index kept alongside the gorm store, giving the
// out-of-core-scope anomaly-listing surface real search without pulling
// any of this into the hot per-frame path.
type Index struct {
	bleve.Index
}

// OpenIndex opens an existing index at path or creates one, grounded on the
// teacher's declared (but previously unused) blevesearch/bleve dependency.
func OpenIndex(path string) (*Index, error) {
	idx, err := bleve.Open(path)
	if err == nil {
		return &Index{idx}, nil
	}
	mapping := bleve.NewIndexMapping()
	idx, err = bleve.New(path, mapping)
	if err != nil {
		return nil, err
	}
	return &Index{idx}, nil
}

func (i *Index) Upsert(e store.AnomalyEvent) error {
	doc := indexedEvent{
		ShopID:      e.ShopID.String(),
		Description: e.Description,
		AnomalyType: e.AnomalyType,
		Location:    e.Location,
		Severity:    string(e.Severity),
		Status:      string(e.Status),
	}
	return i.Index.Index(e.ID.String(), doc)
}

// Search runs a bleve query string over every indexed field (description,
// anomaly_type, location, and also shop_id, severity and status).
func (i *Index) Search(query string, limit int) (*bleve.SearchResult, error) {
	q := bleve.NewQueryStringQuery(query)
	req := bleve.NewSearchRequest(q)
	req.Size = limit
	return i.Index.Search(req)
}
