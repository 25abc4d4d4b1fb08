package entity

// ProductMaster mirrors the `products` table. Nil fields mean "unknown in
// this scrape" and never overwrite a stored value.
type ProductMaster struct {
	ProductID string
	Name      *string
	Brand     *string
	ImageURL  *string
	URL       *string
}

// ProductMasterFromSnapshot keeps only the attributes the scrape actually found.
func ProductMasterFromSnapshot(s ProductSnapshot) ProductMaster {
	m := ProductMaster{ProductID: s.ProductID()}
	if s.HasName() {
		m.Name = strPtr(s.ProductName())
	}
	m.Brand = nonEmpty(s.Brand())
	m.ImageURL = nonEmpty(s.ImageURL())
	m.URL = nonEmpty(s.SourceURL())
	return m
}

// Merge applies the coalesce rule: incoming non-nil values win, nil keeps
// the existing value.
func (m ProductMaster) Merge(incoming ProductMaster) ProductMaster {
	out := m
	if incoming.Name != nil {
		out.Name = incoming.Name
	}
	if incoming.Brand != nil {
		out.Brand = incoming.Brand
	}
	if incoming.ImageURL != nil {
		out.ImageURL = incoming.ImageURL
	}
	if incoming.URL != nil {
		out.URL = incoming.URL
	}
	return out
}

func strPtr(s string) *string { return &s }

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
