package domain

// Product is an externally supplied catalog entry, read-only to this system.
type Product struct {
	ID                 int      `json:"id"`
	Title              string   `json:"title"`
	Description        string   `json:"description"`
	Price              float64  `json:"price"`
	DiscountPercentage float64  `json:"discountPercentage"`
	Rating             float64  `json:"rating"`
	Stock              int      `json:"stock"`
	Brand              string   `json:"brand"`
	Category           string   `json:"category"`
	Thumbnail          string   `json:"thumbnail"`
	Images             []string `json:"images"`
}

// ProductsPage is the wire shape of the catalog source.
type ProductsPage struct {
	Products []Product `json:"products"`
	Total    int       `json:"total"`
	Skip     int       `json:"skip"`
	Limit    int       `json:"limit"`
}

// SortMode selects the ordering of a filtered product list.
type SortMode string

const (
	SortByName      SortMode = "name"
	SortByPriceAsc  SortMode = "price-asc"
	SortByPriceDesc SortMode = "price-desc"
	SortByRating    SortMode = "rating"
)

// ProductFilters is the transient filter state of the catalog view. All
// criteria combine conjunctively. Empty Category means all categories; nil
// bounds are not applied.
type ProductFilters struct {
	Category  string   `json:"category"`
	SortBy    SortMode `json:"sortBy"`
	Search    string   `json:"search"`
	MinPrice  *float64 `json:"minPrice,omitempty"`
	MaxPrice  *float64 `json:"maxPrice,omitempty"`
	MinRating *float64 `json:"minRating,omitempty"`
}
