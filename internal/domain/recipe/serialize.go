package recipe

// Summary is the listing shape. Price is rendered with a fixed two
// decimal places so 22.5 goes out as "22.50".
type Summary struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	TimeMinutes int         `json:"timeMinutes"`
	Price       string      `json:"price"`
	Link        string      `json:"link"`
	Tags        []Attribute `json:"tags"`
	Ingredients []Attribute `json:"ingredients"`
}

// Detail is the single-recipe shape: everything the summary carries
// plus the description and a resolved image URL (null when no image
// has been uploaded).
type Detail struct {
	Summary
	Description string  `json:"description"`
	Image       *string `json:"image"`
}

// NewSummary projects a Recipe onto the listing shape. Nil attribute
// slices are replaced with empty ones so the JSON always carries lists.
func NewSummary(r Recipe) Summary {
	s := Summary{
		ID:          r.ID,
		Title:       r.Title,
		TimeMinutes: r.TimeMinutes,
		Price:       r.Price.StringFixed(2),
		Link:        r.Link,
		Tags:        r.Tags,
		Ingredients: r.Ingredients,
	}
	if s.Tags == nil {
		s.Tags = []Attribute{}
	}
	if s.Ingredients == nil {
		s.Ingredients = []Attribute{}
	}
	return s
}

// NewDetail projects a Recipe onto the detail shape. imageURL should be
// nil when the recipe has no stored image.
func NewDetail(r Recipe, imageURL *string) Detail {
	return Detail{
		Summary:     NewSummary(r),
		Description: r.Description,
		Image:       imageURL,
	}
}
