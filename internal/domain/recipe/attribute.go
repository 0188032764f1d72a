package recipe

// Attribute is a user-owned label attached to recipes. Tags and
// ingredients share the shape and differ only in which table they
// live in and which join table links them to recipes.
type Attribute struct {
	ID     string `json:"id"`
	UserID string `json:"-"`
	Name   string `json:"name"`
}

// AttributeInput is the nested create/replace payload. Attributes are
// addressed by name; an id sent by the client is ignored.
type AttributeInput struct {
	Name string `json:"name" binding:"required,min=1,max=255"`
}
