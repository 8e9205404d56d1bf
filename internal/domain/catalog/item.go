package catalog

import (
	"context"

	"github.com/go-faster/errors"
)

// ErrNotFound is returned when no item matches the requested slug.
var ErrNotFound = errors.New("item not found")

// PageSize is the number of items per catalog page.
const PageSize = 10

// Category classifies an item in the storefront.
type Category string

const (
	CategoryShirt     Category = "S"
	CategorySportWear Category = "SW"
	CategoryOutwear   Category = "OW"
)

// Label selects the badge colour shown next to an item.
type Label string

const (
	LabelPrimary   Label = "P"
	LabelSecondary Label = "S"
	LabelDanger    Label = "D"
)

// Item is a catalog entry. Prices are in minor currency units.
type Item struct {
	ID            string
	Title         string
	Price         int64
	DiscountPrice *int64
	Category      Category
	Label         Label
	Slug          string
	Description   string
	Images        Images
}

// Images holds the stored file names of an item's pictures.
type Images struct {
	Primary   string
	Secondary [3]string
}

// SecondaryImages returns the non-empty secondary image names in order.
func (i Item) SecondaryImages() []string {
	var out []string
	for _, name := range i.Images.Secondary {
		if name != "" {
			out = append(out, name)
		}
	}
	return out
}

// UnitPrice returns the price a customer pays for one unit: the discount
// price when present, the regular price otherwise.
func (i Item) UnitPrice() int64 {
	if i.DiscountPrice != nil {
		return *i.DiscountPrice
	}
	return i.Price
}

// Files returns every stored file referenced by the item.
func (i Images) Files() []string {
	var out []string
	if i.Primary != "" {
		out = append(out, i.Primary)
	}
	for _, name := range i.Secondary {
		if name != "" {
			out = append(out, name)
		}
	}
	return out
}

// Superseded returns the files referenced by i that next no longer uses.
func (i Images) Superseded(next Images) []string {
	keep := make(map[string]struct{}, 4)
	for _, name := range next.Files() {
		keep[name] = struct{}{}
	}
	var out []string
	for _, name := range i.Files() {
		if _, ok := keep[name]; !ok {
			out = append(out, name)
		}
	}
	return out
}

// Page is one page of the catalog listing.
type Page struct {
	Items      []Item
	Page       int
	TotalPages int
}

// Repository defines catalog persistence.
type Repository interface {
	List(ctx context.Context, offset, limit int) ([]Item, error)
	Count(ctx context.Context) (int, error)
	GetBySlug(ctx context.Context, slug string) (*Item, error)
	GetByIDs(ctx context.Context, ids []string) ([]Item, error)
	Delete(ctx context.Context, id string) error
	UpdateImages(ctx context.Context, id string, images Images) error
}
