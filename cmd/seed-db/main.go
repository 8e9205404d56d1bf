package main

import (
	"context"
	"flag"
	"io"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/catalog"
	"github.com/xenking/storefront/internal/domain/coupon"
	"github.com/xenking/storefront/internal/handler"
	"github.com/xenking/storefront/internal/storage/postgres"
)

// account is a user seeded together with one API key.
type account struct {
	username string
	email    string
	key      string
	scopes   []string
}

var seedCoupons = []coupon.Coupon{
	{Code: "WELCOME10", Amount: 1000},
	{Code: "FREESHIP", Amount: 500},
}

func main() {
	var (
		databaseURL string
		itemsFile   string
		customerKey string
		adminKey    string
		pepper      string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&itemsFile, "items-file", "db/seed/items.json", "path to catalog items JSON file")
	flag.StringVar(&customerKey, "customer-key", "", "API key of the demo customer (or SHOP_SEED_CUSTOMER_KEY env)")
	flag.StringVar(&adminKey, "admin-key", "", "API key of the admin user (or SHOP_SEED_ADMIN_KEY env)")
	flag.StringVar(&pepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or SHOP_API_KEY_PEPPER env)")
	flag.Parse()

	lg, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer func() { _ = lg.Sync() }()

	databaseURL = orEnv(databaseURL, "DATABASE_URL")
	customerKey = orEnv(customerKey, "SHOP_SEED_CUSTOMER_KEY")
	adminKey = orEnv(adminKey, "SHOP_SEED_ADMIN_KEY")
	pepper = orEnv(pepper, "SHOP_API_KEY_PEPPER")
	switch {
	case databaseURL == "":
		lg.Fatal("Database URL is required: set --database-url or DATABASE_URL")
	case pepper == "":
		lg.Fatal("API key pepper is required: set --api-key-pepper or SHOP_API_KEY_PEPPER")
	case customerKey == "" && adminKey == "":
		lg.Fatal("At least one of --customer-key or --admin-key is required")
	}

	var accounts []account
	if customerKey != "" {
		accounts = append(accounts, account{"customer", "customer@example.com", customerKey, []string{auth.ScopeCustomer}})
	}
	if adminKey != "" {
		accounts = append(accounts, account{"admin", "admin@example.com", adminKey, []string{auth.ScopeCustomer, auth.ScopeAdmin}})
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, lg, databaseURL, itemsFile, []byte(pepper), accounts); err != nil {
		lg.Fatal("Seed failed", zap.Error(err))
	}
	lg.Info("Seed completed")
}

func orEnv(v, env string) string {
	if v != "" {
		return v
	}
	return os.Getenv(env)
}

func run(ctx context.Context, lg *zap.Logger, databaseURL, itemsFile string, pepper []byte, accounts []account) error {
	lg.Info("Running migrations")
	if err := postgres.RunMigrations(databaseURL); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()
	store := postgres.NewStore(pool)

	f, err := os.Open(itemsFile)
	if err != nil {
		return errors.Wrap(err, "open items file")
	}
	defer func() { _ = f.Close() }()

	items, err := parseItems(f)
	if err != nil {
		return errors.Wrapf(err, "parse %s", itemsFile)
	}
	for i := range items {
		if err := store.Items().Upsert(ctx, &items[i]); err != nil {
			return err
		}
		lg.Info("Upserted item", zap.String("slug", items[i].Slug), zap.Int64("price", items[i].Price))
	}

	for i := range seedCoupons {
		c := seedCoupons[i]
		if err := store.Coupons().Upsert(ctx, &c); err != nil {
			return err
		}
		lg.Info("Upserted coupon", zap.String("code", c.Code), zap.Int64("amount", c.Amount))
	}

	for _, a := range accounts {
		u := &postgres.User{Username: a.username, Email: a.email}
		if err := store.Users().Upsert(ctx, u); err != nil {
			return err
		}
		if err := store.Users().GrantKey(ctx, u.ID, a.username+" key", handler.HashKey(pepper, a.key), a.scopes); err != nil {
			return err
		}
		lg.Info("Upserted user", zap.String("username", a.username), zap.Strings("scopes", a.scopes))
	}
	return nil
}

// parseItems decodes the seed catalog. Prices are decimal strings in major
// currency units and are stored in minor units.
func parseItems(r io.Reader) ([]catalog.Item, error) {
	var items []catalog.Item
	d := jx.Decode(r, 4096)
	err := d.Arr(func(d *jx.Decoder) error {
		var it catalog.Item
		if err := d.Obj(func(d *jx.Decoder, key string) error {
			var err error
			switch key {
			case "title":
				it.Title, err = d.Str()
			case "slug":
				it.Slug, err = d.Str()
			case "description":
				it.Description, err = d.Str()
			case "image":
				it.Images.Primary, err = d.Str()
			case "category":
				var s string
				s, err = d.Str()
				it.Category = catalog.Category(s)
			case "label":
				var s string
				s, err = d.Str()
				it.Label = catalog.Label(s)
			case "price":
				it.Price, err = minorUnits(d)
			case "discount_price":
				var v int64
				v, err = minorUnits(d)
				it.DiscountPrice = &v
			default:
				err = d.Skip()
			}
			if err != nil {
				return errors.Wrap(err, key)
			}
			return nil
		}); err != nil {
			return err
		}
		if it.Slug == "" || it.Title == "" {
			return errors.Errorf("item %d: title and slug are required", len(items))
		}
		items = append(items, it)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

func minorUnits(d *jx.Decoder) (int64, error) {
	s, err := d.Str()
	if err != nil {
		return 0, err
	}
	v, err := decimal.NewFromString(s)
	if err != nil {
		return 0, err
	}
	if v.IsNegative() {
		return 0, errors.Errorf("negative price %s", s)
	}
	return v.Shift(2).Round(0).IntPart(), nil
}
