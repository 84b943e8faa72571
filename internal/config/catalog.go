package config

import (
	"errors"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/gosimple/slug"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// CatalogProduct is one sellable merch item. SyncVariantID is the Printful
// store ("sync") variant identifier that checkout metadata carries and the
// reconciler later resolves into a catalog variant for fulfillment.
type CatalogProduct struct {
	ProductID     string `mapstructure:"productId"`
	SyncVariantID string `mapstructure:"syncVariantId"`
	Name          string `mapstructure:"name"`
	Slug          string `mapstructure:"slug"`
	UnitAmount    int64  `mapstructure:"unitAmount"`
	Currency      string `mapstructure:"currency"`
	ImageURL      string `mapstructure:"imageUrl"`
}

type Catalog struct {
	Products []CatalogProduct `mapstructure:"products"`
}

func (c Catalog) FindByProductID(productID string) (CatalogProduct, bool) {
	for _, product := range c.Products {
		if product.ProductID == productID {
			return product, true
		}
	}
	return CatalogProduct{}, false
}

func DefaultCatalog() Catalog {
	return Catalog{Products: []CatalogProduct{}}
}

// CatalogHolder keeps the current merch catalog and hot-reloads it when the
// file changes, so new products go live without a redeploy.
type CatalogHolder struct {
	current atomic.Value // holds Catalog
}

func NewCatalogHolder(log *zap.Logger) (*CatalogHolder, error) {
	log = log.Named("config.catalog")

	v := viper.New()

	v.SetConfigName("catalog")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/storefront/config")
	v.AddConfigPath("/etc/storefront")
	v.AddConfigPath(".")

	v.SetEnvPrefix("STOREFRONT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		// if config file not found, start with an empty catalog
		v.SetDefault("catalog.products", DefaultCatalog().Products)
	}

	var catalog Catalog
	if err := v.UnmarshalKey("catalog", &catalog); err != nil {
		return nil, err
	}
	if err := validateCatalog(&catalog); err != nil {
		return nil, err
	}

	holder := &CatalogHolder{}
	holder.current.Store(catalog)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated Catalog
		if err := v.UnmarshalKey("catalog", &updated); err != nil {
			log.Error("catalog reload failed", zap.String("file", e.Name), zap.Error(err))
			return
		}
		if err := validateCatalog(&updated); err != nil {
			log.Warn("invalid catalog ignored", zap.String("file", e.Name), zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("catalog reloaded",
			zap.String("file", e.Name),
			zap.Int("products", len(updated.Products)),
		)
	})

	return holder, nil
}

// NewStaticCatalogHolder wraps a fixed catalog with no file watching.
func NewStaticCatalogHolder(catalog Catalog) *CatalogHolder {
	holder := &CatalogHolder{}
	holder.current.Store(catalog)
	return holder
}

func (h *CatalogHolder) Get() Catalog {
	return h.current.Load().(Catalog)
}

func validateCatalog(catalog *Catalog) error {
	seen := map[string]bool{}
	for i := range catalog.Products {
		product := &catalog.Products[i]
		if strings.TrimSpace(product.ProductID) == "" {
			return errors.New("catalog product missing productId")
		}
		if strings.TrimSpace(product.SyncVariantID) == "" {
			return errors.New("catalog product missing syncVariantId")
		}
		if product.UnitAmount <= 0 {
			return errors.New("catalog product unitAmount must be positive")
		}
		if seen[product.ProductID] {
			return errors.New("catalog contains duplicate productId " + product.ProductID)
		}
		seen[product.ProductID] = true
		if strings.TrimSpace(product.Currency) == "" {
			product.Currency = "USD"
		}
		product.Currency = strings.ToUpper(product.Currency)
		if strings.TrimSpace(product.Slug) == "" {
			product.Slug = slug.Make(product.Name)
		}
	}
	return nil
}
