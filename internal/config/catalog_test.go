package config

import (
	"testing"

	"go.uber.org/zap"
)

func validProduct() CatalogProduct {
	return CatalogProduct{
		ProductID:     "tee-hollow-logo",
		SyncVariantID: "5130270457",
		Name:          "Hollow Logo Tee",
		UnitAmount:    1200,
	}
}

func TestValidateCatalogDefaults(t *testing.T) {
	catalog := Catalog{Products: []CatalogProduct{validProduct()}}

	if err := validateCatalog(&catalog); err != nil {
		t.Fatalf("validate catalog: %v", err)
	}
	product := catalog.Products[0]
	if product.Currency != "USD" {
		t.Fatalf("expected default currency USD, got %q", product.Currency)
	}
	if product.Slug != "hollow-logo-tee" {
		t.Fatalf("expected slug derived from name, got %q", product.Slug)
	}
}

func TestValidateCatalogNormalizesCurrency(t *testing.T) {
	product := validProduct()
	product.Currency = "eur"
	catalog := Catalog{Products: []CatalogProduct{product}}

	if err := validateCatalog(&catalog); err != nil {
		t.Fatalf("validate catalog: %v", err)
	}
	if catalog.Products[0].Currency != "EUR" {
		t.Fatalf("expected EUR, got %q", catalog.Products[0].Currency)
	}
}

func TestValidateCatalogRejectsDuplicateProductID(t *testing.T) {
	catalog := Catalog{Products: []CatalogProduct{validProduct(), validProduct()}}

	if err := validateCatalog(&catalog); err == nil {
		t.Fatal("duplicate product ids must be rejected")
	}
}

func TestValidateCatalogRejectsMissingSyncVariant(t *testing.T) {
	product := validProduct()
	product.SyncVariantID = ""
	catalog := Catalog{Products: []CatalogProduct{product}}

	if err := validateCatalog(&catalog); err == nil {
		t.Fatal("missing sync variant id must be rejected")
	}
}

func TestValidateCatalogRejectsNonPositiveAmount(t *testing.T) {
	product := validProduct()
	product.UnitAmount = 0
	catalog := Catalog{Products: []CatalogProduct{product}}

	if err := validateCatalog(&catalog); err == nil {
		t.Fatal("zero unit amount must be rejected")
	}
}

func TestNewCatalogHolderWithoutFile(t *testing.T) {
	holder, err := NewCatalogHolder(zap.NewNop())
	if err != nil {
		t.Fatalf("new catalog holder: %v", err)
	}
	if products := holder.Get().Products; len(products) != 0 {
		t.Fatalf("expected empty catalog without a file, got %d products", len(products))
	}
}

func TestFindByProductID(t *testing.T) {
	catalog := Catalog{Products: []CatalogProduct{validProduct()}}

	if _, ok := catalog.FindByProductID("tee-hollow-logo"); !ok {
		t.Fatal("expected product to be found")
	}
	if _, ok := catalog.FindByProductID("poster-unreleased"); ok {
		t.Fatal("unknown product must not be found")
	}
}
