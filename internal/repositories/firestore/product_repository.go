package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/mtch-store/api/internal/domain"
	pfirestore "github.com/mtch-store/api/internal/platform/firestore"
	"github.com/mtch-store/api/internal/repositories"
)

const (
	productsCollection     = "products"
	productCodesCollection = "productCodes"

	defaultProductPageSize = 50
	maxProductPageSize     = 200
)

type productDocument struct {
	Name        string    `firestore:"name"`
	NameLower   string    `firestore:"nameLower"`
	Description string    `firestore:"description,omitempty"`
	SKU         string    `firestore:"sku"`
	Barcode     *string   `firestore:"barcode,omitempty"`
	Price       int64     `firestore:"price"`
	Currency    string    `firestore:"currency"`
	Stock       int       `firestore:"stock"`
	Active      bool      `firestore:"active"`
	ImageURL    string    `firestore:"imageUrl,omitempty"`
	CreatedAt   time.Time `firestore:"createdAt"`
	UpdatedAt   time.Time `firestore:"updatedAt"`
}

func (d productDocument) toDomain(id string) domain.Product {
	return domain.Product{
		ID:          id,
		Name:        d.Name,
		Description: d.Description,
		SKU:         d.SKU,
		Barcode:     d.Barcode,
		Price:       d.Price,
		Currency:    d.Currency,
		Stock:       d.Stock,
		Active:      d.Active,
		ImageURL:    d.ImageURL,
		CreatedAt:   d.CreatedAt.UTC(),
		UpdatedAt:   d.UpdatedAt.UTC(),
	}
}

func productToDocument(product domain.Product) productDocument {
	return productDocument{
		Name:        product.Name,
		NameLower:   strings.ToLower(strings.TrimSpace(product.Name)),
		Description: product.Description,
		SKU:         product.SKU,
		Barcode:     product.Barcode,
		Price:       product.Price,
		Currency:    product.Currency,
		Stock:       product.Stock,
		Active:      product.Active,
		ImageURL:    product.ImageURL,
		CreatedAt:   product.CreatedAt,
		UpdatedAt:   product.UpdatedAt,
	}
}

// codeDocument claims a unique SKU or barcode inside the productCodes index
// collection. The document ID encodes the code itself, so tx.Create fails with
// AlreadyExists when another product holds it.
type codeDocument struct {
	ProductID string    `firestore:"productId"`
	Kind      string    `firestore:"kind"`
	ClaimedAt time.Time `firestore:"claimedAt"`
}

// ProductRepository implements repositories.ProductRepository on Firestore.
type ProductRepository struct {
	provider *pfirestore.Provider
	products *pfirestore.BaseRepository[productDocument]
}

// NewProductRepository constructs a Firestore-backed product repository.
func NewProductRepository(provider *pfirestore.Provider) (*ProductRepository, error) {
	if provider == nil {
		return nil, errors.New("product repository requires firestore provider")
	}
	return &ProductRepository{
		provider: provider,
		products: pfirestore.NewBaseRepository[productDocument](provider, productsCollection, nil, nil),
	}, nil
}

// Insert creates the product document and claims its codes in one transaction.
func (r *ProductRepository) Insert(ctx context.Context, product domain.Product) error {
	if r == nil || r.provider == nil {
		return errors.New("product repository not initialised")
	}
	if strings.TrimSpace(product.ID) == "" {
		return errors.New("product id is required")
	}

	doc := productToDocument(product)

	return r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		client, err := r.provider.Client(ctx)
		if err != nil {
			return err
		}

		productRef := client.Collection(productsCollection).Doc(product.ID)
		if err := tx.Create(productRef, doc); err != nil {
			return err
		}

		for _, code := range productCodes(product) {
			codeRef := client.Collection(productCodesCollection).Doc(code.docID)
			claim := codeDocument{ProductID: product.ID, Kind: code.kind, ClaimedAt: product.CreatedAt}
			if err := tx.Create(codeRef, claim); err != nil {
				return err
			}
		}
		return nil
	})
}

// Update rewrites the product document, migrating code claims when the SKU or
// barcode changed.
func (r *ProductRepository) Update(ctx context.Context, product domain.Product) error {
	if r == nil || r.provider == nil {
		return errors.New("product repository not initialised")
	}
	if strings.TrimSpace(product.ID) == "" {
		return errors.New("product id is required")
	}

	doc := productToDocument(product)

	return r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		client, err := r.provider.Client(ctx)
		if err != nil {
			return err
		}

		productRef := client.Collection(productsCollection).Doc(product.ID)
		snapshot, err := tx.Get(productRef)
		if err != nil {
			return err
		}

		var existing productDocument
		if err := snapshot.DataTo(&existing); err != nil {
			return fmt.Errorf("firestore products decode %s: %w", product.ID, err)
		}

		// Preserve the original creation timestamp.
		doc.CreatedAt = existing.CreatedAt

		oldCodes := codeSet(productCodes(existing.toDomain(product.ID)))
		newCodes := productCodes(product)

		for _, code := range newCodes {
			if _, held := oldCodes[code.docID]; held {
				delete(oldCodes, code.docID)
				continue
			}
			codeRef := client.Collection(productCodesCollection).Doc(code.docID)
			claim := codeDocument{ProductID: product.ID, Kind: code.kind, ClaimedAt: product.UpdatedAt}
			if err := tx.Create(codeRef, claim); err != nil {
				return err
			}
		}
		for docID := range oldCodes {
			if err := tx.Delete(client.Collection(productCodesCollection).Doc(docID)); err != nil {
				return err
			}
		}

		return tx.Set(productRef, doc)
	})
}

// FindByID loads a single product.
func (r *ProductRepository) FindByID(ctx context.Context, productID string) (domain.Product, error) {
	if r == nil || r.products == nil {
		return domain.Product{}, errors.New("product repository not initialised")
	}
	id := strings.TrimSpace(productID)
	if id == "" {
		return domain.Product{}, pfirestore.WrapError("products.get", status.Error(codes.NotFound, "product id is required"))
	}

	doc, err := r.products.Get(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}
	return doc.Data.toDomain(doc.ID), nil
}

// List pages through the catalog with optional search prefix and active filter.
func (r *ProductRepository) List(ctx context.Context, filter domain.ProductFilter) (domain.CursorPage[domain.Product], error) {
	if r == nil || r.products == nil {
		return domain.CursorPage[domain.Product]{}, errors.New("product repository not initialised")
	}

	pageSize := normalizePageSize(filter.Pagination.PageSize)

	var decodedToken *productPageToken
	if token := strings.TrimSpace(filter.Pagination.PageToken); token != "" {
		tok, err := decodeProductPageToken(token)
		if err != nil {
			return domain.CursorPage[domain.Product]{}, pfirestore.WrapError("products.list", err)
		}
		decodedToken = tok
	}

	search := strings.ToLower(strings.TrimSpace(filter.Search))

	docs, err := r.products.Query(ctx, func(q firestore.Query) firestore.Query {
		if filter.ActiveOnly {
			q = q.Where("active", "==", true)
		}
		if search != "" {
			q = q.Where("nameLower", ">=", search).Where("nameLower", "<", search+"\uf8ff")
		}
		q = q.OrderBy("nameLower", firestore.Asc).OrderBy(firestore.DocumentID, firestore.Asc)
		if decodedToken != nil {
			q = q.StartAfter(decodedToken.Name, decodedToken.ID)
		}
		return q.Limit(pageSize + 1)
	})
	if err != nil {
		return domain.CursorPage[domain.Product]{}, err
	}

	products := make([]domain.Product, 0, len(docs))
	for _, doc := range docs {
		products = append(products, doc.Data.toDomain(doc.ID))
	}

	hasMore := len(products) > pageSize
	if hasMore {
		products = products[:pageSize]
	}
	var nextToken string
	if hasMore && len(products) > 0 {
		last := products[len(products)-1]
		encoded, err := encodeProductPageToken(productPageToken{ID: last.ID, Name: strings.ToLower(last.Name)})
		if err != nil {
			return domain.CursorPage[domain.Product]{}, pfirestore.WrapError("products.list", err)
		}
		nextToken = encoded
	}

	return domain.CursorPage[domain.Product]{Items: products, NextPageToken: nextToken}, nil
}

// ListLowStock pages through products whose stock is at or below the threshold.
func (r *ProductRepository) ListLowStock(ctx context.Context, threshold int, pager domain.Pagination) (domain.CursorPage[domain.Product], error) {
	if r == nil || r.products == nil {
		return domain.CursorPage[domain.Product]{}, errors.New("product repository not initialised")
	}
	if threshold < 0 {
		threshold = 0
	}

	pageSize := normalizePageSize(pager.PageSize)

	var decodedToken *productPageToken
	if token := strings.TrimSpace(pager.PageToken); token != "" {
		tok, err := decodeProductPageToken(token)
		if err != nil {
			return domain.CursorPage[domain.Product]{}, pfirestore.WrapError("products.lowStock", err)
		}
		decodedToken = tok
	}

	docs, err := r.products.Query(ctx, func(q firestore.Query) firestore.Query {
		q = q.Where("stock", "<=", threshold).
			OrderBy("stock", firestore.Asc).
			OrderBy(firestore.DocumentID, firestore.Asc)
		if decodedToken != nil {
			q = q.StartAfter(decodedToken.Stock, decodedToken.ID)
		}
		return q.Limit(pageSize + 1)
	})
	if err != nil {
		return domain.CursorPage[domain.Product]{}, err
	}

	products := make([]domain.Product, 0, len(docs))
	for _, doc := range docs {
		products = append(products, doc.Data.toDomain(doc.ID))
	}

	hasMore := len(products) > pageSize
	if hasMore {
		products = products[:pageSize]
	}
	var nextToken string
	if hasMore && len(products) > 0 {
		last := products[len(products)-1]
		encoded, err := encodeProductPageToken(productPageToken{ID: last.ID, Stock: last.Stock})
		if err != nil {
			return domain.CursorPage[domain.Product]{}, pfirestore.WrapError("products.lowStock", err)
		}
		nextToken = encoded
	}

	return domain.CursorPage[domain.Product]{Items: products, NextPageToken: nextToken}, nil
}

// AdjustStock mutates the stock level inside a transaction so concurrent
// adjustments never lose updates.
func (r *ProductRepository) AdjustStock(ctx context.Context, req repositories.StockAdjustRequest) (domain.StockAdjustment, error) {
	if r == nil || r.provider == nil {
		return domain.StockAdjustment{}, errors.New("product repository not initialised")
	}
	id := strings.TrimSpace(req.ProductID)
	if id == "" {
		return domain.StockAdjustment{}, errors.New("product id is required")
	}
	if req.Quantity < 0 {
		return domain.StockAdjustment{}, fmt.Errorf("quantity must be non-negative, got %d", req.Quantity)
	}

	now := req.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	var adjustment domain.StockAdjustment

	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		client, err := r.provider.Client(ctx)
		if err != nil {
			return err
		}

		ref := client.Collection(productsCollection).Doc(id)
		snapshot, err := tx.Get(ref)
		if err != nil {
			return err
		}

		var doc productDocument
		if err := snapshot.DataTo(&doc); err != nil {
			return fmt.Errorf("firestore products decode %s: %w", id, err)
		}

		previous := doc.Stock
		next := previous
		switch req.Mode {
		case domain.StockAdjustAdd:
			next = previous + req.Quantity
		case domain.StockAdjustRemove:
			next = previous - req.Quantity
			if next < 0 {
				next = 0
			}
		case domain.StockAdjustSet:
			next = req.Quantity
		default:
			return fmt.Errorf("unsupported stock adjustment mode %q", req.Mode)
		}

		if err := tx.Update(ref, []firestore.Update{
			{Path: "stock", Value: next},
			{Path: "updatedAt", Value: now},
		}); err != nil {
			return err
		}

		adjustment = domain.StockAdjustment{
			ProductID:     id,
			ProductName:   doc.Name,
			Mode:          req.Mode,
			Quantity:      req.Quantity,
			PreviousStock: previous,
			NewStock:      next,
			Reason:        req.Reason,
			AdjustedAt:    now,
		}
		return nil
	})
	if err != nil {
		return domain.StockAdjustment{}, err
	}
	return adjustment, nil
}

type productCode struct {
	docID string
	kind  string
}

func productCodes(product domain.Product) []productCode {
	var out []productCode
	if sku := strings.ToLower(strings.TrimSpace(product.SKU)); sku != "" {
		out = append(out, productCode{docID: "sku:" + sku, kind: "sku"})
	}
	if product.Barcode != nil {
		if barcode := strings.ToLower(strings.TrimSpace(*product.Barcode)); barcode != "" {
			out = append(out, productCode{docID: "barcode:" + barcode, kind: "barcode"})
		}
	}
	return out
}

func codeSet(codes []productCode) map[string]struct{} {
	out := make(map[string]struct{}, len(codes))
	for _, code := range codes {
		out[code.docID] = struct{}{}
	}
	return out
}

func normalizePageSize(pageSize int) int {
	if pageSize <= 0 {
		return defaultProductPageSize
	}
	if pageSize > maxProductPageSize {
		return maxProductPageSize
	}
	return pageSize
}

type productPageToken struct {
	ID    string
	Name  string
	Stock int
}

func encodeProductPageToken(token productPageToken) (string, error) {
	return encodePageToken(token)
}

func decodeProductPageToken(encoded string) (*productPageToken, error) {
	var token productPageToken
	if err := decodePageToken(encoded, &token); err != nil {
		return nil, err
	}
	return &token, nil
}
