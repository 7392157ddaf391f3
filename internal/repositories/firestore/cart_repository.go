package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	domain "github.com/mtch-store/api/internal/domain"
	pfirestore "github.com/mtch-store/api/internal/platform/firestore"
	"github.com/mtch-store/api/internal/repositories"
)

const cartsCollection = "carts"

// cartDocument stores the whole cart as a single document keyed by user ID.
// Embedding the items keeps "one cart per user, one line per product" true by
// construction.
type cartDocument struct {
	UserID    string             `firestore:"userId"`
	Items     []cartItemDocument `firestore:"items"`
	UpdatedAt time.Time          `firestore:"updatedAt"`
}

type cartItemDocument struct {
	ProductID string    `firestore:"productId"`
	Quantity  int       `firestore:"quantity"`
	AddedAt   time.Time `firestore:"addedAt"`
}

func (d cartDocument) toDomain(id string) domain.Cart {
	items := make([]domain.CartItem, len(d.Items))
	for i, item := range d.Items {
		items[i] = domain.CartItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			AddedAt:   item.AddedAt.UTC(),
		}
	}
	return domain.Cart{
		ID:        id,
		UserID:    d.UserID,
		Items:     items,
		UpdatedAt: d.UpdatedAt.UTC(),
	}
}

func cartItemsToDocuments(items []domain.CartItem) []cartItemDocument {
	out := make([]cartItemDocument, len(items))
	for i, item := range items {
		out[i] = cartItemDocument{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			AddedAt:   item.AddedAt,
		}
	}
	return out
}

// CartRepository implements repositories.CartRepository on Firestore.
type CartRepository struct {
	provider *pfirestore.Provider
	carts    *pfirestore.BaseRepository[cartDocument]
}

// NewCartRepository constructs a Firestore-backed cart repository.
func NewCartRepository(provider *pfirestore.Provider) (*CartRepository, error) {
	if provider == nil {
		return nil, errors.New("cart repository requires firestore provider")
	}
	return &CartRepository{
		provider: provider,
		carts:    pfirestore.NewBaseRepository[cartDocument](provider, cartsCollection, nil, nil),
	}, nil
}

// GetCart loads the user's cart. A missing document is an empty cart, not an error.
func (r *CartRepository) GetCart(ctx context.Context, userID string) (domain.Cart, error) {
	if r == nil || r.carts == nil {
		return domain.Cart{}, errors.New("cart repository not initialised")
	}
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return domain.Cart{}, errors.New("user id is required")
	}

	doc, err := r.carts.Get(ctx, uid)
	if err != nil {
		if isNotFound(err) {
			return domain.Cart{ID: uid, UserID: uid, Items: []domain.CartItem{}}, nil
		}
		return domain.Cart{}, err
	}
	return doc.Data.toDomain(doc.ID), nil
}

// ReplaceItems rewrites the cart's item set in one write.
func (r *CartRepository) ReplaceItems(ctx context.Context, userID string, items []domain.CartItem, now time.Time) (domain.Cart, error) {
	if r == nil || r.carts == nil {
		return domain.Cart{}, errors.New("cart repository not initialised")
	}
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return domain.Cart{}, errors.New("user id is required")
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	doc := cartDocument{
		UserID:    uid,
		Items:     cartItemsToDocuments(items),
		UpdatedAt: now,
	}
	if _, err := r.carts.Set(ctx, uid, doc); err != nil {
		return domain.Cart{}, err
	}
	return doc.toDomain(uid), nil
}

// Clear removes the cart document entirely. Clearing an absent cart is a no-op.
func (r *CartRepository) Clear(ctx context.Context, userID string) error {
	if r == nil || r.carts == nil {
		return errors.New("cart repository not initialised")
	}
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return errors.New("user id is required")
	}

	if err := r.carts.Delete(ctx, uid); err != nil && !isNotFound(err) {
		return err
	}
	return nil
}

func isNotFound(err error) bool {
	var repoErr repositories.RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsNotFound()
}
