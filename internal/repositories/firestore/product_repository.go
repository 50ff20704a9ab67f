package firestore

import (
	"context"
	"time"

	"github.com/mitumba-market/api/internal/domain"
	pfirestore "github.com/mitumba-market/api/internal/platform/firestore"
	"github.com/mitumba-market/api/internal/repositories"
)

const productsCollection = "products"

// ProductRepository reads catalogue entries.
type ProductRepository struct {
	base *pfirestore.BaseRepository[productDocument]
}

var _ repositories.ProductRepository = (*ProductRepository)(nil)

// NewProductRepository builds a ProductRepository.
func NewProductRepository(provider *pfirestore.Provider) *ProductRepository {
	return &ProductRepository{
		base: pfirestore.NewBaseRepository[productDocument](provider, productsCollection, nil, nil),
	}
}

type productDocument struct {
	TraderID    string    `firestore:"traderId"`
	Title       string    `firestore:"title"`
	Description string    `firestore:"description,omitempty"`
	Price       int64     `firestore:"price"`
	Currency    string    `firestore:"currency"`
	Available   bool      `firestore:"available"`
	City        string    `firestore:"city,omitempty"`
	CreatedAt   time.Time `firestore:"createdAt"`
	UpdatedAt   time.Time `firestore:"updatedAt"`
}

// FindByID loads one product.
func (r *ProductRepository) FindByID(ctx context.Context, productID string) (domain.Product, error) {
	doc, err := r.base.Get(ctx, productID)
	if err != nil {
		return domain.Product{}, err
	}
	return productFromDocument(doc.ID, doc.Data), nil
}

// FindAll loads the listed products, silently skipping IDs that no longer
// exist; callers detect the gaps.
func (r *ProductRepository) FindAll(ctx context.Context, productIDs []string) ([]domain.Product, error) {
	products := make([]domain.Product, 0, len(productIDs))
	for _, id := range productIDs {
		product, err := r.FindByID(ctx, id)
		if err != nil {
			var repoErr repositories.RepositoryError
			if asRepositoryError(err, &repoErr) && repoErr.IsNotFound() {
				continue
			}
			return nil, err
		}
		products = append(products, product)
	}
	return products, nil
}

func productFromDocument(id string, doc productDocument) domain.Product {
	return domain.Product{
		ID:          id,
		TraderID:    doc.TraderID,
		Title:       doc.Title,
		Description: doc.Description,
		Price:       doc.Price,
		Currency:    doc.Currency,
		Available:   doc.Available,
		City:        doc.City,
		CreatedAt:   doc.CreatedAt,
		UpdatedAt:   doc.UpdatedAt,
	}
}
