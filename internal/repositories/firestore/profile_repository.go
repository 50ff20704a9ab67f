package firestore

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"

	"github.com/mitumba-market/api/internal/domain"
	pfirestore "github.com/mitumba-market/api/internal/platform/firestore"
	"github.com/mitumba-market/api/internal/repositories"
)

const profilesCollection = "profiles"

// ProfileRepository reads user profiles keyed by auth UID.
type ProfileRepository struct {
	base *pfirestore.BaseRepository[profileDocument]
}

var _ repositories.ProfileRepository = (*ProfileRepository)(nil)

// NewProfileRepository builds a ProfileRepository.
func NewProfileRepository(provider *pfirestore.Provider) *ProfileRepository {
	return &ProfileRepository{
		base: pfirestore.NewBaseRepository[profileDocument](provider, profilesCollection, nil, nil),
	}
}

type profileDocument struct {
	DisplayName string    `firestore:"displayName"`
	Email       string    `firestore:"email,omitempty"`
	Phone       string    `firestore:"phone,omitempty"`
	Role        string    `firestore:"role"`
	Location    string    `firestore:"location,omitempty"`
	CreatedAt   time.Time `firestore:"createdAt"`
	UpdatedAt   time.Time `firestore:"updatedAt"`
}

// FindByID loads one profile.
func (r *ProfileRepository) FindByID(ctx context.Context, userID string) (domain.Profile, error) {
	doc, err := r.base.Get(ctx, userID)
	if err != nil {
		return domain.Profile{}, err
	}
	return profileFromDocument(doc.ID, doc.Data), nil
}

// ListByRole returns every profile carrying the role.
func (r *ProfileRepository) ListByRole(ctx context.Context, role domain.UserRole) ([]domain.Profile, error) {
	docs, err := r.base.Query(ctx, func(query firestore.Query) firestore.Query {
		return query.Where("role", "==", string(role))
	})
	if err != nil {
		return nil, err
	}

	profiles := make([]domain.Profile, 0, len(docs))
	for _, doc := range docs {
		profiles = append(profiles, profileFromDocument(doc.ID, doc.Data))
	}
	return profiles, nil
}

func profileFromDocument(id string, doc profileDocument) domain.Profile {
	return domain.Profile{
		ID:          id,
		DisplayName: doc.DisplayName,
		Email:       doc.Email,
		Phone:       doc.Phone,
		Role:        domain.UserRole(doc.Role),
		Location:    doc.Location,
		CreatedAt:   doc.CreatedAt,
		UpdatedAt:   doc.UpdatedAt,
	}
}
