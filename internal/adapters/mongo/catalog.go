package mongo

import (
	"context"
	"time"

	"github.com/fitlife/checkout-and-bookings/internal/domain"
	"github.com/fitlife/checkout-and-bookings/internal/observability"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// CatalogRepository resolves cart lines against the product and membership
// catalogs. A missing document is how "referenced item has disappeared"
// surfaces during order construction.
type CatalogRepository struct {
	products    *mongo.Collection
	memberships *mongo.Collection
	logger      observability.Logger
}

func NewCatalogRepository(db *mongo.Database, logger observability.Logger) *CatalogRepository {
	return &CatalogRepository{
		products:    db.Collection("products"),
		memberships: db.Collection("membership_tiers"),
		logger:      logger,
	}
}

type ProductDoc struct {
	ID        uuid.UUID `bson:"_id"`
	Name      string    `bson:"name"`
	Price     string    `bson:"price"`
	IsActive  bool      `bson:"is_active"`
	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

type MembershipTierDoc struct {
	ID       uuid.UUID `bson:"_id"`
	Name     string    `bson:"name"`
	Price    string    `bson:"price"`
	Duration string    `bson:"duration"`
	IsActive bool      `bson:"is_active"`
}

// ResolvePrice returns the current unit price for a cart line, or
// domain.ErrLineItemVanished when the referenced item no longer exists.
func (c *CatalogRepository) ResolvePrice(ctx context.Context, kind domain.ItemKind, itemID uuid.UUID) (decimal.Decimal, error) {
	var raw string
	switch kind {
	case domain.ItemKindProduct:
		var doc ProductDoc
		if err := c.products.FindOne(ctx, bson.M{"_id": itemID}).Decode(&doc); err != nil {
			if err == mongo.ErrNoDocuments {
				return decimal.Zero, domain.ErrLineItemVanished
			}
			return decimal.Zero, err
		}
		raw = doc.Price
	case domain.ItemKindMembership:
		var doc MembershipTierDoc
		if err := c.memberships.FindOne(ctx, bson.M{"_id": itemID}).Decode(&doc); err != nil {
			if err == mongo.ErrNoDocuments {
				return decimal.Zero, domain.ErrLineItemVanished
			}
			return decimal.Zero, err
		}
		raw = doc.Price
	default:
		return decimal.Zero, domain.ErrInvalidInput
	}

	price, err := decimal.NewFromString(raw)
	if err != nil {
		c.logger.WithField("item_id", itemID).Error("malformed catalog price", err)
		return decimal.Zero, err
	}
	return price, nil
}

func (c *CatalogRepository) CreateProduct(ctx context.Context, doc ProductDoc) error {
	doc.CreatedAt = time.Now()
	doc.UpdatedAt = time.Now()
	_, err := c.products.InsertOne(ctx, doc)
	if err != nil {
		c.logger.Error("failed to create product", err)
	}
	return err
}

func (c *CatalogRepository) CreateMembershipTier(ctx context.Context, doc MembershipTierDoc) error {
	_, err := c.memberships.InsertOne(ctx, doc)
	if err != nil {
		c.logger.Error("failed to create membership tier", err)
	}
	return err
}
