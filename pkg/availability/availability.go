package availability

import (
	"github.com/zapkart/zapkart-backend/pkg/db/models"
)

// ProductOrderable reports whether a product may appear in a checkout draft:
// it must be listed, not soft-deleted, and its category must still be listed.
// Stock is deliberately not part of this predicate; quantity is only enforced
// at confirmation time.
func ProductOrderable(p *models.Product) bool {
	if p == nil || p.IsDeleted || !p.IsListed {
		return false
	}
	if p.Category != nil && !p.Category.IsListed {
		return false
	}
	return true
}

// UnorderableReason names why a product fails ProductOrderable, for surfacing
// in validation details. Returns an empty string for orderable products.
func UnorderableReason(p *models.Product) string {
	switch {
	case p == nil || p.IsDeleted:
		return "product no longer exists"
	case !p.IsListed:
		return "product is unlisted"
	case p.Category != nil && !p.Category.IsListed:
		return "category is unlisted"
	default:
		return ""
	}
}
