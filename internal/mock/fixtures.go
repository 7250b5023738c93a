package mock

import (
	"time"

	"github.com/rentwise/rentwise/internal/database"
	"github.com/rentwise/rentwise/internal/model"
)

// DefaultUser is a complete tenant record.
var DefaultUser = model.User{
	Email:      "jo@example.com",
	FirstName:  "Jo",
	LastName:   "Bloggs",
	Phone:      "+44 20 7946 0000",
	Gender:     model.GenderOther,
	Address:    "1 High Street",
	City:       "Leeds",
	State:      "West Yorkshire",
	PostalCode: "LS1 1AA",
	Role:       model.RoleTenant,
	CreatedAt:  time.Date(2021, 6, 1, 9, 0, 0, 0, time.UTC),
}

// LegacyTenancy returns a tenancy created before any verification or
// review state was recorded.
func LegacyTenancy() database.Document {
	return database.Document{
		"propertyId": "property-1",
		"tenantId":   "tenant-1",
	}
}

// CompleteTenancy returns a tenancy with every state field set to a
// value other than its default.
func CompleteTenancy() database.Document {
	return database.Document{
		"propertyId":                         "property-2",
		"tenantId":                           "tenant-2",
		model.TenancyFieldFreeReviewEligible: false,
		model.TenancyFieldLandlordReviewable: false,
		model.TenancyFieldMutualReviewAgreed: true,
		model.TenancyFieldTenantVerified:     true,
		model.TenancyFieldLandlordVerified:   true,
		model.TenancyFieldAddressVerified:    true,
		model.TenancyFieldDocumentsVerified:  true,
		model.TenancyFieldRequires2FA:        true,
		model.TenancyFieldResendCount:        3,
	}
}
