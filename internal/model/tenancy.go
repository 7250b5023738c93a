package model

// CollectionTenancies is the document collection holding tenancies.
const CollectionTenancies = "tenancies"

// Field names of the verification and review state of a tenancy.
const (
	TenancyFieldFreeReviewEligible = "freeReviewEligible"
	TenancyFieldLandlordReviewable = "landlordReviewable"
	TenancyFieldMutualReviewAgreed = "mutualReviewAgreed"
	TenancyFieldTenantVerified     = "tenantVerified"
	TenancyFieldLandlordVerified   = "landlordVerified"
	TenancyFieldAddressVerified    = "addressVerified"
	TenancyFieldDocumentsVerified  = "documentsVerified"
	TenancyFieldRequires2FA        = "requires2FA"
	TenancyFieldResendCount        = "resendCount"
	TenancyFieldSchemaVersion      = "schemaVersion"
)

// TenancySchemaVersion is the version stamped on tenancies once every
// state field has been defined.
const TenancySchemaVersion = 1

// TenancyDefaults holds the value a state field takes when a tenancy
// was created without it.
var TenancyDefaults = map[string]interface{}{
	TenancyFieldFreeReviewEligible: true,
	TenancyFieldLandlordReviewable: true,
	TenancyFieldMutualReviewAgreed: false,
	TenancyFieldTenantVerified:     false,
	TenancyFieldLandlordVerified:   false,
	TenancyFieldAddressVerified:    false,
	TenancyFieldDocumentsVerified:  false,
	TenancyFieldRequires2FA:        false,
	TenancyFieldResendCount:        0,
}

// Tenancy is the lease relationship between a tenant and a property. Only
// the verification and review state is modelled here; the rest of the
// record belongs to the lease flow. Nil fields are absent from the record.
type Tenancy struct {
	ID                 string `mapstructure:"_id" json:"id"`
	FreeReviewEligible *bool  `mapstructure:"freeReviewEligible" json:"freeReviewEligible,omitempty"`
	LandlordReviewable *bool  `mapstructure:"landlordReviewable" json:"landlordReviewable,omitempty"`
	MutualReviewAgreed *bool  `mapstructure:"mutualReviewAgreed" json:"mutualReviewAgreed,omitempty"`
	TenantVerified     *bool  `mapstructure:"tenantVerified" json:"tenantVerified,omitempty"`
	LandlordVerified   *bool  `mapstructure:"landlordVerified" json:"landlordVerified,omitempty"`
	AddressVerified    *bool  `mapstructure:"addressVerified" json:"addressVerified,omitempty"`
	DocumentsVerified  *bool  `mapstructure:"documentsVerified" json:"documentsVerified,omitempty"`
	Requires2FA        *bool  `mapstructure:"requires2FA" json:"requires2FA,omitempty"`
	ResendCount        *int   `mapstructure:"resendCount" json:"resendCount,omitempty"`
	SchemaVersion      *int   `mapstructure:"schemaVersion" json:"schemaVersion,omitempty"`
}

// Complete reports whether every state field is defined.
func (t *Tenancy) Complete() bool {
	for _, b := range []*bool{
		t.FreeReviewEligible,
		t.LandlordReviewable,
		t.MutualReviewAgreed,
		t.TenantVerified,
		t.LandlordVerified,
		t.AddressVerified,
		t.DocumentsVerified,
		t.Requires2FA,
	} {
		if b == nil {
			return false
		}
	}
	return t.ResendCount != nil
}

// NeedsBackfill reports whether the tenancy predates the current schema:
// it has never been stamped and is still missing its address
// verification state.
func (t *Tenancy) NeedsBackfill() bool {
	if t.SchemaVersion != nil && *t.SchemaVersion >= TenancySchemaVersion {
		return false
	}
	return t.AddressVerified == nil
}
