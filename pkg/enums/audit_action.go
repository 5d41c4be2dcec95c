package enums

import "fmt"

// AuditAction tags the kind of mutation an audit entry records.
type AuditAction string

const (
	AuditActionCreateProduct AuditAction = "CREATE_PRODUCT"
	AuditActionUpdateProduct AuditAction = "UPDATE_PRODUCT"
	AuditActionDeleteProduct AuditAction = "DELETE_PRODUCT"
	AuditActionProductImport AuditAction = "PRODUCT_IMPORT"
	AuditActionSaleCreate    AuditAction = "SALE_CREATE"
	AuditActionSaleReturn    AuditAction = "SALE_RETURN"
	AuditActionUserCreate    AuditAction = "USER_CREATE"
	AuditActionUserDelete    AuditAction = "USER_DELETE"
)

var validAuditActions = []AuditAction{
	AuditActionCreateProduct,
	AuditActionUpdateProduct,
	AuditActionDeleteProduct,
	AuditActionProductImport,
	AuditActionSaleCreate,
	AuditActionSaleReturn,
	AuditActionUserCreate,
	AuditActionUserDelete,
}

// String implements fmt.Stringer.
func (a AuditAction) String() string {
	return string(a)
}

// IsValid reports whether the value is a known AuditAction.
func (a AuditAction) IsValid() bool {
	for _, candidate := range validAuditActions {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseAuditAction converts raw input into an AuditAction.
func ParseAuditAction(value string) (AuditAction, error) {
	for _, candidate := range validAuditActions {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid audit action %q", value)
}

// ConsumesQuota reports whether the action counts against the actor's daily
// mutation quota. Deletions and reads are exempt.
func (a AuditAction) ConsumesQuota() bool {
	switch a {
	case AuditActionCreateProduct, AuditActionUpdateProduct, AuditActionProductImport:
		return true
	}
	return false
}
