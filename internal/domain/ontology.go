package domain

type EntityKind string

const (
	EntityProduct   EntityKind = "product"
	EntityCondition EntityKind = "condition"
	EntityFAQ       EntityKind = "faq"
	EntityBranch    EntityKind = "branch"
	EntityEmployee  EntityKind = "employee"
)

func ValidEntityKind(k string) bool {
	switch EntityKind(k) {
	case EntityProduct, EntityCondition, EntityFAQ, EntityBranch, EntityEmployee:
		return true
	}
	return false
}

// Attribute names with a closed value set.
const (
	AttrProductType = "product_type"
	AttrRiskClass   = "risk_class"
	AttrRoleType    = "role_type"
)

const (
	ProductTypeInterest = "InterestProduct"
	ProductTypeChecking = "CheckingAccount"
	ProductTypeSecurity = "Security"

	RoleAdvisor = "Advisor"
	RoleService = "Service"
)

// AttributeEnums lists the allowed values for enumerated attributes, keyed by
// entity kind and attribute name. Attributes not listed accept any non-empty value.
var AttributeEnums = map[EntityKind]map[string][]string{
	EntityProduct: {
		AttrProductType: {ProductTypeInterest, ProductTypeChecking, ProductTypeSecurity},
		AttrRiskClass:   {"1", "2", "3", "4", "5"},
	},
	EntityEmployee: {
		AttrRoleType: {RoleAdvisor, RoleService},
	},
}

func ValidAttributeValue(kind EntityKind, attribute, value string) bool {
	allowed, ok := AttributeEnums[kind][attribute]
	if !ok {
		return true
	}
	for _, v := range allowed {
		if v == value {
			return true
		}
	}
	return false
}
