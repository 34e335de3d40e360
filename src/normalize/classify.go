package normalize

import (
	"strings"

	"errlens-agent/src/contracts"
)

// Classification is the message-derived fault class stored in
// metadata["classification"].
type Classification string

const (
	ClassDeprecation    Classification = "deprecation"
	ClassCSP            Classification = "csp"
	ClassCORS           Classification = "cors"
	ClassNetwork        Classification = "network"
	ClassSyntaxError    Classification = "syntax_error"
	ClassTypeError      Classification = "type_error"
	ClassReferenceError Classification = "reference_error"
	ClassPermission     Classification = "permission"
	ClassGeneral        Classification = "general"
)

// classRules are checked in order; the first rule with any matching keyword wins.
// Order matters: "Failed to fetch (CORS)" is cors, not network.
var classRules = []struct {
	class    Classification
	keywords []string
}{
	{ClassDeprecation, []string{"deprecat"}},
	{ClassCSP, []string{"content security policy", "content-security-policy", "csp"}},
	{ClassCORS, []string{"cors", "cross-origin", "access-control-allow-origin"}},
	{ClassNetwork, []string{"network", "failed to fetch", "net::", "load failed"}},
	{ClassSyntaxError, []string{"syntaxerror", "syntax error", "unexpected token"}},
	{ClassTypeError, []string{"typeerror", "type error", "is not a function", "cannot read propert"}},
	{ClassReferenceError, []string{"referenceerror", "reference error", "is not defined"}},
	{ClassPermission, []string{"permission", "notallowederror"}},
}

// Classify returns the first matching class for message, or ClassGeneral.
func Classify(message string) Classification {
	lower := strings.ToLower(message)
	for _, rule := range classRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				return rule.class
			}
		}
	}
	return ClassGeneral
}

// Category maps a classification onto the coarse filter category used for
// console events.
func (c Classification) Category() contracts.Category {
	switch c {
	case ClassDeprecation:
		return contracts.CategoryDeprecation
	case ClassCSP:
		return contracts.CategoryCSP
	case ClassCORS, ClassNetwork:
		return contracts.CategoryNetwork
	default:
		return contracts.CategoryJavaScript
	}
}
