package backend

import (
	"strings"

	"certos/internal/domain"
)

// sanitizeResult maps loosely-typed model output onto the strict certificate
// schema. The prompt already asks for normalized values, but models drift:
// currency comes back as "$1,000,000" strings, unknowns as "", phones with
// punctuation. Coverages with a zero, null, or unparsable limit are dropped
// from the output entirely.
func sanitizeResult(m map[string]any) (*domain.ExtractionResult, error) {
	result := &domain.ExtractionResult{
		Insurers: []domain.Insurer{},
		Policies: []domain.Policy{},
	}

	if ci, ok := m["certificate_information"].(map[string]any); ok {
		result.CertificateInformation = domain.CertificateInformation{
			CertificateDate:          strField(ci, "certificate_date"),
			InsuredName:              strField(ci, "insured_name"),
			InsuredAddress:           strField(ci, "insured_address"),
			CertificateHolderName:    strField(ci, "certificate_holder_name"),
			CertificateHolderAddress: strField(ci, "certificate_holder_address"),
			DescriptionOfOperations:  strField(ci, "description_of_operations"),
		}
	}

	if insurers, ok := m["insurers"].([]any); ok {
		for _, raw := range insurers {
			row, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			letter := ""
			if l := strField(row, "letter"); l != nil {
				letter = strings.ToUpper(*l)
			}
			result.Insurers = append(result.Insurers, domain.Insurer{
				Letter:     letter,
				Name:       strField(row, "name"),
				NAICNumber: strField(row, "naic_number"),
			})
		}
	}

	if policies, ok := m["policies"].([]any); ok {
		for _, raw := range policies {
			row, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			policy := domain.Policy{
				InsurerLetter:     strField(row, "insurer_letter"),
				PolicyType:        strField(row, "policy_type"),
				PolicyNumber:      strField(row, "policy_number"),
				EffectiveDate:     strField(row, "effective_date"),
				ExpirationDate:    strField(row, "expiration_date"),
				AdditionalInsured: boolField(row, "additional_insured"),
				SubrogationWaived: boolField(row, "subrogation_waived"),
				Coverages:         []domain.Coverage{},
			}
			if coverages, ok := row["coverages"].([]any); ok {
				for _, rawCov := range coverages {
					cov, ok := rawCov.(map[string]any)
					if !ok {
						continue
					}
					limit := NormalizeCurrency(cov["limit_value"])
					if limit == nil || *limit == 0 {
						continue
					}
					policy.Coverages = append(policy.Coverages, domain.Coverage{
						LimitDescription: strField(cov, "limit_description"),
						LimitValue:       limit,
					})
				}
			}
			result.Policies = append(result.Policies, policy)
		}
	}

	if pi, ok := m["producer_information"].(map[string]any); ok {
		result.ProducerInformation = domain.ProducerInformation{
			Name:        strField(pi, "name"),
			Address:     strField(pi, "address"),
			ContactName: strField(pi, "contact_name"),
			Phone:       phoneField(pi, "phone"),
			Fax:         phoneField(pi, "fax"),
			Email:       strField(pi, "email"),
		}
	}

	return result, nil
}

// strField reads a string value, mapping absent, null, and "" to nil.
func strField(m map[string]any, key string) *string {
	v, ok := m[key].(string)
	if !ok {
		return nil
	}
	s := strings.TrimSpace(v)
	if s == "" || strings.EqualFold(s, "null") {
		return nil
	}
	return &s
}

// boolField reads a bool value, mapping absent and null to nil.
func boolField(m map[string]any, key string) *bool {
	v, ok := m[key].(bool)
	if !ok {
		return nil
	}
	return &v
}

// phoneField reads a phone-ish value and reduces it to digits only.
func phoneField(m map[string]any, key string) *string {
	s := strField(m, key)
	if s == nil {
		return nil
	}
	digits := NormalizePhone(*s)
	if digits == "" {
		return nil
	}
	return &digits
}

// NormalizePhone strips everything but digits: "(800) 668-7020" -> "8006687020".
func NormalizePhone(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NormalizeCurrency coerces a model-provided limit into a plain integer.
// Accepts JSON numbers and strings like "$1,000,000"; returns nil for null,
// blank, or unparsable values.
func NormalizeCurrency(v any) *int64 {
	switch t := v.(type) {
	case float64:
		n := int64(t)
		return &n
	case string:
		s := strings.TrimSpace(t)
		s = strings.TrimPrefix(s, "$")
		s = strings.ReplaceAll(s, ",", "")
		s = strings.TrimSpace(s)
		if s == "" {
			return nil
		}
		var n int64
		for _, r := range s {
			if r < '0' || r > '9' {
				return nil
			}
			n = n*10 + int64(r-'0')
		}
		return &n
	default:
		return nil
	}
}
