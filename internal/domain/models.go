package domain

// ExtractionResult is the normalized record extracted from an ACORD 25
// Certificate of Liability Insurance form. Unknown leaf fields are explicit
// JSON nulls (pointer types), never empty strings.
type ExtractionResult struct {
	CertificateInformation CertificateInformation `json:"certificate_information"`
	Insurers               []Insurer              `json:"insurers"`
	Policies               []Policy               `json:"policies"`
	ProducerInformation    ProducerInformation    `json:"producer_information"`
}

// CertificateInformation holds the top and bottom sections of the form.
type CertificateInformation struct {
	CertificateDate          *string `json:"certificate_date"`
	InsuredName              *string `json:"insured_name"`
	InsuredAddress           *string `json:"insured_address"`
	CertificateHolderName    *string `json:"certificate_holder_name"`
	CertificateHolderAddress *string `json:"certificate_holder_address"`
	DescriptionOfOperations  *string `json:"description_of_operations"`
}

// Insurer is one row of the "INSURER(S) AFFORDING COVERAGE" table.
type Insurer struct {
	Letter     string  `json:"letter"`
	Name       *string `json:"name"`
	NAICNumber *string `json:"naic_number"`
}

// Policy is one coverage row of the certificate body.
type Policy struct {
	// InsurerLetter is the letter code printed on the row itself. It is
	// never inferred from row position or alphabetical order.
	InsurerLetter     *string    `json:"insurer_letter"`
	PolicyType        *string    `json:"policy_type"`
	PolicyNumber      *string    `json:"policy_number"`
	EffectiveDate     *string    `json:"effective_date"`
	ExpirationDate    *string    `json:"expiration_date"`
	AdditionalInsured *bool      `json:"additional_insured"`
	SubrogationWaived *bool      `json:"subrogation_waived"`
	Coverages         []Coverage `json:"coverages"`
}

// Coverage is one limit line item under a policy. Entries whose limit is
// zero, blank, or unparsable are dropped from the result entirely.
type Coverage struct {
	LimitDescription *string `json:"limit_description"`
	LimitValue       *int64  `json:"limit_value"`
}

// ProducerInformation holds the agency block of the form. Phone and fax are
// normalized to digit-only strings.
type ProducerInformation struct {
	Name        *string `json:"name"`
	Address     *string `json:"address"`
	ContactName *string `json:"contact_name"`
	Phone       *string `json:"phone"`
	Fax         *string `json:"fax"`
	Email       *string `json:"email"`
}
