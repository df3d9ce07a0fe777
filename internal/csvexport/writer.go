package csvexport

import (
	"encoding/csv"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"certos/internal/domain"
)

// UTF-8 BOM bytes for Excel compatibility on Windows.
var BOM = []byte{0xEF, 0xBB, 0xBF}

// columns defines the CSV header row (22 columns). The extraction result is
// flattened to one row per coverage line; certificate-level and producer
// columns repeat on every row.
var columns = []string{
	"Certificate Date",
	"Insured Name",
	"Insured Address",
	"Certificate Holder Name",
	"Certificate Holder Address",
	"Description of Operations",
	"Producer Name",
	"Producer Contact",
	"Producer Phone",
	"Producer Fax",
	"Producer Email",
	"Insurer Letter",
	"Insurer Name",
	"NAIC Number",
	"Policy Type",
	"Policy Number",
	"Effective Date",
	"Expiration Date",
	"Additional Insured",
	"Subrogation Waived",
	"Limit Description",
	"Limit Value",
}

// Writer wraps csv.Writer for exporting an extraction result as CSV.
type Writer struct {
	csv *csv.Writer
}

// NewWriter creates a Writer that writes CSV to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{csv: csv.NewWriter(w)}
}

// WriteHeader writes the header row.
func (w *Writer) WriteHeader() error {
	return w.csv.Write(columns)
}

// WriteResult flattens an extraction result into rows and writes them: one
// row per coverage, one bare row for a policy without coverages, and one
// insurer-only row for insurers no policy references.
func (w *Writer) WriteResult(result *domain.ExtractionResult) error {
	if result == nil {
		return nil
	}

	insurersByLetter := make(map[string]domain.Insurer, len(result.Insurers))
	for _, ins := range result.Insurers {
		insurersByLetter[ins.Letter] = ins
	}
	referenced := make(map[string]bool, len(result.Insurers))

	for i := range result.Policies {
		policy := &result.Policies[i]
		if policy.InsurerLetter != nil {
			referenced[*policy.InsurerLetter] = true
		}
		if len(policy.Coverages) == 0 {
			if err := w.csv.Write(buildRow(result, insurersByLetter, policy, nil)); err != nil {
				return err
			}
			continue
		}
		for j := range policy.Coverages {
			if err := w.csv.Write(buildRow(result, insurersByLetter, policy, &policy.Coverages[j])); err != nil {
				return err
			}
		}
	}

	for _, ins := range result.Insurers {
		if referenced[ins.Letter] {
			continue
		}
		row := buildRow(result, insurersByLetter, nil, nil)
		row[11] = ins.Letter
		row[12] = deref(ins.Name)
		row[13] = deref(ins.NAICNumber)
		if err := w.csv.Write(row); err != nil {
			return err
		}
	}

	return nil
}

// Flush flushes the underlying csv.Writer buffer.
func (w *Writer) Flush() {
	w.csv.Flush()
}

// Error returns any error from the underlying csv.Writer.
func (w *Writer) Error() error {
	return w.csv.Error()
}

func buildRow(result *domain.ExtractionResult, insurers map[string]domain.Insurer, policy *domain.Policy, cov *domain.Coverage) []string {
	row := make([]string, len(columns))

	ci := result.CertificateInformation
	row[0] = deref(ci.CertificateDate)
	row[1] = deref(ci.InsuredName)
	row[2] = deref(ci.InsuredAddress)
	row[3] = deref(ci.CertificateHolderName)
	row[4] = deref(ci.CertificateHolderAddress)
	row[5] = deref(ci.DescriptionOfOperations)

	pi := result.ProducerInformation
	row[6] = deref(pi.Name)
	row[7] = deref(pi.ContactName)
	row[8] = deref(pi.Phone)
	row[9] = deref(pi.Fax)
	row[10] = deref(pi.Email)

	if policy == nil {
		return row
	}

	if policy.InsurerLetter != nil {
		row[11] = *policy.InsurerLetter
		if ins, ok := insurers[*policy.InsurerLetter]; ok {
			row[12] = deref(ins.Name)
			row[13] = deref(ins.NAICNumber)
		}
	}
	row[14] = deref(policy.PolicyType)
	row[15] = deref(policy.PolicyNumber)
	row[16] = deref(policy.EffectiveDate)
	row[17] = deref(policy.ExpirationDate)
	row[18] = formatBool(policy.AdditionalInsured)
	row[19] = formatBool(policy.SubrogationWaived)

	if cov != nil {
		row[20] = deref(cov.LimitDescription)
		if cov.LimitValue != nil {
			row[21] = strconv.FormatInt(*cov.LimitValue, 10)
		}
	}

	return row
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func formatBool(v *bool) string {
	switch {
	case v == nil:
		return ""
	case *v:
		return "Yes"
	default:
		return "No"
	}
}

// nonAlphanumeric matches characters that are not alphanumeric, hyphen, or underscore.
var nonAlphanumeric = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// multiUnderscore matches consecutive underscores.
var multiUnderscore = regexp.MustCompile(`_{2,}`)

// SanitizeFilename cleans an uploaded file name for use in Content-Disposition.
// Replaces non-alphanumeric chars (except - _) with _, collapses consecutive
// underscores, and truncates to 100 chars.
func SanitizeFilename(name string) string {
	s := nonAlphanumeric.ReplaceAllString(name, "_")
	s = multiUnderscore.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	if len(s) > 100 {
		s = s[:100]
	}
	return s
}

// BuildFilename returns a sanitized filename for Content-Disposition header.
// Format: {sanitized_name}_{YYYY-MM-DD}.csv
func BuildFilename(name string) string {
	sanitized := SanitizeFilename(strings.TrimSuffix(name, ".pdf"))
	if sanitized == "" {
		sanitized = "certificate"
	}
	date := time.Now().Format("2006-01-02")
	return fmt.Sprintf("%s_%s.csv", sanitized, date)
}
