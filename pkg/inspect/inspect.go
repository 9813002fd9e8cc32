// Package inspect prints a human readable summary of a trust list artifact
// and checks that every record is well formed.
package inspect

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/hashicorp/go-multierror"

	"github.com/jetstack/dcc-trustlist/pkg/trustlist"
)

// Summary counts the records of a trust list.
type Summary struct {
	Records     int
	ByAlgorithm map[trustlist.Algorithm]int
	ByUsage     map[trustlist.KeyUsage]int
	// DuplicateKIDs lists kids that appear more than once, sorted.
	DuplicateKIDs []string
}

// Summarize counts records.
func Summarize(records []trustlist.TrustedKeyRecord) Summary {
	s := Summary{
		Records:     len(records),
		ByAlgorithm: map[trustlist.Algorithm]int{},
		ByUsage:     map[trustlist.KeyUsage]int{},
	}
	kids := map[string]int{}
	for _, rec := range records {
		s.ByAlgorithm[rec.Algorithm()]++
		for _, u := range rec.Usage {
			s.ByUsage[u]++
		}
		kids[rec.KID]++
	}
	for kid, n := range kids {
		if n > 1 {
			s.DuplicateKIDs = append(s.DuplicateKIDs, kid)
		}
	}
	sort.Strings(s.DuplicateKIDs)
	return s
}

// Check returns every problem found in records: an empty kid, an empty usage
// list, missing RSA parameters, or EC coordinates that are not 32 bytes.
func Check(records []trustlist.TrustedKeyRecord) error {
	var result *multierror.Error
	for i, rec := range records {
		where := fmt.Sprintf("record %d (kid %q)", i, rec.KID)
		if rec.KID == "" {
			result = multierror.Append(result, fmt.Errorf("%s: empty kid", where))
		}
		if len(rec.Usage) == 0 {
			result = multierror.Append(result, fmt.Errorf("%s: empty usage", where))
		}
		switch p := rec.Parameters.(type) {
		case trustlist.RSAParameters:
			if len(p.E) == 0 || len(p.N) == 0 {
				result = multierror.Append(result, fmt.Errorf("%s: missing RSA exponent or modulus", where))
			}
		case trustlist.ECParameters:
			if len(p.X) != 32 || len(p.Y) != 32 {
				result = multierror.Append(result, fmt.Errorf("%s: EC coordinates are %d and %d bytes, want 32", where, len(p.X), len(p.Y)))
			}
		default:
			result = multierror.Append(result, fmt.Errorf("%s: no key parameters", where))
		}
	}
	return result.ErrorOrNil()
}

// Print writes the summary and, when listKeys is set, one line per record.
func Print(w io.Writer, records []trustlist.TrustedKeyRecord, listKeys bool) {
	s := Summarize(records)
	bold := color.New(color.Bold).SprintFunc()

	fmt.Fprintf(w, "%s %d\n", bold("Records:"), s.Records)
	for _, algo := range []trustlist.Algorithm{trustlist.AlgorithmRSA, trustlist.AlgorithmEC} {
		fmt.Fprintf(w, "  %-3s %d\n", algo, s.ByAlgorithm[algo])
	}
	fmt.Fprintf(w, "%s\n", bold("Usage:"))
	for _, u := range trustlist.AllUsages() {
		fmt.Fprintf(w, "  %-3s %d\n", u, s.ByUsage[u])
	}
	if len(s.DuplicateKIDs) > 0 {
		fmt.Fprintf(w, "%s %s\n", color.YellowString("Duplicate kids:"), strings.Join(s.DuplicateKIDs, ", "))
	}

	if !listKeys {
		return
	}

	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
	fmt.Fprintln(tw, "KID\tALGO\tUSAGE\tBITS")
	for _, rec := range records {
		usage := make([]string, len(rec.Usage))
		for i, u := range rec.Usage {
			usage[i] = string(u)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", rec.KID, rec.Algorithm(), strings.Join(usage, ","), keyBits(rec.Parameters))
	}
	_ = tw.Flush()
}

func keyBits(p trustlist.Parameters) int {
	switch p := p.(type) {
	case trustlist.RSAParameters:
		return len(p.N) * 8
	case trustlist.ECParameters:
		return len(p.X) * 8
	}
	return 0
}
