package inspect

import (
	"bytes"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"

	"github.com/jetstack/dcc-trustlist/pkg/trustlist"
)

func testRecords() []trustlist.TrustedKeyRecord {
	return []trustlist.TrustedKeyRecord{
		trustlist.NewRecord("rsa-1", []string{"v"}, trustlist.RSAParameters{E: []byte{1, 0, 1}, N: make([]byte, 256)}),
		trustlist.NewRecord("ec-1", nil, trustlist.ECParameters{X: make([]byte, 32), Y: make([]byte, 32)}),
		trustlist.NewRecord("rsa-1", []string{"t"}, trustlist.RSAParameters{E: []byte{3}, N: make([]byte, 128)}),
	}
}

func TestSummarize(t *testing.T) {
	s := Summarize(testRecords())
	assert.Equal(t, 3, s.Records)
	assert.Equal(t, map[trustlist.Algorithm]int{"RSA": 2, "EC": 1}, s.ByAlgorithm)
	assert.Equal(t, map[trustlist.KeyUsage]int{"v": 2, "t": 2, "r": 1}, s.ByUsage)
	assert.Equal(t, []string{"rsa-1"}, s.DuplicateKIDs)
}

func TestCheck(t *testing.T) {
	assert.NoError(t, Check(testRecords()))

	err := Check([]trustlist.TrustedKeyRecord{
		{KID: "", Usage: trustlist.AllUsages(), Parameters: trustlist.RSAParameters{E: []byte{3}, N: []byte{1}}},
		{KID: "short", Usage: trustlist.AllUsages(), Parameters: trustlist.ECParameters{X: []byte{1}, Y: make([]byte, 32)}},
		{KID: "nousage", Parameters: trustlist.RSAParameters{E: []byte{3}, N: []byte{1}}},
		{KID: "noparams", Usage: trustlist.AllUsages()},
	})
	assert.ErrorContains(t, err, `record 0 (kid ""): empty kid`)
	assert.ErrorContains(t, err, `record 1 (kid "short"): EC coordinates are 1 and 32 bytes, want 32`)
	assert.ErrorContains(t, err, `record 2 (kid "nousage"): empty usage`)
	assert.ErrorContains(t, err, `record 3 (kid "noparams"): no key parameters`)
}

func TestPrint(t *testing.T) {
	color.NoColor = true

	var buf bytes.Buffer
	Print(&buf, testRecords(), true)
	out := buf.String()

	assert.Contains(t, out, "Records: 3\n")
	assert.Contains(t, out, "  RSA 2\n")
	assert.Contains(t, out, "  EC  1\n")
	assert.Contains(t, out, "Duplicate kids: rsa-1\n")
	assert.Regexp(t, `rsa-1\s+RSA\s+v\s+2048`, out)
	assert.Regexp(t, `ec-1\s+EC\s+v,t,r\s+256`, out)
}
