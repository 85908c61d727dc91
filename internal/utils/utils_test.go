// internal/utils/utils_test.go
package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSVFieldRoundTrip(t *testing.T) {
	escaped := EscapeCSVField(`Clay "Special", Edition`)
	assert.Equal(t, `"Clay ""Special"", Edition"`, escaped)

	fields := SplitCSVLine(`SKU-1,` + escaped + `,12.50`)
	require.Len(t, fields, 3)
	assert.Equal(t, `Clay "Special", Edition`, fields[1])
}

func TestEscapeCSVFieldLeavesPlainValues(t *testing.T) {
	assert.Equal(t, "Terracotta Pot", EscapeCSVField("Terracotta Pot"))
	assert.Equal(t, "", EscapeCSVField(""))
}

func TestSplitCSVLines(t *testing.T) {
	lines := SplitCSVLines("\ufeffname,price\r\nBowl,10\r\n\r\n  \nMug,5\n")
	assert.Equal(t, []string{"name,price", "Bowl,10", "Mug,5"}, lines)
}

func TestSplitCSVLineTrimsAndKeepsEmptyFields(t *testing.T) {
	assert.Equal(t, []string{"a", "", "c"}, SplitCSVLine(" a , ,c "))
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Blue Glazed Mug", "blue-glazed-mug"},
		{"  Clay -- Vase!! ", "clay-vase"},
		{"Set of 4 (Large)", "set-of-4-large"},
		{"---", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Slugify(tt.in), tt.in)
	}
}

func TestFormatCurrency(t *testing.T) {
	assert.Equal(t, "₹1,234.50", FormatCurrency("₹", 1234.5))
	assert.Equal(t, "₹0.00", FormatCurrency("₹", 0))
	assert.Equal(t, "$1,000,000.00", FormatCurrency("$", 1000000))
	assert.Equal(t, "-₹12.35", FormatCurrency("₹", -12.345))
}

func TestRoundMoney(t *testing.T) {
	assert.Equal(t, 10.13, RoundMoney(10.125))
	assert.Equal(t, 3.0, RoundMoney(2.999))
}

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"event":"payment.captured"}`)
	signature := SignPayload(body, "whsec")

	assert.True(t, VerifySignature(body, signature, "whsec"))
	assert.True(t, VerifySignature(body, "  "+signature+" ", "whsec"))
	assert.False(t, VerifySignature(body, signature, "other"))
	assert.False(t, VerifySignature([]byte(`{"event":"payment.failed"}`), signature, "whsec"))
	assert.False(t, VerifySignature(body, "not-hex", "whsec"))
	assert.False(t, VerifySignature(body, signature, ""))
}

func TestGenerateRandomString(t *testing.T) {
	s, err := GenerateRandomString(12, "AB")
	require.NoError(t, err)
	assert.Len(t, s, 12)
	for _, r := range s {
		assert.Contains(t, "AB", string(r))
	}
}

func TestJWTRoundTrip(t *testing.T) {
	SetJWTSecret("test-secret")
	SetJWTIssuer("")

	token, err := GenerateJWT("auth|123", "potter@example.com", time.Hour)
	require.NoError(t, err)

	claims, err := ValidateJWT(token)
	require.NoError(t, err)
	assert.Equal(t, "auth|123", claims.Subject)
	assert.Equal(t, "potter@example.com", claims.Email)

	SetJWTSecret("rotated")
	_, err = ValidateJWT(token)
	assert.Error(t, err)
}

func TestJWTRejectsExpiredToken(t *testing.T) {
	SetJWTSecret("test-secret")
	SetJWTIssuer("")

	token, err := GenerateJWT("auth|123", "", -time.Minute)
	require.NoError(t, err)

	_, err = ValidateJWT(token)
	assert.Error(t, err)
}

func TestValidateSKU(t *testing.T) {
	assert.True(t, IsValidSKU("MUG-001_b"))
	assert.False(t, IsValidSKU("bad sku!"))
	assert.False(t, IsValidSKU(""))

	type req struct {
		SKU string `validate:"required,sku"`
	}
	errs := GetValidationErrors(ValidateStruct(&req{SKU: "no spaces"}))
	require.Len(t, errs, 1)
	assert.Equal(t, "sku", errs[0].Field)
	assert.Equal(t, "sku", errs[0].Tag)
}
