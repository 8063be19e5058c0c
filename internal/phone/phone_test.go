package phone_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/popeskul/gathering-dispatch/internal/phone"
)

func TestNormalizeForStorage(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		country  string
		expected string
	}{
		{name: "ghana local", raw: "0244 000 000", country: "Ghana", expected: "+233244000000"},
		{name: "ghana with leading garbage", raw: "(00)-233-24-400-0000", country: "GHANA", expected: "+233244000000"},
		{name: "ghana hint inside longer text", raw: "244000000", country: "Republic of Ghana", expected: "+233244000000"},
		{name: "togo", raw: "+228 90 12 34 56", country: "togo", expected: "+22890123456"},
		{name: "togo from local digits", raw: "0090123456", country: " Togo ", expected: "+22890123456"},
		{name: "unknown country with ghana code", raw: "233244000000", country: "", expected: "+233244000000"},
		{name: "unknown country with togo code", raw: "22890123456", country: "France", expected: "+22890123456"},
		{name: "unknown country defaults to ghana", raw: "0555123456", country: "Nigeria", expected: "+233555123456"},
		{name: "short input keeps all digits", raw: "1234", country: "ghana", expected: "+2331234"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, phone.NormalizeForStorage(tt.raw, tt.country))
		})
	}
}

func TestNormalizeForStorage_GhanaKeepsLastNineDigits(t *testing.T) {
	inputs := []string{"999999244000000", "x-1-2-3-244000000", "244000000", "00233244000000"}
	for _, in := range inputs {
		got := phone.NormalizeForStorage(in, "ghana")
		assert.Equal(t, "+233244000000", got, "input %q", in)
	}
}

func TestNormalizeForStorage_TogoKeepsLastEightDigits(t *testing.T) {
	inputs := []string{"7777790123456", "+228-90123456", "90123456"}
	for _, in := range inputs {
		got := phone.NormalizeForStorage(in, "Togo")
		assert.Equal(t, "+22890123456", got, "input %q", in)
	}
}

func TestNormalizeForProvider(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		expected   string
		expectedOK bool
	}{
		{name: "e164 ghana", input: "+233244000000", expected: "233244000000", expectedOK: true},
		{name: "local ghana", input: "0244000000", expected: "233244000000", expectedOK: true},
		{name: "already provider format", input: "233244000000", expected: "233244000000", expectedOK: true},
		{name: "formatting characters", input: "+233 (24) 400-0000", expected: "233244000000", expectedOK: true},
		{name: "bare subscriber number", input: "244000000", expected: "233244000000", expectedOK: true},
		{name: "togo passes through", input: "+22890123456", expected: "22890123456", expectedOK: false},
		{name: "garbage passes through", input: "abc", expected: "abc", expectedOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := phone.NormalizeForProvider(tt.input)
			assert.Equal(t, tt.expected, got)
			assert.Equal(t, tt.expectedOK, ok)
		})
	}
}

func TestValidateForProvider(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{name: "valid", input: "233244000000"},
		{name: "too short", input: "23324400000", wantErr: true},
		{name: "too long", input: "2332440000000", wantErr: true},
		{name: "wrong country", input: "228901234567", wantErr: true},
		{name: "non digits", input: "23324400000a", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := phone.ValidateForProvider(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, phone.ErrInvalidProviderNumber)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
