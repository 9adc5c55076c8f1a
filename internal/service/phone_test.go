package service

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizePhone(t *testing.T) {
	cases := []struct {
		name        string
		raw         string
		countryCode string
		canonical   string
		legacy      string
		wantErr     bool
	}{
		{name: "domestic formatted", raw: "(555) 123-4567", countryCode: "1", canonical: "+15551234567", legacy: "5551234567"},
		{name: "domestic other country", raw: "020 7123 456", countryCode: "44", canonical: "+440207123456", legacy: "0207123456"},
		{name: "empty country code falls back", raw: "5551234567", countryCode: "", canonical: "+15551234567", legacy: "5551234567"},
		{name: "international keeps digits", raw: "+44 20 7123 4567", countryCode: "1", canonical: "+442071234567"},
		{name: "already canonical", raw: "+15551234567", countryCode: "1", canonical: "+15551234567"},
		{name: "fifteen digits", raw: "123456789012345", countryCode: "1", canonical: "+123456789012345"},
		{name: "too short", raw: "555-1234", countryCode: "1", wantErr: true},
		{name: "too long", raw: "1234567890123456", countryCode: "1", wantErr: true},
		{name: "no digits", raw: "phone", countryCode: "1", wantErr: true},
		{name: "prefix overflows", raw: "5551234567", countryCode: "123456", wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := NormalizePhone(tc.raw, tc.countryCode)
			if tc.wantErr {
				require.ErrorIs(t, err, ErrInvalidPhoneNumber)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.canonical, got.Canonical)
			require.Equal(t, tc.legacy, got.Legacy)
		})
	}
}

func TestPhoneNumberForms(t *testing.T) {
	domestic, err := NormalizePhone("5551234567", "1")
	require.NoError(t, err)
	require.Equal(t, []string{"+15551234567", "5551234567"}, domestic.Forms())
	require.Equal(t, "15551234567", domestic.Digits())

	intl, err := NormalizePhone("+442071234567", "1")
	require.NoError(t, err)
	require.Equal(t, []string{"+442071234567"}, intl.Forms())
}
