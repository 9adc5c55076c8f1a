package service

import (
	"strings"
	"unicode"
)

const (
	minPhoneDigits   = 10
	maxPhoneDigits   = 15
	domesticDigits   = 10
	defaultPhoneCode = "1"
)

// PhoneNumber es un número normalizado. Legacy solo se llena para números
// domésticos de 10 dígitos y sirve como alias de búsqueda.
type PhoneNumber struct {
	Canonical string
	Legacy    string
}

// Forms devuelve todas las formas con las que el número puede estar guardado.
func (p PhoneNumber) Forms() []string {
	if p.Legacy == "" {
		return []string{p.Canonical}
	}
	return []string{p.Canonical, p.Legacy}
}

// Digits devuelve la forma canónica sin el prefijo "+".
func (p PhoneNumber) Digits() string {
	return strings.TrimPrefix(p.Canonical, "+")
}

// NormalizePhone descarta todo lo que no sea dígito y canoniza el resultado.
func NormalizePhone(raw, countryCode string) (PhoneNumber, error) {
	digits := onlyDigits(raw)
	if len(digits) < minPhoneDigits || len(digits) > maxPhoneDigits {
		return PhoneNumber{}, ErrInvalidPhoneNumber
	}

	if len(digits) != domesticDigits {
		return PhoneNumber{Canonical: "+" + digits}, nil
	}

	code := onlyDigits(countryCode)
	if code == "" {
		code = defaultPhoneCode
	}
	full := code + digits
	if len(full) > maxPhoneDigits {
		return PhoneNumber{}, ErrInvalidPhoneNumber
	}
	return PhoneNumber{Canonical: "+" + full, Legacy: digits}, nil
}

func onlyDigits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r < unicode.MaxASCII && unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
