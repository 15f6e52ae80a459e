package core

import "strings"

// NormalizeCPF strips everything but digits. The backend stores the bare digits.
func NormalizeCPF(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// FormatCPF applies the 000.000.000-00 mask to as many digits as are present,
// so partial input is masked progressively. Digits past the eleventh are dropped.
func FormatCPF(s string) string {
	d := NormalizeCPF(s)
	if len(d) > 11 {
		d = d[:11]
	}
	var b strings.Builder
	for i, r := range d {
		switch i {
		case 3, 6:
			b.WriteByte('.')
		case 9:
			b.WriteByte('-')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// ValidCPF accepts masked or bare CPFs with correct check digits.
func ValidCPF(s string) bool {
	s = strings.TrimSpace(s)
	d := NormalizeCPF(s)
	if len(d) != 11 {
		return false
	}
	if strings.ContainsAny(s, ".-") && FormatCPF(d) != s {
		return false
	}
	if strings.Count(d, d[:1]) == 11 {
		return false
	}
	return cpfDigit(d[:9]) == d[9] && cpfDigit(d[:10]) == d[10]
}

func cpfDigit(ds string) byte {
	weight := len(ds) + 1
	sum := 0
	for i := 0; i < len(ds); i++ {
		sum += int(ds[i]-'0') * (weight - i)
	}
	r := sum % 11
	if r < 2 {
		return '0'
	}
	return byte('0' + 11 - r)
}
