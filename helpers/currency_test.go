package helpers

import "testing"

func TestFormatRupiah(t *testing.T) {
	tests := []struct {
		name   string
		amount float64
		want   string
	}{
		{"zero", 0, "Rp 0"},
		{"under a thousand", 999, "Rp 999"},
		{"exactly a thousand", 1000, "Rp 1.000"},
		{"millions", 1234567, "Rp 1.234.567"},
		{"billions", 5000000000, "Rp 5.000.000.000"},
		{"negative", -250000, "Rp -250.000"},
		{"fraction truncated", 1500.75, "Rp 1.500"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatRupiah(tt.amount); got != tt.want {
				t.Errorf("FormatRupiah(%v) = %v, want %v", tt.amount, got, tt.want)
			}
		})
	}
}

func TestFormatThousands(t *testing.T) {
	tests := []struct {
		name     string
		quantity float64
		want     string
	}{
		{"zero", 0, "0"},
		{"small", 42, "42"},
		{"thousands", 12845, "12.845"},
		{"negative", -1200, "-1.200"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatThousands(tt.quantity); got != tt.want {
				t.Errorf("FormatThousands(%v) = %v, want %v", tt.quantity, got, tt.want)
			}
		})
	}
}
