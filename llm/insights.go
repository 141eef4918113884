package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"retail-demand-engine/database"
	"retail-demand-engine/database/types"
)

// Constants for value formatting
const (
	millionDivisor = 1_000_000
	maxAlertLines  = 10
	maxPromptWords = 200
)

// trendSummary aggregates a daily demand series for prompt building
type trendSummary struct {
	totalQty      float64
	totalRevenue  float64
	peakQty       float64
	peakDay       time.Time
	discountDays  int
	firstHalfQty  float64
	secondHalfQty float64
}

// summarizeTrend condenses daily points into the numbers the prompt cites
func summarizeTrend(points []types.DailyTrendPoint) trendSummary {
	summary := trendSummary{}
	half := len(points) / 2

	for i, p := range points {
		summary.totalQty += p.Quantity
		summary.totalRevenue += p.TotalAmount
		if p.Quantity > summary.peakQty {
			summary.peakQty = p.Quantity
			summary.peakDay = p.Bucket
		}
		if p.AvgDiscount > 0 {
			summary.discountDays++
		}
		if i < half {
			summary.firstHalfQty += p.Quantity
		} else {
			summary.secondHalfQty += p.Quantity
		}
	}

	return summary
}

// FormatDemandInsightPrompt creates a prompt for analyzing one product's demand
func FormatDemandInsightPrompt(product *database.Product, points []types.DailyTrendPoint, forecasts []database.ForecastRecord) string {
	var sb strings.Builder
	sb.Grow(1024 + len(forecasts)*100)

	sb.WriteString(fmt.Sprintf("Lakukan Bedah Permintaan untuk produk **%s (%s)** kategori %s:\n\n", product.Name, product.SKU, product.Category))

	summary := summarizeTrend(points)

	sb.WriteString(fmt.Sprintf("📊 **Riwayat %d Hari Terakhir**:\n", len(points)))
	sb.WriteString(fmt.Sprintf("- Total Terjual: %.0f unit (Omzet Rp %.1f Juta)\n", summary.totalQty, summary.totalRevenue/millionDivisor))
	if summary.peakQty > 0 {
		sb.WriteString(fmt.Sprintf("- Hari Puncak: %s (%.0f unit)\n", summary.peakDay.Format("2 January"), summary.peakQty))
	}
	sb.WriteString(fmt.Sprintf("- Hari dengan Diskon: %d dari %d hari\n", summary.discountDays, len(points)))

	// Add trend context if available
	if summary.secondHalfQty > summary.firstHalfQty*1.2 {
		sb.WriteString("\nKonteks: Permintaan sedang NAIK (paruh kedua >20% di atas paruh pertama).\n")
	} else if summary.firstHalfQty > summary.secondHalfQty*1.2 {
		sb.WriteString("\nKonteks: Permintaan sedang TURUN (paruh kedua >20% di bawah paruh pertama).\n")
	} else {
		sb.WriteString("\nKonteks: Permintaan relatif stabil.\n")
	}

	if len(forecasts) > 0 {
		sb.WriteString("\n🔮 **Prakiraan Terbaru**:\n")
		for i, f := range forecasts {
			if i >= maxAlertLines {
				break
			}
			sb.WriteString(fmt.Sprintf("- %s: %d unit (rentang %d-%d, strategi %s)\n",
				f.ForecastDate.Format("2 Jan"), f.PredictedDemand, f.ConfidenceLower, f.ConfidenceUpper, f.StrategyUsed))
		}
	}

	sb.WriteString("\nTugas Analisis:\n")
	sb.WriteString("1. **Diagnosa Tren**: Apakah kenaikan/penurunan ini musiman, efek diskon, atau perubahan permintaan nyata?\n")
	sb.WriteString("2. **Validasi Prakiraan**: Apakah angka prakiraan masuk akal dibanding riwayat di atas?\n")
	sb.WriteString("3. **Rekomendasi Stok**: Tambah, kurangi, atau pertahankan tingkat persediaan? Sebutkan angka.\n")
	sb.WriteString(fmt.Sprintf("\nJawab dalam Bahasa Indonesia yang tajam, to-the-point, dan profesional. Maksimal %d kata.", maxPromptWords))

	return sb.String()
}

// FormatAlertDigestPrompt creates a prompt for summarizing recent demand anomalies
func FormatAlertDigestPrompt(alerts []database.DemandAlert) string {
	var sb strings.Builder
	sb.Grow(1024 + len(alerts)*150)

	sb.WriteString("Sistem mendeteksi anomali permintaan berikut. Analisis data ini:\n\n")

	for i, a := range alerts {
		if i >= maxAlertLines {
			break
		}

		timeSince := time.Since(a.DetectedAt).Hours()

		sb.WriteString(fmt.Sprintf("%d. **Produk #%d** - %s\n", i+1, a.ProductID, a.AlertType))
		sb.WriteString(fmt.Sprintf("   - Waktu: %.0f jam yang lalu\n", timeSince))
		sb.WriteString(fmt.Sprintf("   - Terpantau: %.0f unit vs ekspektasi %.0f unit (rasio %.1fx)\n",
			a.ObservedValue, a.ExpectedValue, a.DeviationRatio))
	}

	sb.WriteString("\nBerikan Analisis:\n")
	sb.WriteString("1. **Penyebab Anomali**: Apakah ini efek promosi, kelangkaan di kompetitor, atau pergeseran musim?\n")
	sb.WriteString("2. **Risiko Persediaan**: Produk mana yang berisiko kehabisan stok atau kelebihan stok?\n")
	sb.WriteString("3. **Tindakan Cepat**: Urutan prioritas restock atau penyesuaian harga.\n")
	sb.WriteString("\nBerikan insight seolah-olah Anda adalah kepala pengadaan. Singkat & padat.")

	return sb.String()
}

// AnalyzeProductContext generates LLM insights for a specific product
func AnalyzeProductContext(client *Client, product *database.Product, points []types.DailyTrendPoint, forecasts []database.ForecastRecord) (string, error) {
	if len(points) == 0 {
		return "", fmt.Errorf("tidak ada data penjualan yang cukup untuk analisis produk %s", product.SKU)
	}

	prompt := FormatDemandInsightPrompt(product, points, forecasts)

	ctx, cancel := context.WithTimeout(context.Background(), 45*time.Second)
	defer cancel()

	return client.Analyze(ctx, prompt)
}
