package export

import "math"

// Paginate returns the vertical offset of the image on each page. An image
// taller than one page is drawn in full on every page, shifted up by one page
// height per page, so each page shows the next slice.
func Paginate(imgHeight, pageHeight float64) []float64 {
	if pageHeight <= 0 || imgHeight <= pageHeight {
		return []float64{0}
	}
	total := int(math.Ceil(imgHeight / pageHeight))
	offsets := make([]float64, total)
	for i := range offsets {
		offsets[i] = -(float64(i) * pageHeight)
	}
	return offsets
}

// ScaledHeight is the drawn height of a bitmap stretched to pageWidth.
func ScaledHeight(bitmapWidth, bitmapHeight int, pageWidth float64) float64 {
	if bitmapWidth == 0 {
		return 0
	}
	return float64(bitmapHeight) * pageWidth / float64(bitmapWidth)
}
