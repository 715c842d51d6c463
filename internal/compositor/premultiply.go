package compositor

// PremultiplyAlpha converts b in place to premultiplied alpha.
//
// Only samples with alpha < 255 and at least one color channel exceeding
// the alpha are converted; any other sample is assumed to be premultiplied
// already. That guess is wrong for straight-alpha pixels whose channels
// happen to sit at or below their alpha, which are then left untouched.
// Running the function twice has the same effect as running it once.
func PremultiplyAlpha(b *Bitmap) {
	if b == nil {
		return
	}
	view, unlock := b.lockBits()
	defer unlock()

	w, h := view.Rect.Dx(), view.Rect.Dy()
	for y := 0; y < h; y++ {
		row := view.Pix[y*view.Stride : y*view.Stride+4*w]
		for i := 0; i < len(row); i += 4 {
			px := row[i : i+4 : i+4]
			a := px[3]
			if a == 255 || (px[0] <= a && px[1] <= a && px[2] <= a) {
				continue
			}
			px[0] = premul(px[0], a)
			px[1] = premul(px[1], a)
			px[2] = premul(px[2], a)
		}
	}
}

// premul computes (c*a + 1) * 257 >> 16, an exact c*a/255 for 8-bit values.
func premul(c, a uint8) uint8 {
	return uint8(((uint32(c)*uint32(a) + 1) * 257) >> 16)
}
