//go:build tesseract

package ocr

import "github.com/otiai10/gosseract/v2"

func init() {
	newTesseractClient = func() TesseractClient { return gosseract.NewClient() }
	defaultEngine = EngineTesseract
}
