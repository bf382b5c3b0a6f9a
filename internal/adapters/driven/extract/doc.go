// Package extract wraps the external command-line tools used during ingestion:
// pdftotext and pdfinfo for PDF text and metadata, pdftoppm for page
// rasterisation and tesseract for OCR.
//
// All tools are invoked through a CommandRunner so tests can substitute
// canned output. A missing tool is reported with ErrToolNotFound and the
// install hint from InstallInstructions.
package extract
