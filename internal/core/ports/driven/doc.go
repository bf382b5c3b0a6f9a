// Package driven declares what the assistant core needs from the outside:
// model providers, the vector index, the document registry, file
// normalisers, the analysis tool server and configuration storage.
//
// Some ports may be nil at run time:
//
//   - LLMService: utterances the routing rules do not match are treated as
//     off_topic, and generated answers become the apology text.
//   - ImageEmbedder, PageRasteriser: documents yield text units only.
//   - TextRecogniser: image units carry no OCR text.
//   - ProviderProbe: settings are saved without contacting providers.
//
// This package imports only the domain package.
package driven
