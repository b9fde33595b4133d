// Package worker provides the three workers that drive documents through
// their lifecycle:
//   - Ingestor pulls articles from feeds and stores them as pending documents
//   - Processor chunks and embeds pending documents, flipping them to ready
//   - FeatureWorker extracts entities and funding rounds from ready documents
//
// Workers claim documents atomically, so multiple instances of the same
// worker can run against the same store. A failure in one document is
// isolated to that document and never aborts a pass.
package worker
