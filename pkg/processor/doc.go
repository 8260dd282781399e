// Package processor orchestrates concurrent batch enrichment runs.
//
// A Processor fans a list of acronyms across a bounded worker pool. Each
// item runs through the full pipeline: credential acquisition, rate-limiter
// admission, remote generation, decoding, cleaning, validation and
// persistence. Already-processed and permanently-failed items are skipped,
// so re-running a batch after an interruption only touches remaining work.
package processor
