// Package cache persists enrichment results in Redis and short-circuits
// repeat requests.
//
// Three keyspaces:
//
//   - acrogen:result:<acronym>   terminal successful Results, durable
//   - acrogen:failure:<acronym>  permanent failure markers, durable
//   - acrogen:cache:<key>        repeat-request entries, TTL-bounded
//
// Durable results let a restarted batch skip already-processed items;
// failure markers stop items from being retried forever across runs. The
// TTL cache covers repeat requests with identical variant parameters inside
// one run.
package cache
