// Package storage is the durable state store behind the polling jobs and
// the command surface: bindings, last-known friend states, notification
// preferences, game subscriptions, market watches, news bookkeeping and
// daily library snapshots.
//
// Every write is a single-row upsert or delete; no operation spans rows,
// so concurrent job types touching disjoint rows cannot corrupt state.
package storage
