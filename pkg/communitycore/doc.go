// Package communitycore provides the consistency and lifecycle engine for a
// denormalized community graph (users, communities, activities, membership
// edges, media blobs, notifications) stored in a document store without
// multi-document transactions.
//
// It exposes a single Service interface covering entity writes, the rename
// and delete cascades that keep denormalized natural-key copies consistent,
// membership join/leave semantics, and reference-managed media blobs.
// Implementations of repositories (memory, MongoDB) and blob stores (memory,
// filesystem, S3) are provided under subpackages; the periodic activity
// notification scanner lives in the scheduler subpackage.
//
// Consistency Model
//
// Natural keys (username, community URL) are mutable and copied into
// dependent collections. A rename rewrites the primary record first, then
// fans out to dependents; a partial failure surfaces as a *CascadeError
// naming the still-stale collections, and re-running the operation is
// idempotent because dependent rewrites match on the old key. No multi-step
// operation is atomic; each is safely re-runnable instead.
package communitycore
