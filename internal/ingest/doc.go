// Package ingest turns one pull request into one catalog entry.
//
// Engine.Ingest runs the whole pipeline for a pull request number: fetch the
// description, labels and attachments; parse and validate the submission;
// under the catalog lock, resolve the revision, place artifacts, derive the
// duration and audio URL, then append and persist the entry. Notification and
// ledger bookkeeping follow a successful save and never undo it.
//
// Rejections (not a submission, skip label, missing field or attachment) are
// detected before any file is written. Failures after placement remove the
// files written by the run.
package ingest
