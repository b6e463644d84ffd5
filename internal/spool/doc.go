// Package spool ingests notification files dropped into a directory.
//
// It is the offline twin of POST /notify: every *.json file in the spool
// directory is decoded and handed to the same processor, so notifications
// arriving through either path share one global order.
//
// Discovery is hybrid:
//   - Primary: fsnotify wakes the spool as soon as a file lands
//   - Fallback: a periodic sweep catches anything fsnotify missed
//     (network mounts, Docker volumes, events dropped under load)
//
// Writers should create files under another name and rename them to
// *.json when complete. Files still being written (modified within the
// settle window) are left for the next sweep.
//
// Outcome per file:
//   - processed: moved to done/
//   - rejected or failed: moved to failed/ next to a <name>.err JSON report
//   - retryable failure: left in place and retried on the next sweep
package spool
